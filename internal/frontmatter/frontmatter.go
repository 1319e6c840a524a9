// Package frontmatter splits `---` delimited YAML headers from markdown
// documents and decodes them. It knows nothing about which keys an item
// carries; that lives in the content package.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingClosingDelimiter indicates the document started with a YAML
	// frontmatter delimiter but did not contain a closing delimiter.
	ErrMissingClosingDelimiter = errors.New("yaml frontmatter start delimiter found but closing delimiter is missing")

	// ErrDuplicateKey is returned when a mapping defines the same key twice.
	ErrDuplicateKey = errors.New("duplicate frontmatter key")

	// ErrNotMapping is returned when the frontmatter is valid YAML but not a mapping.
	ErrNotMapping = errors.New("frontmatter must be a YAML mapping")
)

// Split separates YAML frontmatter from the markdown body.
//
// The opening delimiter must be the very first line of the input; a byte
// order mark or leading whitespace means there is no frontmatter and body is
// the full input. The closing delimiter is a line holding only `---`, or
// `---` at end of input. Both LF and CRLF line endings are accepted.
func Split(content []byte) (fm []byte, body []byte, had bool, err error) {
	nl := newline(content)
	open := []byte("---" + nl)
	if !bytes.HasPrefix(content, open) {
		return nil, content, false, nil
	}

	start := len(open)
	rest := content[start:]
	switch {
	case bytes.HasPrefix(rest, open):
		return []byte{}, rest[len(open):], true, nil
	case bytes.Equal(rest, []byte("---")):
		return []byte{}, []byte{}, true, nil
	}

	if idx := bytes.Index(rest, []byte(nl+"---"+nl)); idx >= 0 {
		end := start + idx + len(nl)
		return content[start:end], content[end+len("---"+nl):], true, nil
	}
	if bytes.HasSuffix(rest, []byte(nl+"---")) {
		return content[start : len(content)-len("---")], []byte{}, true, nil
	}
	return nil, nil, false, ErrMissingClosingDelimiter
}

// ParseYAML parses raw YAML frontmatter (without --- delimiters) into a map.
//
// Duplicate keys are rejected at every nesting level and the top-level
// document must be a mapping. An empty block yields an empty map.
//
// Timestamps are never converted: `date: 2024-01-02` decodes to the string
// "2024-01-02". Scalars under the top-level textKeys, and the items of
// sequences under them, also keep their source text, so `title: 1.0` stays
// "1.0" instead of becoming a float.
func ParseYAML(fm []byte, textKeys ...string) (map[string]any, error) {
	if len(bytes.TrimSpace(fm)) == 0 {
		return map[string]any{}, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(fm, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return map[string]any{}, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, ErrNotMapping
	}
	if err := checkDuplicateKeys(root); err != nil {
		return nil, err
	}

	retag(root, func(tag string) bool { return tag == timestampTag })
	for i := 0; i+1 < len(root.Content); i += 2 {
		if slices.Contains(textKeys, root.Content[i].Value) {
			keepText(root.Content[i+1])
		}
	}

	var fields map[string]any
	if err := root.Decode(&fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

const (
	strTag       = "!!str"
	timestampTag = "!!timestamp"
)

// retag turns every scalar below n whose resolved tag matches into a string
// holding its source text.
func retag(n *yaml.Node, match func(tag string) bool) {
	if n.Kind == yaml.ScalarNode {
		if match(n.ShortTag()) {
			n.Tag = strTag
		}
		return
	}
	for _, child := range n.Content {
		retag(child, match)
	}
}

// keepText stringifies non-null scalars of n and of its sequence items.
func keepText(n *yaml.Node) {
	switch n.Kind {
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!int", "!!float", "!!bool", timestampTag:
			n.Tag = strTag
		}
	case yaml.SequenceNode:
		for _, child := range n.Content {
			if child.Kind == yaml.ScalarNode {
				keepText(child)
			}
		}
	}
}

func checkDuplicateKeys(n *yaml.Node) error {
	switch n.Kind {
	case yaml.MappingNode:
		seen := make(map[string]int, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i]
			if line, dup := seen[key.Value]; dup {
				return fmt.Errorf("%w: %q on line %d (first defined on line %d)", ErrDuplicateKey, key.Value, key.Line, line)
			}
			seen[key.Value] = key.Line
			if err := checkDuplicateKeys(n.Content[i+1]); err != nil {
				return err
			}
		}
	case yaml.SequenceNode, yaml.DocumentNode:
		for _, child := range n.Content {
			if err := checkDuplicateKeys(child); err != nil {
				return err
			}
		}
	}
	return nil
}

// newline reports the line ending used by the first line of content.
func newline(content []byte) string {
	if i := bytes.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}
