// Package xmlfmt re-indents XML produced by encoding/xml.
//
// Formatting is declarative: every element starts on its own line at its
// depth, and elements named in Options.Inline keep their text content on
// the same line as their tags. Text inside any other element goes on its
// own indented line. Elements with no content are self-closed.
package xmlfmt

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Declaration is written at the top of every formatted document.
const Declaration = `<?xml version="1.0" encoding="UTF-8"?>`

// Options controls formatting.
type Options struct {
	// Indent is repeated once per depth level. Defaults to two spaces.
	Indent string
	// Inline lists qualified element names ("title", "content:encoded")
	// whose text stays on the tag line.
	Inline []string
}

type node struct {
	name     string
	attrs    []xml.Attr
	text     strings.Builder
	children []*node
}

// Format parses raw and writes it back with the configured layout. Any XML
// declaration, comment or processing instruction in raw is dropped and
// Declaration is emitted instead.
func Format(raw []byte, opts Options) ([]byte, error) {
	if opts.Indent == "" {
		opts.Indent = "  "
	}
	inline := make(map[string]bool, len(opts.Inline))
	for _, name := range opts.Inline {
		inline[name] = true
	}

	root, err := parse(raw)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(Declaration)
	buf.WriteByte('\n')
	f := formatter{buf: &buf, indent: opts.Indent, inline: inline}
	f.write(root, 0)
	return buf.Bytes(), nil
}

func parse(raw []byte) (*node, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	var stack []*node
	var root *node

	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("xmlfmt: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: qualified(t.Name), attrs: t.Copy().Attr}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			} else if root != nil {
				return nil, errors.New("xmlfmt: multiple root elements")
			} else {
				root = n
			}
			stack = append(stack, n)
		case xml.EndElement:
			// RawToken does not pair tags, so check nesting here.
			if len(stack) == 0 || stack[len(stack)-1].name != qualified(t.Name) {
				return nil, fmt.Errorf("xmlfmt: unexpected end element %s", qualified(t.Name))
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}

	if root == nil {
		return nil, errors.New("xmlfmt: no root element")
	}
	if len(stack) != 0 {
		return nil, errors.New("xmlfmt: unclosed element")
	}
	return root, nil
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

type formatter struct {
	buf    *bytes.Buffer
	indent string
	inline map[string]bool
}

func (f *formatter) write(n *node, depth int) {
	pad := strings.Repeat(f.indent, depth)
	text := n.text.String()
	hasText := strings.TrimSpace(text) != ""

	f.buf.WriteString(pad)
	f.openTag(n)

	switch {
	case !hasText && len(n.children) == 0:
		// Rewrite the just-written ">" as "/>".
		f.buf.Truncate(f.buf.Len() - 1)
		f.buf.WriteString("/>\n")
		return
	case f.inline[n.name] && len(n.children) == 0:
		escapeText(f.buf, text)
		f.closeTag(n)
		f.buf.WriteByte('\n')
		return
	}

	f.buf.WriteByte('\n')
	if hasText {
		f.buf.WriteString(pad + f.indent)
		escapeText(f.buf, strings.TrimSpace(text))
		f.buf.WriteByte('\n')
	}
	for _, child := range n.children {
		f.write(child, depth+1)
	}
	f.buf.WriteString(pad)
	f.closeTag(n)
	f.buf.WriteByte('\n')
}

func (f *formatter) openTag(n *node) {
	f.buf.WriteByte('<')
	f.buf.WriteString(n.name)
	for _, a := range n.attrs {
		f.buf.WriteByte(' ')
		f.buf.WriteString(qualified(a.Name))
		f.buf.WriteString(`="`)
		escapeAttr(f.buf, a.Value)
		f.buf.WriteByte('"')
	}
	f.buf.WriteByte('>')
}

func (f *formatter) closeTag(n *node) {
	f.buf.WriteString("</")
	f.buf.WriteString(n.name)
	f.buf.WriteByte('>')
}

// escapeText escapes character data but leaves line feeds literal, which
// is equivalent in element content.
func escapeText(buf *bytes.Buffer, s string) {
	for i, line := range strings.Split(s, "\n") {
		if i > 0 {
			buf.WriteByte('\n')
		}
		_ = xml.EscapeText(buf, []byte(line))
	}
}

// escapeAttr escapes everything, line feeds included, since parsers
// normalize literal whitespace in attribute values.
func escapeAttr(buf *bytes.Buffer, s string) {
	_ = xml.EscapeText(buf, []byte(s))
}
