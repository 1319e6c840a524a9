package feed

import (
	"bytes"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// CodePlaceholder replaces code blocks in feed content.
const CodePlaceholder = "[Code snippet]"

// Sanitize prepares a rendered HTML fragment for feed readers. Preformatted
// blocks that contain code become CodePlaceholder, and script and style
// elements are removed.
func Sanitize(fragment []byte) (string, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(bytes.NewReader(fragment), body)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	for _, n := range nodes {
		if drop(n) {
			continue
		}
		if isCodeBlock(n) {
			buf.WriteString(html.EscapeString(CodePlaceholder))
			continue
		}
		clean(n)
		if err := html.Render(&buf, n); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

func clean(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch {
		case drop(c):
			n.RemoveChild(c)
		case isCodeBlock(c):
			n.InsertBefore(&html.Node{Type: html.TextNode, Data: CodePlaceholder}, c)
			n.RemoveChild(c)
		default:
			clean(c)
		}
		c = next
	}
}

func drop(n *html.Node) bool {
	return n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style)
}

func isCodeBlock(n *html.Node) bool {
	if n.Type != html.ElementNode || n.DataAtom != atom.Pre {
		return false
	}
	return containsCode(n)
}

func containsCode(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Code {
			return true
		}
		if containsCode(c) {
			return true
		}
	}
	return false
}
