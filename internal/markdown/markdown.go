// Package markdown renders item bodies to HTML. Rendering is a black box to
// the rest of the pipeline: callers depend on Renderer, and the default
// implementation wraps goldmark with GitHub-flavoured extensions.
package markdown

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer converts a markdown body to an HTML fragment.
type Renderer interface {
	Render(source []byte) ([]byte, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(source []byte) ([]byte, error)

// Render implements Renderer.
func (f RendererFunc) Render(source []byte) ([]byte, error) { return f(source) }

// Options toggles goldmark behaviour.
type Options struct {
	// Unsafe passes raw HTML in markdown through to the output.
	Unsafe bool
}

// GoldmarkRenderer is the default Renderer. It is safe for concurrent use.
type GoldmarkRenderer struct {
	md goldmark.Markdown
}

// NewGoldmarkRenderer builds a renderer with GFM tables, strikethrough,
// task lists and autolinks, plus generated heading IDs.
func NewGoldmarkRenderer(opts Options) *GoldmarkRenderer {
	rendererOpts := []goldmark.Option{
		goldmark.WithExtensions(extension.GFM, extension.Footnote),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	}
	if opts.Unsafe {
		rendererOpts = append(rendererOpts, goldmark.WithRendererOptions(html.WithUnsafe()))
	}
	return &GoldmarkRenderer{md: goldmark.New(rendererOpts...)}
}

// Render implements Renderer.
func (r *GoldmarkRenderer) Render(source []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.md.Convert(source, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
