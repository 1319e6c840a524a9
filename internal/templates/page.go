// Package templates renders per-item HTML pages from a user supplied
// html/template file.
package templates

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/contentbuild/internal/content"
)

// Page is a parsed page template. It is safe for concurrent use.
type Page struct {
	tpl    *template.Template
	name   string
	digest string
}

// PageData is the value passed to the page template.
type PageData struct {
	Item    content.Item
	HTML    template.HTML
	URL     string
	Site    Site
	BuiltAt time.Time
}

// Site is the subset of site configuration exposed to templates.
type Site struct {
	Title    string
	URL      string
	Language string
}

var funcs = template.FuncMap{
	"join":  strings.Join,
	"lower": strings.ToLower,
	"date": func(layout, value string) string {
		if t, ok := content.ParseDate(value); ok {
			return t.Format(layout)
		}
		return value
	},
}

// LoadPage parses the template file at path.
func LoadPage(path string) (*Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read page template: %w", err)
	}
	return ParsePage(filepath.Base(path), string(data))
}

// ParsePage parses template source. Missing keys are errors so typos in
// templates fail the item instead of rendering empty strings.
func ParsePage(name, src string) (*Page, error) {
	tpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse page template: %w", err)
	}
	sum := sha256.Sum256([]byte(src))
	return &Page{tpl: tpl, name: name, digest: hex.EncodeToString(sum[:])}, nil
}

// Name returns the template name.
func (p *Page) Name() string { return p.name }

// Digest returns the hex sha256 of the template source.
func (p *Page) Digest() string { return p.digest }

// Render executes the template.
func (p *Page) Render(data PageData) ([]byte, error) {
	var buf bytes.Buffer
	if err := p.tpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render page template: %w", err)
	}
	return buf.Bytes(), nil
}
