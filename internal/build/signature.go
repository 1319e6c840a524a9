package build

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/contentbuild/internal/templates"
)

// Options are the settings that shape per-item artifacts. Cache entries are
// only valid for the options they were built with.
type Options struct {
	OutputDir string
	EmitJSON  bool
	EmitHTML  bool
	Page      *templates.Page
	Site      templates.Site
}

// Signature hashes the options into a stable hex string. The output
// directory is made absolute so "public" and "./public" agree. The page
// template only counts when HTML is emitted.
func (o Options) Signature() string {
	out, err := filepath.Abs(o.OutputDir)
	if err != nil {
		out = filepath.Clean(o.OutputDir)
	}

	h := sha256.New()
	w := func(parts ...string) { h.Write([]byte(strings.Join(parts, "="))); h.Write([]byte{0}) }
	w("output.dir", out)
	w("emit.json", strconv.FormatBool(o.EmitJSON))
	w("emit.html", strconv.FormatBool(o.EmitHTML))
	if o.EmitHTML && o.Page != nil {
		w("page.name", o.Page.Name())
		w("page.digest", o.Page.Digest())
	}
	w("site.url", o.Site.URL)
	w("site.title", o.Site.Title)
	w("site.language", o.Site.Language)
	return hex.EncodeToString(h.Sum(nil))
}
