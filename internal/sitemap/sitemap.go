// Package sitemap renders sitemaps.org XML for published content.
package sitemap

import (
	"encoding/xml"
	"fmt"
	"sort"
	"time"

	"git.home.luguber.info/inful/contentbuild/internal/content"
	ferrors "git.home.luguber.info/inful/contentbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/contentbuild/internal/xmlfmt"
)

// Namespace is the sitemap protocol namespace.
const Namespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// LastModLayout renders timestamps with a colon offset, e.g. 2024-03-01T00:00:00+00:00.
const LastModLayout = "2006-01-02T15:04:05-07:00"

// Change frequencies.
const (
	Daily   = "daily"
	Weekly  = "weekly"
	Monthly = "monthly"
	Yearly  = "yearly"
)

// InlineTags keep their text on the tag line when formatted.
var InlineTags = []string{"loc", "lastmod", "changefreq", "priority"}

// URL is one <url> entry.
type URL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

type urlSet struct {
	XMLName xml.Name `xml:"urlset"`
	XMLNS   string   `xml:"xmlns,attr"`
	URLs    []URL    `xml:"url"`
}

// Generate renders the sitemap for items. Drafts are skipped. The homepage
// comes first; item entries follow sorted by loc.
func Generate(items []content.Item, siteURL string, now time.Time) ([]byte, error) {
	raw, err := xml.Marshal(urlSet{XMLNS: Namespace, URLs: Entries(items, siteURL, now)})
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRender, "failed to marshal sitemap").Build()
	}
	out, err := xmlfmt.Format(raw, xmlfmt.Options{Indent: "  ", Inline: InlineTags})
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRender, "failed to format sitemap").Build()
	}
	return out, nil
}

// Entries computes the sitemap URLs without serializing them.
func Entries(items []content.Item, siteURL string, now time.Time) []URL {
	home := URL{Loc: siteURL, ChangeFreq: Daily, Priority: "1.0"}
	var newest time.Time

	entries := make([]URL, 0, len(items))
	for _, item := range items {
		if item.IsDraft {
			continue
		}
		u := URL{
			Loc:        ItemURL(siteURL, item),
			ChangeFreq: Weekly,
			Priority:   Priority(item, now),
		}
		if t, ok := content.ParseDate(item.EffectiveDate()); ok {
			u.LastMod = t.Format(LastModLayout)
			u.ChangeFreq = ChangeFreq(t, now)
			if t.After(newest) {
				newest = t
			}
		}
		entries = append(entries, u)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Loc < entries[j].Loc })

	if !newest.IsZero() {
		home.LastMod = newest.Format(LastModLayout)
	}
	return append([]URL{home}, entries...)
}

// ItemURL is the absolute URL of an item page.
func ItemURL(siteURL string, item content.Item) string {
	return item.AbsoluteURL(siteURL)
}

// ChangeFreq buckets the age of t relative to now.
func ChangeFreq(t, now time.Time) string {
	days := now.Sub(t).Hours() / 24
	switch {
	case days < 7:
		return Daily
	case days < 30:
		return Weekly
	case days < 365:
		return Monthly
	default:
		return Yearly
	}
}

// Priority scores an item between 0.1 and 0.9 with one decimal. Featured
// items and recently published items rank higher. Arithmetic is done in
// tenths to avoid float drift.
func Priority(item content.Item, now time.Time) string {
	tenths := 5
	if item.HasTag("featured") {
		tenths += 3
	}
	if t, ok := content.ParseDate(item.PublishedAt); ok {
		days := now.Sub(t).Hours() / 24
		switch {
		case days < 30:
			tenths += 2
		case days < 90:
			tenths++
		}
	}
	tenths = max(1, min(9, tenths))
	return fmt.Sprintf("%d.%d", tenths/10, tenths%10)
}
