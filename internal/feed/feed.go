// Package feed renders the sitewide RSS 2.0 feed.
package feed

import (
	"encoding/xml"
	"log/slog"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"git.home.luguber.info/inful/contentbuild/internal/content"
	ferrors "git.home.luguber.info/inful/contentbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/contentbuild/internal/logfields"
	"git.home.luguber.info/inful/contentbuild/internal/markdown"
	"git.home.luguber.info/inful/contentbuild/internal/xmlfmt"
)

// Namespaces declared on the <rss> element.
const (
	AtomNamespace    = "http://www.w3.org/2005/Atom"
	ContentNamespace = "http://purl.org/rss/1.0/modules/content/"
)

// DefaultMaxItems caps the number of feed items.
const DefaultMaxItems = 20

// Generator is written to <generator>.
const Generator = "contentbuild"

// InlineTags keep their text on the tag line when formatted.
var InlineTags = []string{
	"title", "link", "description", "pubDate", "lastBuildDate", "guid", "category",
	"language", "generator", "managingEditor", "webMaster", "copyright", "content:encoded",
}

// Channel carries site metadata for the <channel> element.
type Channel struct {
	Title          string
	Link           string
	Description    string
	Language       string
	ManagingEditor string
	WebMaster      string
	Copyright      string
	// SelfURL is the public URL of the feed itself, used for atom:link.
	SelfURL string
}

// Options tunes generation.
type Options struct {
	MaxItems int
	// Renderer produces content:encoded. When nil the element is omitted.
	Renderer markdown.Renderer
	Logger   *slog.Logger
}

type rss struct {
	XMLName   xml.Name `xml:"rss"`
	Version   string   `xml:"version,attr"`
	AtomNS    string   `xml:"xmlns:atom,attr"`
	ContentNS string   `xml:"xmlns:content,attr"`
	Channel   channel  `xml:"channel"`
}

type channel struct {
	Title          string   `xml:"title"`
	Link           string   `xml:"link"`
	Description    string   `xml:"description"`
	Language       string   `xml:"language"`
	Copyright      string   `xml:"copyright,omitempty"`
	ManagingEditor string   `xml:"managingEditor,omitempty"`
	WebMaster      string   `xml:"webMaster,omitempty"`
	Generator      string   `xml:"generator"`
	LastBuildDate  string   `xml:"lastBuildDate,omitempty"`
	AtomLink       atomLink `xml:"atom:link"`
	Items          []item   `xml:"item"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type item struct {
	Title       string     `xml:"title"`
	Link        string     `xml:"link"`
	Description string     `xml:"description"`
	PubDate     string     `xml:"pubDate,omitempty"`
	GUID        guid       `xml:"guid"`
	Categories  []string   `xml:"category"`
	Enclosure   *enclosure `xml:"enclosure"`
	Content     string     `xml:"content:encoded,omitempty"`
}

type guid struct {
	IsPermaLink string `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type enclosure struct {
	URL    string `xml:"url,attr"`
	Length string `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

// Generate renders the feed. Drafts are excluded, items are ordered newest
// first by published_at and truncated to opts.MaxItems.
func Generate(items []content.Item, ch Channel, opts Options) ([]byte, error) {
	if opts.MaxItems <= 0 {
		opts.MaxItems = DefaultMaxItems
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if ch.Language == "" {
		ch.Language = "en-us"
	}

	selected := Select(items, opts.MaxItems)

	doc := rss{
		Version:   "2.0",
		AtomNS:    AtomNamespace,
		ContentNS: ContentNamespace,
		Channel: channel{
			Title:          ch.Title,
			Link:           ch.Link,
			Description:    ch.Description,
			Language:       ch.Language,
			Copyright:      ch.Copyright,
			ManagingEditor: ch.ManagingEditor,
			WebMaster:      ch.WebMaster,
			Generator:      Generator,
			AtomLink:       atomLink{Href: ch.SelfURL, Rel: "self", Type: "application/rss+xml"},
			Items:          make([]item, 0, len(selected)),
		},
	}

	var newest time.Time
	for _, it := range selected {
		link := it.AbsoluteURL(ch.Link)
		entry := item{
			Title:       it.Title,
			Link:        link,
			Description: it.Summary(),
			GUID:        guid{IsPermaLink: "true", Value: link},
			Categories:  it.Tags,
		}
		if t, ok := content.ParseDate(it.PublishedAt); ok {
			entry.PubDate = t.Format(time.RFC1123Z)
			if t.After(newest) {
				newest = t
			}
		}
		if it.Image != "" {
			entry.Enclosure = &enclosure{URL: resolve(ch.Link, it.Image), Length: "0", Type: mimeType(it.Image)}
		}
		if opts.Renderer != nil {
			body, err := renderContent(opts.Renderer, it.Body)
			if err != nil {
				opts.Logger.Warn("Skipping feed content for item",
					logfields.Path(it.SourcePath), logfields.Error(err))
			} else {
				entry.Content = body
			}
		}
		doc.Channel.Items = append(doc.Channel.Items, entry)
	}
	if !newest.IsZero() {
		doc.Channel.LastBuildDate = newest.Format(time.RFC1123Z)
	}

	raw, err := xml.Marshal(doc)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRender, "failed to marshal feed").Build()
	}
	out, err := xmlfmt.Format(raw, xmlfmt.Options{Indent: "  ", Inline: InlineTags})
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRender, "failed to format feed").Build()
	}
	return out, nil
}

// Select returns the published items that make it into the feed, in feed
// order. Missing published_at sorts as the oldest; ties fall back to
// topic then slug.
func Select(items []content.Item, limit int) []content.Item {
	out := make([]content.Item, 0, len(items))
	for _, it := range items {
		if !it.IsDraft {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.PublishedAt != b.PublishedAt {
			return a.PublishedAt > b.PublishedAt
		}
		if a.Topic != b.Topic {
			return a.Topic < b.Topic
		}
		return a.Slug < b.Slug
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func renderContent(r markdown.Renderer, body string) (string, error) {
	rendered, err := r.Render([]byte(body))
	if err != nil {
		return "", err
	}
	return Sanitize(rendered)
}

func resolve(siteURL, ref string) string {
	base, err := url.Parse(strings.TrimRight(siteURL, "/") + "/")
	if err != nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if u.IsAbs() {
		return u.String()
	}
	return base.ResolveReference(&url.URL{Path: strings.TrimLeft(u.Path, "/"), RawQuery: u.RawQuery}).String()
}

var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".avif": "image/avif",
	".svg":  "image/svg+xml",
}

func mimeType(ref string) string {
	if u, err := url.Parse(ref); err == nil {
		ref = u.Path
	}
	if t, ok := imageTypes[strings.ToLower(path.Ext(ref))]; ok {
		return t
	}
	return "application/octet-stream"
}
