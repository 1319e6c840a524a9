package build

import (
	"bytes"
	"encoding/json"

	"git.home.luguber.info/inful/contentbuild/internal/content"
)

// frontmatterDocument fixes the key order of the frontmatter object.
type frontmatterDocument struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Tagline     string         `json:"tagline,omitempty"`
	PublishedAt string         `json:"published_at,omitempty"`
	UpdatedAt   string         `json:"updated_at,omitempty"`
	IsDraft     bool           `json:"is_draft"`
	Tags        []string       `json:"tags"`
	Image       string         `json:"image,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// itemDocument is the per-item JSON artifact.
type itemDocument struct {
	Slug               string              `json:"slug"`
	Topic              string              `json:"topic"`
	URL                string              `json:"url"`
	Frontmatter        frontmatterDocument `json:"frontmatter"`
	Body               string              `json:"body"`
	HTML               string              `json:"html,omitempty"`
	WordCount          int                 `json:"word_count"`
	ReadingTimeMinutes int                 `json:"reading_time_minutes"`
	ContentFingerprint string              `json:"content_fingerprint"`
}

// summaryDocument is one entry of all.json. Bodies are left out so the
// index stays small.
type summaryDocument struct {
	Slug               string              `json:"slug"`
	Topic              string              `json:"topic"`
	URL                string              `json:"url"`
	Frontmatter        frontmatterDocument `json:"frontmatter"`
	WordCount          int                 `json:"word_count"`
	ReadingTimeMinutes int                 `json:"reading_time_minutes"`
}

func newFrontmatterDocument(fm content.Frontmatter) frontmatterDocument {
	tags := fm.Tags
	if tags == nil {
		tags = []string{}
	}
	return frontmatterDocument{
		Title:       fm.Title,
		Description: fm.Description,
		Tagline:     fm.Tagline,
		PublishedAt: fm.PublishedAt,
		UpdatedAt:   fm.UpdatedAt,
		IsDraft:     fm.IsDraft,
		Tags:        tags,
		Image:       fm.Image,
		Extra:       fm.Extra,
	}
}

func encodeItem(item content.Item, siteURL string, html []byte) ([]byte, error) {
	fp, err := item.ContentFingerprint()
	if err != nil {
		return nil, err
	}
	return marshal(itemDocument{
		Slug:               item.Slug,
		Topic:              item.Topic,
		URL:                item.AbsoluteURL(siteURL),
		Frontmatter:        newFrontmatterDocument(item.Frontmatter),
		Body:               item.Body,
		HTML:               string(html),
		WordCount:          item.WordCount,
		ReadingTimeMinutes: item.ReadingTimeMinutes,
		ContentFingerprint: fp,
	})
}

func encodeIndex(items []content.Item, siteURL string) ([]byte, error) {
	docs := make([]summaryDocument, 0, len(items))
	for _, item := range items {
		docs = append(docs, summaryDocument{
			Slug:               item.Slug,
			Topic:              item.Topic,
			URL:                item.AbsoluteURL(siteURL),
			Frontmatter:        newFrontmatterDocument(item.Frontmatter),
			WordCount:          item.WordCount,
			ReadingTimeMinutes: item.ReadingTimeMinutes,
		})
	}
	return marshal(docs)
}

// marshal indents v and keeps HTML characters unescaped so embedded markup
// stays readable.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
