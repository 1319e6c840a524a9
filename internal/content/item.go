package content

import (
	"net/url"
	"os"
	"strings"

	"github.com/inful/mdfp"

	"git.home.luguber.info/inful/contentbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/contentbuild/internal/frontmatter"
)

// WordsPerMinute is the reading speed used for ReadingTimeMinutes.
const WordsPerMinute = 200

// Item is one parsed content item. Items are rebuilt from source on every
// pass and never mutated after NewItem returns.
type Item struct {
	Topic      string
	Slug       string
	SourcePath string
	Frontmatter
	Body string

	WordCount          int
	ReadingTimeMinutes int
}

// NewItem assembles an Item and derives its word count and reading time.
func NewItem(topic, slug, sourcePath string, fm Frontmatter, body string) Item {
	wc := len(strings.Fields(body))
	return Item{
		Topic:              topic,
		Slug:               slug,
		SourcePath:         sourcePath,
		Frontmatter:        fm,
		Body:               body,
		WordCount:          wc,
		ReadingTimeMinutes: (wc + WordsPerMinute - 1) / WordsPerMinute,
	}
}

// LoadFile reads and parses the index file at path.
func LoadFile(path, topic, slug string) (Item, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Item{}, errors.WrapError(err, errors.CategoryFileSystem, "failed to read content file").
			WithContext("path", path).
			Build()
	}
	fm, body, err := Parse(raw)
	if err != nil {
		if ce, ok := errors.AsClassified(err); ok {
			return Item{}, ce.WithContext("path", path)
		}
		return Item{}, err
	}
	return NewItem(topic, slug, path, fm, body), nil
}

// URLPath returns the site-relative path of the item, "topic/slug".
func (i Item) URLPath() string {
	return i.Topic + "/" + i.Slug
}

// AbsoluteURL joins siteURL and the escaped item path.
func (i Item) AbsoluteURL(siteURL string) string {
	return strings.TrimRight(siteURL, "/") + "/" + url.PathEscape(i.Topic) + "/" + url.PathEscape(i.Slug)
}

// Key identifies the item uniquely within a build.
func (i Item) Key() string { return i.URLPath() }

// ContentFingerprint hashes the canonical frontmatter and body with mdfp.
// It is informational output only; staleness is decided by mtime.
func (i Item) ContentFingerprint() (string, error) {
	fields := i.Fields()
	delete(fields, mdfp.FingerprintField)

	serialized, err := frontmatter.Canonical(fields)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryInternal, "failed to serialize frontmatter").Build()
	}
	fm := strings.TrimSuffix(string(serialized), "\n")
	return mdfp.CalculateFingerprintFromParts(fm, i.Body), nil
}
