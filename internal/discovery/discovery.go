// Package discovery enumerates content items on disk. An item is a
// directory directly under a topic directory that holds an index file.
package discovery

import (
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"git.home.luguber.info/inful/contentbuild/internal/config"
	ferrors "git.home.luguber.info/inful/contentbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/contentbuild/internal/logfields"
)

// IndexFiles lists recognised index file names in order of preference.
var IndexFiles = []string{"index.md", "index.mdx"}

// Candidate is a discovered content item that has not been parsed yet.
type Candidate struct {
	Topic string
	Slug  string
	Dir   string // Item directory
	Path  string // Index file inside Dir
}

// Key returns "topic/slug".
func (c Candidate) Key() string { return c.Topic + "/" + c.Slug }

// Filter restricts discovery to one topic and/or one slug. Empty fields match everything.
type Filter struct {
	Topic string
	Slug  string
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool { return f.Topic == "" && f.Slug == "" }

// Discover lists candidates for the given topics under baseDir.
//
// Topics are visited in sorted key order and item directories in name
// order, so the result is stable across runs. A topic filter that is not
// in the registry fails with ErrInvalidTopic; a slug filter matching
// nothing fails with ErrContentNotFound; an otherwise empty result returns
// ErrNoContent alongside the empty slice.
func Discover(baseDir string, topics map[string]config.Topic, f Filter) ([]Candidate, error) {
	keys := slices.Sorted(maps.Keys(topics))
	if f.Topic != "" {
		if _, ok := topics[f.Topic]; !ok {
			return nil, ferrors.WrapError(ErrInvalidTopic, ferrors.CategoryValidation, fmt.Sprintf("unknown topic %q", f.Topic)).
				UserAction().
				WithContext("known_topics", strings.Join(keys, ",")).
				Build()
		}
		keys = []string{f.Topic}
	}

	var candidates []Candidate
	for _, key := range keys {
		dir := topics[key].Directory
		if dir == "" {
			dir = key
		}
		found, err := scanTopic(key, filepath.Join(baseDir, dir), f.Slug)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, found...)
	}

	if len(candidates) == 0 {
		if f.Slug != "" {
			return nil, ferrors.WrapError(ErrContentNotFound, ferrors.CategoryNotFound, fmt.Sprintf("no item with slug %q", f.Slug)).
				UserAction().
				WithContext("topic", f.Topic).
				Build()
		}
		return []Candidate{}, ErrNoContent
	}

	slog.Debug("Discovered content", logfields.Count(len(candidates)), slog.Int("topics", len(keys)))
	return candidates, nil
}

func scanTopic(topic, topicDir, slug string) ([]Candidate, error) {
	entries, err := os.ReadDir(topicDir)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("Topic directory not found", logfields.Topic(topic), logfields.Path(topicDir))
			return nil, nil
		}
		return nil, ferrors.WrapError(fmt.Errorf("%w: %w", ErrTopicDirUnreadable, err), ferrors.CategoryDiscovery, "failed to list topic directory").
			Fatal().
			WithContext("path", topicDir).
			Build()
	}

	var out []Candidate
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || skipDir(name) {
			continue
		}
		if slug != "" && name != slug {
			continue
		}
		itemDir := filepath.Join(topicDir, name)
		index, ok := findIndex(itemDir)
		if !ok {
			slog.Debug("Skipping directory without index file", logfields.Topic(topic), logfields.Path(itemDir))
			continue
		}
		out = append(out, Candidate{Topic: topic, Slug: name, Dir: itemDir, Path: index})
	}
	return out, nil
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

// findIndex returns the first existing regular index file in dir.
func findIndex(dir string) (string, bool) {
	for _, name := range IndexFiles {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p, true
		}
	}
	return "", false
}
