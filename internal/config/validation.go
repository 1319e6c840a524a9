package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"slices"
	"strings"

	"git.home.luguber.info/inful/contentbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/contentbuild/internal/foundation/normalization"
)

var cacheBackends = normalization.New("cache backend", map[string]CacheBackend{
	string(CacheBackendJSON):   CacheBackendJSON,
	string(CacheBackendSQLite): CacheBackendSQLite,
})

// Validate checks the configuration after defaults have been applied.
func (c *Config) Validate() error {
	if len(c.Content.Topics) == 0 {
		return errors.ConfigError("at least one topic must be configured under content.topics").Build()
	}
	for key, t := range c.Content.Topics {
		if err := validateSegment(key); err != nil {
			return errors.WrapError(err, errors.CategoryConfig, "invalid topic key").
				Fatal().
				WithContext("topic", key).
				Build()
		}
		if t.Directory != "" && (filepath.IsAbs(t.Directory) || slices.Contains(strings.Split(filepath.ToSlash(t.Directory), "/"), "..")) {
			return errors.ConfigError("topic directory must be relative to content.base_dir").
				WithContext("topic", key).
				WithContext("directory", t.Directory).
				Build()
		}
	}

	u, err := url.Parse(c.Site.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.ConfigError("site.url must be an absolute URL").
			WithContext("url", c.Site.URL).
			Build()
	}

	backend, err := cacheBackends.Normalize(string(c.Build.CacheBackend))
	if err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "unsupported build.cache_backend").Fatal().Build()
	}
	c.Build.CacheBackend = backend

	for name, file := range map[string]string{"feed_file": c.Build.FeedFile, "sitemap_file": c.Build.SitemapFile} {
		if filepath.Base(file) != file {
			return errors.ConfigError(name + " must be a plain file name").
				WithContext("value", file).
				Build()
		}
	}
	return nil
}

// validateSegment ensures a topic key is usable as a single path segment and URL segment.
func validateSegment(s string) error {
	switch {
	case s == "":
		return fmt.Errorf("empty name")
	case s == "." || s == "..":
		return fmt.Errorf("%q is not a valid name", s)
	case strings.ContainsAny(s, `/\`):
		return fmt.Errorf("%q contains a path separator", s)
	case strings.HasPrefix(s, "."):
		return fmt.Errorf("%q must not start with a dot", s)
	}
	return nil
}
