package config

import (
	"runtime"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	DefaultSiteURL         = "https://example.com"
	DefaultOutputDir       = "public"
	DefaultCacheDir        = ".contentbuild-cache"
	DefaultBatchSize       = 10
	DefaultMaxFeedItems    = 20
	DefaultFeedFile        = "rss.xml"
	DefaultSitemapFile     = "sitemap.xml"
	DefaultLanguage        = "en-us"
	DefaultDescription     = "Articles and content"
	DefaultDebounce        = 300 * time.Millisecond
	DefaultRefreshInterval = time.Hour
)

// ApplyDefaults fills unset fields. It is idempotent.
func (c *Config) ApplyDefaults() {
	if c.Content.BaseDir == "" {
		c.Content.BaseDir = "content"
	}
	title := cases.Title(language.English)
	for key, t := range c.Content.Topics {
		if t.Name == "" {
			t.Name = title.String(key)
		}
		c.Content.Topics[key] = t
	}

	if c.Site.URL == "" {
		c.Site.URL = DefaultSiteURL
	}
	if c.Site.Language == "" {
		c.Site.Language = DefaultLanguage
	}
	if c.Site.Description == "" {
		c.Site.Description = DefaultDescription
	}
	if c.Site.Title == "" {
		c.Site.Title = c.Site.Author
	}

	b := &c.Build
	if b.OutputDir == "" {
		b.OutputDir = DefaultOutputDir
	}
	if b.CacheDir == "" {
		b.CacheDir = DefaultCacheDir
	}
	if b.CacheBackend == "" {
		b.CacheBackend = CacheBackendJSON
	}
	if b.BatchSize <= 0 {
		b.BatchSize = DefaultBatchSize
	}
	if b.Parallelism <= 0 {
		b.Parallelism = runtime.NumCPU()
	}
	if b.FeedFile == "" {
		b.FeedFile = DefaultFeedFile
	}
	if b.SitemapFile == "" {
		b.SitemapFile = DefaultSitemapFile
	}
	if b.MaxFeedItems <= 0 {
		b.MaxFeedItems = DefaultMaxFeedItems
	}

	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = DefaultDebounce
	}
	if c.Watch.RefreshInterval <= 0 {
		c.Watch.RefreshInterval = DefaultRefreshInterval
	}
}
