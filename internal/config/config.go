// Package config loads the contentbuild YAML configuration: the topic
// registry, site metadata used by the feed and sitemap, and build/watch
// tuning. The pipeline consumes a validated *Config read-only.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/contentbuild/internal/foundation/errors"
)

// DefaultConfigFile is used when no --config flag is given.
const DefaultConfigFile = "contentbuild.yaml"

// Config represents the application configuration.
type Config struct {
	Content ContentConfig `yaml:"content"`
	Site    SiteConfig    `yaml:"site"`
	Build   BuildConfig   `yaml:"build"`
	Watch   WatchConfig   `yaml:"watch"`

	// path of the file this config was loaded from; relative paths resolve against its directory.
	source string
}

// ContentConfig locates content on disk.
type ContentConfig struct {
	BaseDir string           `yaml:"base_dir"`
	Topics  map[string]Topic `yaml:"topics"`
}

// Topic is a named category of content with its own directory under base_dir.
type Topic struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	// Directory defaults to the topic key.
	Directory string `yaml:"directory,omitempty"`
}

// SiteConfig holds site-wide metadata for the RSS channel and sitemap.
type SiteConfig struct {
	URL            string `yaml:"url"`
	Title          string `yaml:"title,omitempty"`
	Author         string `yaml:"author,omitempty"`
	Description    string `yaml:"description,omitempty"`
	Language       string `yaml:"language,omitempty"`
	Copyright      string `yaml:"copyright,omitempty"`
	ManagingEditor string `yaml:"managing_editor,omitempty"`
	WebMaster      string `yaml:"webmaster,omitempty"`
}

// BuildConfig tunes the build executor and artifact layout.
type BuildConfig struct {
	OutputDir    string       `yaml:"output_dir"`
	CacheDir     string       `yaml:"cache_dir"`
	CacheBackend CacheBackend `yaml:"cache_backend"`
	BatchSize    int          `yaml:"batch_size"`
	Parallelism  int          `yaml:"parallelism"`
	// Template is an html/template file for per-item pages. HTML output is
	// skipped when it is empty or missing.
	Template     string `yaml:"template,omitempty"`
	FeedFile     string `yaml:"feed_file"`
	SitemapFile  string `yaml:"sitemap_file"`
	MaxFeedItems int    `yaml:"max_feed_items"`
}

// WatchConfig configures the long-running watch command.
type WatchConfig struct {
	Debounce        time.Duration `yaml:"debounce"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	MetricsAddr     string        `yaml:"metrics_addr,omitempty"`
}

// CacheBackend selects the build cache persistence implementation.
type CacheBackend string

const (
	CacheBackendJSON   CacheBackend = "json"
	CacheBackendSQLite CacheBackend = "sqlite"
)

// Load reads, expands, defaults and validates the configuration file at path.
func Load(path string) (*Config, error) {
	loadEnvFiles(filepath.Dir(path))

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigError("configuration file not found").
				WithContext("path", path).
				Build()
		}
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").
			Fatal().
			WithContext("path", path).
			Build()
	}

	cfg, err := Parse([]byte(os.ExpandEnv(string(data))))
	if err != nil {
		return nil, err
	}
	cfg.source = path
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// Parse decodes YAML configuration bytes, applies defaults and validates.
// Relative paths are left as-is.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to unmarshal config").
			Fatal().
			Build()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Source returns the file the configuration was loaded from, if any.
func (c *Config) Source() string { return c.source }

// TopicDir returns the absolute-or-relative directory of a topic under base_dir.
func (c *Config) TopicDir(key string) string {
	t := c.Content.Topics[key]
	dir := t.Directory
	if dir == "" {
		dir = key
	}
	return filepath.Join(c.Content.BaseDir, dir)
}

// resolvePaths makes relative directories relative to the config file location.
func (c *Config) resolvePaths(base string) {
	for _, p := range []*string{&c.Content.BaseDir, &c.Build.OutputDir, &c.Build.CacheDir, &c.Build.Template} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}

// Init writes an example configuration file.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.ConfigError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", path)).Build()
	}

	example := Config{
		Content: ContentConfig{
			BaseDir: "content",
			Topics: map[string]Topic{
				"blog": {Name: "Blog", Description: "Articles and notes"},
			},
		},
		Site: SiteConfig{
			URL:         "https://example.com",
			Title:       "My Site",
			Author:      "Site Author",
			Description: "Articles and content",
			Language:    "en-us",
		},
	}
	example.ApplyDefaults()

	data, err := yaml.Marshal(&example)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal config").Build()
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write config file").
			WithContext("path", path).
			Build()
	}
	return nil
}
