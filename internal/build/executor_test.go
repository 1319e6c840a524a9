package build

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/contentbuild/internal/discovery"
	"git.home.luguber.info/inful/contentbuild/internal/incremental"
	"git.home.luguber.info/inful/contentbuild/internal/markdown"
	"git.home.luguber.info/inful/contentbuild/internal/metrics"
	"git.home.luguber.info/inful/contentbuild/internal/observability"
	"git.home.luguber.info/inful/contentbuild/internal/storage"
	"git.home.luguber.info/inful/contentbuild/internal/templates"
)

func candidatesFor(t *testing.T, f *fixture) []discovery.Candidate {
	t.Helper()
	cs, err := discovery.Discover(f.cfg.Content.BaseDir, f.cfg.Content.Topics, discovery.Filter{})
	require.NoError(t, err)
	return cs
}

func TestExecutor_EmptyInput(t *testing.T) {
	store := storage.NewMemoryStore()
	e := NewExecutor(ExecutorConfig{OutputDir: t.TempDir(), Cache: incremental.NewBuildCache(store)})

	report := e.Build(context.Background(), nil)
	require.True(t, report.NothingToRebuild)
	require.Equal(t, metrics.BuildOutcomeNoop, report.Outcome())
	require.Equal(t, 0, store.Saves(), "nothing to rebuild must not touch the cache")
	require.NotEmpty(t, report.BuildID)
}

func TestExecutor_ManyItemsAcrossBatches(t *testing.T) {
	f := newFixture(t, "blog")
	for i := range 23 {
		f.writeItem(t, "blog", fmt.Sprintf("post-%02d", i), fmt.Sprintf("---\ntitle: Post %d\n---\none two three\n", i))
	}
	cache := incremental.NewBuildCache(f.store)
	e := NewExecutor(ExecutorConfig{
		OutputDir:   f.cfg.Build.OutputDir,
		EmitJSON:    true,
		Parallelism: 4,
		BatchSize:   5,
		Cache:       cache,
	})

	ctx := observability.WithBuildID(context.Background(), "build-123")
	report := e.Build(ctx, candidatesFor(t, f))
	require.Equal(t, 23, report.Successful)
	require.Equal(t, 0, report.Failed)
	require.Equal(t, "build-123", report.BuildID)
	require.Len(t, report.Outputs, 23)
	require.Equal(t, 23, cache.Len())
	require.Equal(t, 1, f.store.Saves(), "cache is flushed once per build")
}

func TestExecutor_WritesJSONAndHTML(t *testing.T) {
	f := newFixture(t, "blog")
	path := f.writeItem(t, "blog", "a", "---\ntitle: A & B\npublished: 2024-05-20\ntags: go, xml\n---\n# Heading\n\nSome *text* here.\n")

	page, err := templates.ParsePage("page", `<h1>{{.Item.Title}}</h1>{{.HTML}}<a href="{{.URL}}">{{.Site.Title}}</a>`)
	require.NoError(t, err)

	cache := incremental.NewBuildCache(nil)
	e := NewExecutor(ExecutorConfig{
		OutputDir: f.cfg.Build.OutputDir,
		EmitJSON:  true,
		EmitHTML:  true,
		Renderer:  markdown.NewGoldmarkRenderer(markdown.Options{}),
		Page:      page,
		Site:      templates.Site{Title: "Example", URL: "https://example.com"},
		Cache:     cache,
	})
	report := e.Build(context.Background(), candidatesFor(t, f))
	require.Equal(t, 1, report.Successful)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(readFile(t, f.out("blog", "a.json")), &doc))
	require.Equal(t, "a", doc["slug"])
	require.Equal(t, "https://example.com/blog/a", doc["url"])
	require.EqualValues(t, 5, doc["word_count"])
	require.EqualValues(t, 1, doc["reading_time_minutes"])
	require.NotEmpty(t, doc["content_fingerprint"])
	fm := doc["frontmatter"].(map[string]any)
	require.Equal(t, "2024-05-20", fm["published_at"])
	require.Equal(t, []any{"go", "xml"}, fm["tags"])
	require.Contains(t, doc["html"], "<em>text</em>")

	raw := string(readFile(t, f.out("blog", "a.json")))
	require.Less(t, strings.Index(raw, `"slug"`), strings.Index(raw, `"word_count"`), "field order is fixed")

	html := string(readFile(t, f.out("html", "blog", "a.html")))
	require.Contains(t, html, "<h1>A &amp; B</h1>")
	require.Contains(t, html, `<h1 id="heading">Heading</h1>`)
	require.Contains(t, html, `<a href="https://example.com/blog/a">Example</a>`)

	entry, ok := cache.Entry(path)
	require.True(t, ok)
	require.Equal(t, []string{f.out("blog", "a.json"), f.out("html", "blog", "a.html")}, entry.OutputPaths)
	require.True(t, entry.Fingerprint.Equal(fixtureTime))
}

func TestExecutor_RenderFailureIsPerItem(t *testing.T) {
	f := newFixture(t, "blog")
	f.writeItem(t, "blog", "a", "---\ntitle: A\n---\nok\n")
	f.writeItem(t, "blog", "b", "---\ntitle: B\n---\nexplode\n")

	renderer := markdown.RendererFunc(func(src []byte) ([]byte, error) {
		if strings.Contains(string(src), "explode") {
			return nil, errors.New("renderer exploded")
		}
		return []byte("<p>ok</p>"), nil
	})
	e := NewExecutor(ExecutorConfig{OutputDir: f.cfg.Build.OutputDir, EmitJSON: true, Renderer: renderer})

	report := e.Build(context.Background(), candidatesFor(t, f))
	require.Equal(t, 1, report.Successful)
	require.Equal(t, 1, report.Failed)
	require.Equal(t, "blog/b", report.Failures[0].Key)
	require.Equal(t, metrics.BuildOutcomePartial, report.Outcome())
	require.NoFileExists(t, filepath.Join(f.cfg.Build.OutputDir, "blog", "b.json"))
}

func TestExecutor_CacheFlushFailureDoesNotFailBuild(t *testing.T) {
	f := newFixture(t, "blog")
	f.writeItem(t, "blog", "a", docA)
	f.store.SaveErr = errors.New("disk full")

	e := NewExecutor(ExecutorConfig{OutputDir: f.cfg.Build.OutputDir, EmitJSON: true, Cache: f.cache})
	report := e.Build(context.Background(), candidatesFor(t, f))
	require.Equal(t, 1, report.Successful)
	require.Equal(t, metrics.BuildOutcomeSuccess, report.Outcome())
}
