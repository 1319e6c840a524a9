package build

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/contentbuild/internal/config"
	"git.home.luguber.info/inful/contentbuild/internal/discovery"
	ferrors "git.home.luguber.info/inful/contentbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/contentbuild/internal/incremental"
	"git.home.luguber.info/inful/contentbuild/internal/storage"
	"git.home.luguber.info/inful/contentbuild/internal/templates"
)

var (
	fixtureTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	fixedNow    = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	root  string
	cfg   *config.Config
	store *storage.MemoryStore
	cache *incremental.BuildCache
}

func newFixture(t *testing.T, topics ...string) *fixture {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{
		Content: config.ContentConfig{
			BaseDir: filepath.Join(root, "content"),
			Topics:  map[string]config.Topic{},
		},
		Site: config.SiteConfig{URL: "https://example.com", Title: "Example"},
		Build: config.BuildConfig{
			OutputDir:   filepath.Join(root, "public"),
			BatchSize:   2,
			Parallelism: 2,
		},
	}
	for _, topic := range topics {
		cfg.Content.Topics[topic] = config.Topic{}
		require.NoError(t, os.MkdirAll(filepath.Join(cfg.Content.BaseDir, topic), 0o755))
	}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	store := storage.NewMemoryStore()
	return &fixture{root: root, cfg: cfg, store: store, cache: incremental.NewBuildCache(store)}
}

func (f *fixture) service() *Service {
	return NewService(f.cfg, f.cache).WithClock(func() time.Time { return fixedNow })
}

func (f *fixture) writeItem(t *testing.T, topic, slug, doc string) string {
	t.Helper()
	dir := filepath.Join(f.cfg.Content.BaseDir, topic, slug)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "index.md")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	require.NoError(t, os.Chtimes(path, fixtureTime, fixtureTime))
	return path
}

func (f *fixture) out(parts ...string) string {
	return filepath.Join(append([]string{f.cfg.Build.OutputDir}, parts...)...)
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

const (
	docA = "---\ntitle: A\npublished_at: 2024-05-20\ntags: [go]\n---\nHello world from a.\n"
	docB = "---\ntitle: B\npublished_at: 2024-05-10\n---\nHello from b.\n"
)

func TestRun_BuildsThenSkipsEverythingOnSecondRun(t *testing.T) {
	f := newFixture(t, "blog")
	f.writeItem(t, "blog", "a", docA)
	f.writeItem(t, "blog", "b", docB)
	ctx := context.Background()

	res, err := f.service().Run(ctx, Request{})
	require.NoError(t, err)
	require.Equal(t, 2, res.Report.Successful)
	require.Equal(t, "2 built, 0 failed, 0 skipped (cached)", res.Report.Summary())
	require.Equal(t, 1, f.store.Saves())

	aggregates := map[string][]byte{}
	for _, name := range []string{IndexFile, "rss.xml", "sitemap.xml"} {
		aggregates[name] = readFile(t, f.out(name))
	}
	itemJSON := readFile(t, f.out("blog", "a.json"))

	res, err = f.service().Run(ctx, Request{})
	require.NoError(t, err)
	require.True(t, res.Report.NothingToRebuild)
	require.Equal(t, 0, res.Report.Successful)
	require.Equal(t, 2, res.Report.Skipped)
	for _, agg := range res.Aggregates {
		require.False(t, agg.Changed, "aggregate %s rewritten", agg.Name)
	}
	for name, before := range aggregates {
		require.Equal(t, string(before), string(readFile(t, f.out(name))), name)
	}
	require.Equal(t, string(itemJSON), string(readFile(t, f.out("blog", "a.json"))))
}

func TestRun_TouchedSourceIsRebuilt(t *testing.T) {
	f := newFixture(t, "blog")
	a := f.writeItem(t, "blog", "a", docA)
	f.writeItem(t, "blog", "b", docB)
	ctx := context.Background()

	_, err := f.service().Run(ctx, Request{})
	require.NoError(t, err)

	later := fixtureTime.Add(time.Hour)
	require.NoError(t, os.Chtimes(a, later, later))

	res, err := f.service().Run(ctx, Request{})
	require.NoError(t, err)
	require.Equal(t, 1, res.Report.Successful)
	require.Equal(t, 1, res.Report.Skipped)

	entry, ok := f.cache.Entry(a)
	require.True(t, ok)
	require.True(t, entry.Fingerprint.Equal(later))
}

func TestRun_ForceRebuildsEverything(t *testing.T) {
	f := newFixture(t, "blog")
	f.writeItem(t, "blog", "a", docA)
	f.writeItem(t, "blog", "b", docB)
	ctx := context.Background()

	_, err := f.service().Run(ctx, Request{})
	require.NoError(t, err)

	res, err := f.service().Run(ctx, Request{Force: true})
	require.NoError(t, err)
	require.Equal(t, 2, res.Report.Successful)
	require.Equal(t, 0, res.Report.Skipped)
}

func TestRun_NoCacheLeavesPersistedCacheAlone(t *testing.T) {
	f := newFixture(t, "blog")
	f.writeItem(t, "blog", "a", docA)

	res, err := f.service().Run(context.Background(), Request{NoCache: true})
	require.NoError(t, err)
	require.Equal(t, 1, res.Report.Successful)
	require.Equal(t, 0, f.store.Saves())
	require.Equal(t, 0, f.cache.Len())
}

func TestRun_PartialFailureIsIsolated(t *testing.T) {
	f := newFixture(t, "blog")
	f.writeItem(t, "blog", "a", docA)
	f.writeItem(t, "blog", "b", docB)
	bad := f.writeItem(t, "blog", "c", "---\ndescription: no title\n---\nbody\n")
	ctx := context.Background()

	res, err := f.service().Run(ctx, Request{})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrItemsFailed))
	require.Equal(t, 2, res.Report.Successful)
	require.Equal(t, 1, res.Report.Failed)
	require.Len(t, res.Report.Failures, 1)
	require.Equal(t, bad, res.Report.Failures[0].Path)
	require.Equal(t, ferrors.CategoryValidation, res.Report.Failures[0].Category)
	require.FileExists(t, f.out("blog", "a.json"))
	require.NoFileExists(t, f.out("blog", "c.json"))

	// The failed item is not cached, so the next run retries only it.
	res, err = f.service().Run(ctx, Request{})
	require.Error(t, err)
	require.Equal(t, 0, res.Report.Successful)
	require.Equal(t, 1, res.Report.Failed)
	require.Equal(t, 2, res.Report.Skipped)
}

type parsedRSS struct {
	Items []struct {
		Link string `xml:"link"`
	} `xml:"channel>item"`
}

type parsedSitemap struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

func TestRun_DraftsExcludedEverywhere(t *testing.T) {
	f := newFixture(t, "blog")
	f.writeItem(t, "blog", "a", docA)
	f.writeItem(t, "blog", "b", "---\ntitle: B\nis_draft: true\n---\nDraft body.\n")

	res, err := f.service().Run(context.Background(), Request{})
	require.NoError(t, err)
	require.Equal(t, 1, res.Report.Successful)
	require.Equal(t, 1, res.Drafts)

	require.FileExists(t, f.out("blog", "a.json"))
	require.NoFileExists(t, f.out("blog", "b.json"))

	var index []map[string]any
	require.NoError(t, json.Unmarshal(readFile(t, f.out(IndexFile)), &index))
	require.Len(t, index, 1)
	require.Equal(t, "a", index[0]["slug"])

	var rss parsedRSS
	require.NoError(t, xml.Unmarshal(readFile(t, f.out("rss.xml")), &rss))
	require.Len(t, rss.Items, 1)
	require.Equal(t, "https://example.com/blog/a", rss.Items[0].Link)

	var sm parsedSitemap
	require.NoError(t, xml.Unmarshal(readFile(t, f.out("sitemap.xml")), &sm))
	require.Len(t, sm.URLs, 2)
	require.Equal(t, "https://example.com", sm.URLs[0].Loc)
	require.Equal(t, "https://example.com/blog/a", sm.URLs[1].Loc)
}

func TestRun_PrunesArtifactsOfDraftsAndRemovedSources(t *testing.T) {
	f := newFixture(t, "blog")
	a := f.writeItem(t, "blog", "a", docA)
	b := f.writeItem(t, "blog", "b", docB)
	ctx := context.Background()

	_, err := f.service().Run(ctx, Request{})
	require.NoError(t, err)
	require.FileExists(t, f.out("blog", "a.json"))
	require.FileExists(t, f.out("blog", "b.json"))

	f.writeItem(t, "blog", "a", "---\ntitle: A\ndraft: true\n---\nnow a draft\n")
	require.NoError(t, os.RemoveAll(filepath.Dir(b)))

	res, err := f.service().Run(ctx, Request{})
	require.NoError(t, err)
	require.Equal(t, 2, res.Pruned)
	require.NoFileExists(t, f.out("blog", "a.json"))
	require.NoFileExists(t, f.out("blog", "b.json"))
	_, ok := f.cache.Entry(a)
	require.False(t, ok)
	require.Equal(t, 0, f.cache.Len())
	require.Equal(t, 2, f.store.Saves(), "pruning alone must persist the cache")
}

func TestRun_FilteredBuildKeepsAggregatesComplete(t *testing.T) {
	f := newFixture(t, "blog", "notes")
	f.writeItem(t, "blog", "a", docA)
	f.writeItem(t, "notes", "n", "---\ntitle: N\npublished_at: 2024-05-15\n---\nnote\n")

	res, err := f.service().Run(context.Background(), Request{Filter: discovery.Filter{Topic: "notes"}})
	require.NoError(t, err)
	require.Equal(t, 1, res.Report.Successful)
	require.NoFileExists(t, f.out("blog", "a.json"))
	require.FileExists(t, f.out("notes", "n.json"))

	var index []map[string]any
	require.NoError(t, json.Unmarshal(readFile(t, f.out(IndexFile)), &index))
	require.Len(t, index, 2)
}

func TestRun_FilterMatchingNothingFails(t *testing.T) {
	f := newFixture(t, "blog", "notes")
	f.writeItem(t, "blog", "a", docA)

	_, err := f.service().Run(context.Background(), Request{Filter: discovery.Filter{Topic: "notes"}})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNothingMatched))
	require.Equal(t, ferrors.CategoryNotFound, ferrors.GetCategory(err))

	_, err = f.service().Run(context.Background(), Request{Filter: discovery.Filter{Topic: "blog", Slug: "missing"}})
	require.Error(t, err)
	require.Equal(t, ferrors.CategoryNotFound, ferrors.GetCategory(err))
}

func TestRun_EmptyTree(t *testing.T) {
	f := newFixture(t, "blog")

	res, err := f.service().Run(context.Background(), Request{})
	require.NoError(t, err)
	require.True(t, res.Report.NothingToRebuild)
	require.FileExists(t, f.out("sitemap.xml"))

	_, err = f.service().Run(context.Background(), Request{FailOnEmpty: true})
	require.True(t, errors.Is(err, ErrNothingMatched))
}

func TestRun_SkipFlags(t *testing.T) {
	f := newFixture(t, "blog")
	f.writeItem(t, "blog", "a", docA)

	res, err := f.service().Run(context.Background(), Request{SkipJSON: true, SkipRSS: true, SkipSitemap: true})
	require.NoError(t, err)
	require.Equal(t, 1, res.Report.Successful)
	require.Empty(t, res.Aggregates)
	require.NoFileExists(t, f.out("blog", "a.json"))
	require.NoFileExists(t, f.out(IndexFile))
	require.NoFileExists(t, f.out("rss.xml"))
}

func TestRun_CanceledContext(t *testing.T) {
	f := newFixture(t, "blog")
	f.writeItem(t, "blog", "a", docA)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.service().Run(ctx, Request{})
	require.Error(t, err)
	require.Equal(t, ferrors.CategoryRuntime, ferrors.GetCategory(err))
	require.NoFileExists(t, f.out(IndexFile))
}

func TestRun_SkipJSONThenFullRunWritesJSON(t *testing.T) {
	f := newFixture(t, "blog")
	f.writeItem(t, "blog", "a", docA)
	ctx := context.Background()

	res, err := f.service().Run(ctx, Request{SkipJSON: true})
	require.NoError(t, err)
	require.Equal(t, 1, res.Report.Successful)
	require.NoFileExists(t, f.out("blog", "a.json"))

	res, err = f.service().Run(ctx, Request{})
	require.NoError(t, err)
	require.Equal(t, "1 built, 0 failed, 0 skipped (cached)", res.Report.Summary())
	require.FileExists(t, f.out("blog", "a.json"))

	res, err = f.service().Run(ctx, Request{})
	require.NoError(t, err)
	require.True(t, res.Report.NothingToRebuild)
}

func TestRun_OutputDirOverrideRebuildsIntoNewDir(t *testing.T) {
	f := newFixture(t, "blog")
	f.writeItem(t, "blog", "a", docA)
	ctx := context.Background()

	_, err := f.service().Run(ctx, Request{})
	require.NoError(t, err)
	require.FileExists(t, f.out("blog", "a.json"))

	other := filepath.Join(f.root, "other")
	res, err := f.service().Run(ctx, Request{OutputDir: other})
	require.NoError(t, err)
	require.Equal(t, 1, res.Report.Successful)
	require.Equal(t, 0, res.Report.Skipped)
	require.FileExists(t, filepath.Join(other, "blog", "a.json"))
	require.FileExists(t, filepath.Join(other, IndexFile))

	entry, ok := f.cache.Entry(f.cache.Paths()[0])
	require.True(t, ok)
	require.Equal(t, []string{filepath.Join(other, "blog", "a.json")}, entry.OutputPaths)
}

func TestRun_PageTemplateChangeRebuildsHTML(t *testing.T) {
	f := newFixture(t, "blog")
	f.writeItem(t, "blog", "a", docA)
	ctx := context.Background()

	v1, err := templates.ParsePage("page.html", "<h1>{{.Item.Title}}</h1>")
	require.NoError(t, err)
	_, err = f.service().WithPage(v1).Run(ctx, Request{})
	require.NoError(t, err)
	require.Equal(t, "<h1>A</h1>", string(readFile(t, f.out("html", "blog", "a.html"))))

	res, err := f.service().WithPage(v1).Run(ctx, Request{})
	require.NoError(t, err)
	require.True(t, res.Report.NothingToRebuild)

	v2, err := templates.ParsePage("page.html", "<h2>{{.Item.Title}}</h2>")
	require.NoError(t, err)
	res, err = f.service().WithPage(v2).Run(ctx, Request{})
	require.NoError(t, err)
	require.Equal(t, 1, res.Report.Successful)
	require.Equal(t, "<h2>A</h2>", string(readFile(t, f.out("html", "blog", "a.html"))))
}

func TestRun_QuotedDateWithDraftSibling(t *testing.T) {
	f := newFixture(t, "blog")
	f.writeItem(t, "blog", "a", "---\ntitle: A\npublished_at: \"2023-01-01\"\n---\nPublished body.\n")
	f.writeItem(t, "blog", "b", "---\ntitle: B\ndraft: true\n---\nDraft body.\n")

	res, err := f.service().Run(context.Background(), Request{})
	require.NoError(t, err)
	require.Equal(t, 1, res.Report.Successful)
	require.Equal(t, 1, res.Drafts)

	var index []map[string]any
	require.NoError(t, json.Unmarshal(readFile(t, f.out(IndexFile)), &index))
	require.Len(t, index, 1)
	require.Equal(t, "a", index[0]["slug"])
	fm, ok := index[0]["frontmatter"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "2023-01-01", fm["published_at"])

	var rss parsedRSS
	require.NoError(t, xml.Unmarshal(readFile(t, f.out("rss.xml")), &rss))
	require.Len(t, rss.Items, 1)
	require.Equal(t, "https://example.com/blog/a", rss.Items[0].Link)

	var sm parsedSitemap
	require.NoError(t, xml.Unmarshal(readFile(t, f.out("sitemap.xml")), &sm))
	require.Len(t, sm.URLs, 2)
	require.Equal(t, "https://example.com", sm.URLs[0].Loc)
	require.Equal(t, "https://example.com/blog/a", sm.URLs[1].Loc)
}
