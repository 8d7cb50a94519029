package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LJTian/TheNews/internal/collector"
	"github.com/LJTian/TheNews/internal/config"
	"github.com/LJTian/TheNews/internal/news"
	"github.com/LJTian/TheNews/internal/processor"
	"github.com/LJTian/TheNews/internal/selector"
	"github.com/LJTian/TheNews/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Unix(1_700_000_000, 0)

type fakeFetcher struct {
	calls    atomic.Int32
	articles []collector.Article
	err      error
}

func (f *fakeFetcher) Name() string { return "fake" }

func (f *fakeFetcher) Fetch(context.Context, config.Options) ([]collector.Article, error) {
	f.calls.Add(1)
	return f.articles, f.err
}

type recordingRenderer struct {
	mu      sync.Mutex
	stories []news.Story
}

func (r *recordingRenderer) Render(_ context.Context, s news.Story) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stories = append(r.stories, s)
	return nil
}

func (r *recordingRenderer) rendered() []news.Story {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]news.Story(nil), r.stories...)
}

type harness struct {
	orch     *Orchestrator
	kv       *storage.MemoryKV
	store    *storage.Store
	fetcher  *fakeFetcher
	renderer *recordingRenderer
}

func newHarness(t *testing.T, f *fakeFetcher) *harness {
	t.Helper()
	kv := storage.NewMemoryKV()
	store := &storage.Store{KV: kv}
	r := &recordingRenderer{}
	o := New(store, []collector.Fetcher{f}, r)
	o.Now = func() time.Time { return fixedNow }
	o.Decoder = &processor.Decoder{Rand: rand.New(rand.NewPCG(1, 1))}
	o.Selector = &selector.Selector{Filter: selector.DefaultFilter(), Rand: rand.New(rand.NewPCG(2, 2))}
	return &harness{orch: o, kv: kv, store: store, fetcher: f, renderer: r}
}

func cachedResults() news.ResultSet {
	return news.ResultSet{Stories: []news.Story{
		{Title: "Cached one", URL: "https://cache.com/1", Source: "cache.com"},
		{Title: "Cached two", URL: "https://cache.com/2", Source: "cache.com"},
	}}
}

func liveArticles(n int) []collector.Article {
	out := make([]collector.Article, n)
	for i := range out {
		out[i] = collector.Article{
			Title:       fmt.Sprintf("Live %d", i),
			Description: "fresh",
			URL:         fmt.Sprintf("https://live.com/a/%d", i),
		}
	}
	return out
}

func (h *harness) seedCache(t *testing.T, age time.Duration) {
	t.Helper()
	require.NoError(t, h.store.SaveCache(context.Background(), cachedResults(), fixedNow.Add(-age)))
}

func TestRunFreshCacheSkipsNetwork(t *testing.T) {
	h := newHarness(t, &fakeFetcher{articles: liveArticles(5)})
	h.seedCache(t, 30*time.Second)
	writes := h.kv.Writes()

	out, err := h.orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(0), h.fetcher.calls.Load())
	assert.True(t, out.FromCache)
	assert.False(t, out.UpdateCache)
	assert.Equal(t, cachedResults(), out.Results)
	require.Len(t, h.renderer.rendered(), 1)
	assert.Contains(t, []string{"Cached one", "Cached two"}, h.renderer.rendered()[0].Title)
	assert.Equal(t, writes, h.kv.Writes(), "cache hit must not write")
}

func TestRunExpiredCacheFetches(t *testing.T) {
	h := newHarness(t, &fakeFetcher{articles: liveArticles(5)})
	h.seedCache(t, 60*time.Second)

	out, err := h.orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), h.fetcher.calls.Load())
	assert.True(t, out.UpdateCache)
	assert.False(t, out.FromCache)
	assert.Len(t, out.Results.Stories, 5)

	entry, err := h.store.LoadCache(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Unix(), entry.Timestamp)
	assert.Equal(t, out.Results, entry.Results)
}

func TestRunEmptyCacheFetches(t *testing.T) {
	h := newHarness(t, &fakeFetcher{articles: liveArticles(3)})

	out, err := h.orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), h.fetcher.calls.Load())
	assert.Equal(t, "live.com", out.Story.Source)
}

func TestRunFetchFailureFallsBackToCache(t *testing.T) {
	fetchErr := &collector.FetchError{URL: "x", StatusCode: 502, Err: collector.ErrServiceUnavailable}
	h := newHarness(t, &fakeFetcher{err: fetchErr})
	h.seedCache(t, time.Hour)
	writes := h.kv.Writes()

	out, err := h.orch.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, out.Stale)
	assert.False(t, out.UpdateCache)
	assert.ErrorIs(t, out.FetchErr, collector.ErrServiceUnavailable)
	assert.Equal(t, cachedResults(), out.Results)
	require.Len(t, h.renderer.rendered(), 1)
	assert.Equal(t, writes, h.kv.Writes(), "stale fallback must not rewrite the cache")
}

func TestRunFetchFailureWithoutCacheIsTerminal(t *testing.T) {
	fetchErr := &collector.FetchError{URL: "x", StatusCode: 502, Err: collector.ErrServiceUnavailable}
	h := newHarness(t, &fakeFetcher{err: fetchErr})

	_, err := h.orch.Run(context.Background())
	assert.ErrorIs(t, err, collector.ErrServiceUnavailable)
	assert.Empty(t, h.renderer.rendered())
	assert.Equal(t, int32(1), h.fetcher.calls.Load(), "no automatic retry")
}

func TestRunNoStoriesFallsBack(t *testing.T) {
	h := newHarness(t, &fakeFetcher{})
	h.seedCache(t, time.Hour)

	out, err := h.orch.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Stale)
	assert.ErrorIs(t, out.FetchErr, ErrNoStories)
}

func TestRefreshIgnoresFreshCache(t *testing.T) {
	h := newHarness(t, &fakeFetcher{articles: liveArticles(4)})
	h.seedCache(t, time.Second)

	out, err := h.orch.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), h.fetcher.calls.Load())
	assert.True(t, out.UpdateCache)
}

func TestDisplayAllFilteredStillPersists(t *testing.T) {
	h := newHarness(t, &fakeFetcher{})
	rs := news.ResultSet{Stories: []news.Story{{Title: "Reactions", URL: "https://x.com/1"}}}

	_, err := h.orch.Display(context.Background(), rs, true)
	assert.ErrorIs(t, err, selector.ErrNoEligibleStory)
	assert.Empty(t, h.renderer.rendered())

	entry, err := h.store.LoadCache(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rs, entry.Results)
}

func TestRunWithNewsAPICategories(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sources", func(w http.ResponseWriter, r *http.Request) {
		ids := map[string][]string{"business": {"bloomberg", "ft"}, "tech": {"wired", "verge"}}[r.URL.Query().Get("category")]
		list := []map[string]string{}
		for _, id := range ids {
			list = append(list, map[string]string{"id": id})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"sources": list})
	})
	mux.HandleFunc("/articles", func(w http.ResponseWriter, r *http.Request) {
		source := r.URL.Query().Get("source")
		var articles []collector.Article
		for i := 0; i < 10; i++ {
			articles = append(articles, collector.Article{
				Title: fmt.Sprintf("%s %d", source, i),
				URL:   fmt.Sprintf("https://%s.com/a/b/%d", source, i),
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"articles": articles})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := collector.NewClient(collector.ClientOptions{Timeout: 2 * time.Second})
	api := collector.NewNewsAPIFetcher(client, "k", srv.URL+"/sources", srv.URL+"/articles")

	h := newHarness(t, &fakeFetcher{})
	h.orch.Fetchers = []collector.Fetcher{api}
	opts := config.DefaultOptions()
	opts.Categories = "business;tech"
	require.NoError(t, h.store.SaveOptions(context.Background(), opts))

	out, err := h.orch.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Results.Stories, news.MaxStories)
	for _, s := range out.Results.Stories {
		assert.Equal(t, processor.Domain(s.URL), s.Source)
		assert.Contains(t, []string{"bloomberg.com", "ft.com", "wired.com", "verge.com"}, s.Source)
	}
}

type stubEnricher struct{}

func (stubEnricher) Enrich(_ context.Context, stories []news.Story) []news.Story {
	out := append([]news.Story(nil), stories...)
	for i := range out {
		if out[i].Abstract == "" {
			out[i].Abstract = "enriched"
		}
	}
	return out
}

func TestRunAppliesEnricher(t *testing.T) {
	f := &fakeFetcher{articles: []collector.Article{{Title: "No abstract", URL: "https://a.com/1"}}}
	h := newHarness(t, f)
	h.orch.Enricher = stubEnricher{}

	out, err := h.orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "enriched", out.Story.Abstract)
}

// gatedFetcher blocks until release is closed, so callers can pile up on one
// in-flight run.
type gatedFetcher struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (g *gatedFetcher) Name() string { return "gated" }

func (g *gatedFetcher) Fetch(ctx context.Context, _ config.Options) ([]collector.Article, error) {
	g.calls.Add(1)
	g.started <- struct{}{}
	select {
	case <-g.release:
		return liveArticles(3), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestCancelledCallerDoesNotCancelSharedRun(t *testing.T) {
	h := newHarness(t, &fakeFetcher{})
	g := newGatedFetcher()
	h.orch.Fetchers = []collector.Fetcher{g}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := h.orch.Run(ctxA)
		errA <- err
	}()
	<-g.started

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	time.AfterFunc(50*time.Millisecond, func() { close(g.release) })
	out, err := h.orch.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, out.UpdateCache)
	assert.Len(t, out.Results.Stories, 3)
	assert.Equal(t, int32(1), g.calls.Load(), "second caller joins the run already in flight")
}

func TestConcurrentRunAndRefreshShareOneFetch(t *testing.T) {
	h := newHarness(t, &fakeFetcher{})
	g := newGatedFetcher()
	h.orch.Fetchers = []collector.Fetcher{g}

	refreshed := make(chan Outcome, 1)
	go func() {
		out, err := h.orch.Refresh(context.Background())
		assert.NoError(t, err)
		refreshed <- out
	}()
	<-g.started

	time.AfterFunc(50*time.Millisecond, func() { close(g.release) })
	out, err := h.orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, out.Results, (<-refreshed).Results)
	assert.Equal(t, int32(1), g.calls.Load())
}

func TestRunTimeoutBoundsSharedRun(t *testing.T) {
	h := newHarness(t, &fakeFetcher{})
	g := newGatedFetcher()
	h.orch.Fetchers = []collector.Fetcher{g}
	h.orch.Timeout = 50 * time.Millisecond

	_, err := h.orch.Run(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
