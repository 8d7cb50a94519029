package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LJTian/TheNews/internal/collector"
	"github.com/LJTian/TheNews/internal/config"
	"github.com/LJTian/TheNews/internal/logger"
	"github.com/LJTian/TheNews/internal/news"
	"github.com/LJTian/TheNews/internal/processor"
	"github.com/LJTian/TheNews/internal/selector"
	"github.com/LJTian/TheNews/internal/storage"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrNoStories is returned when a live fetch succeeded but produced nothing
// to show.
var ErrNoStories = errors.New("pipeline: fetch returned no stories")

const (
	flightKey         = "pipeline"
	defaultRunTimeout = 30 * time.Second
)

// Renderer shows a single story. Implementations must not block on I/O
// beyond their own output.
type Renderer interface {
	Render(ctx context.Context, story news.Story) error
}

// Enricher fills in missing story details after decoding.
type Enricher interface {
	Enrich(ctx context.Context, stories []news.Story) []news.Story
}

// Outcome describes what a pipeline run displayed.
type Outcome struct {
	Options     config.Options
	Results     news.ResultSet
	Story       news.Story
	UpdateCache bool
	FromCache   bool
	// Stale is set when a failed fetch fell back to the cached results;
	// FetchErr then holds the failure.
	Stale    bool
	FetchErr error
}

type Orchestrator struct {
	Store    *storage.Store
	Fetchers []collector.Fetcher
	Decoder  *processor.Decoder
	Enricher Enricher
	Selector *selector.Selector
	Renderer Renderer
	Now      func() time.Time
	// Timeout bounds a whole run, independent of the callers waiting on it.
	Timeout  time.Duration

	group singleflight.Group
}

func New(store *storage.Store, fetchers []collector.Fetcher, r Renderer) *Orchestrator {
	return &Orchestrator{
		Store:    store,
		Fetchers: fetchers,
		Decoder:  processor.NewDecoder(),
		Selector: selector.New(),
		Renderer: r,
		Now:      config.Now,
		Timeout:  defaultRunTimeout,
	}
}

// Run displays cached results while they are fresh and fetches otherwise.
func (o *Orchestrator) Run(ctx context.Context) (Outcome, error) {
	return o.do(ctx, false)
}

// Refresh fetches regardless of cache age. A Refresh issued while another
// run is in flight shares that run's outcome.
func (o *Orchestrator) Refresh(ctx context.Context) (Outcome, error) {
	return o.do(ctx, true)
}

// do collapses concurrent calls into one execution. The shared run is
// detached from the caller that started it and bounded by Timeout; each
// caller stops waiting when its own ctx is done.
func (o *Orchestrator) do(ctx context.Context, force bool) (Outcome, error) {
	ch := o.group.DoChan(flightKey, func() (any, error) {
		runCtx := context.WithoutCancel(ctx)
		if o.Timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(runCtx, o.Timeout)
			defer cancel()
		}
		return o.run(runCtx, force)
	})

	select {
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	case res := <-ch:
		out, _ := res.Val.(Outcome)
		return out, res.Err
	}
}

func (o *Orchestrator) run(ctx context.Context, force bool) (Outcome, error) {
	opts, entry, err := o.Store.Load(ctx)
	if err != nil {
		return Outcome{}, err
	}
	now := o.now()

	if !force && entry.Fresh(now, opts.CacheExpiryDuration()) {
		logger.S().Debugf("using cached stories, age=%s expiry=%ds", entry.Age(now), opts.CacheExpiry)
		story, err := o.Display(ctx, entry.Results, false)
		return Outcome{Options: opts, Results: entry.Results, Story: story, FromCache: true}, err
	}

	results, fetchErr := o.fetch(ctx, opts)
	if fetchErr != nil {
		if entry.Results.Empty() {
			logger.S().Errorf("fetch failed, no cached stories available: %v", fetchErr)
			return Outcome{Options: opts}, fetchErr
		}
		logger.S().Warnf("fetch failed, displaying cached stories: %v", fetchErr)
		story, err := o.Display(ctx, entry.Results, false)
		return Outcome{
			Options:   opts,
			Results:   entry.Results,
			Story:     story,
			FromCache: true,
			Stale:     true,
			FetchErr:  fetchErr,
		}, err
	}

	story, err := o.Display(ctx, results, true)
	o.archive(ctx, results, now)
	return Outcome{Options: opts, Results: results, Story: story, UpdateCache: true}, err
}

// fetch runs every fetcher concurrently; a single failure fails the cycle.
func (o *Orchestrator) fetch(ctx context.Context, opts config.Options) (news.ResultSet, error) {
	perFetcher := make([][]collector.Article, len(o.Fetchers))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range o.Fetchers {
		g.Go(func() error {
			items, err := f.Fetch(gctx, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", f.Name(), err)
			}
			logger.S().Infof("%s done, fetched=%d items", f.Name(), len(items))
			perFetcher[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return news.ResultSet{}, err
	}

	var all []collector.Article
	for _, items := range perFetcher {
		all = append(all, items...)
	}
	results := o.Decoder.Decode(all)
	if results.Empty() {
		return news.ResultSet{}, ErrNoStories
	}
	if o.Enricher != nil {
		results.Stories = o.Enricher.Enrich(ctx, results.Stories)
	}
	return results, nil
}

// Display picks one story, renders it and, when updateCache is set, persists
// results as the new cache entry. Results are persisted even if no story is
// eligible for display.
func (o *Orchestrator) Display(ctx context.Context, results news.ResultSet, updateCache bool) (news.Story, error) {
	var errs []error

	story, err := o.Selector.Pick(results.Stories)
	if err != nil {
		errs = append(errs, err)
	} else if err := o.Renderer.Render(ctx, story); err != nil {
		errs = append(errs, fmt.Errorf("render: %w", err))
	}

	if updateCache {
		if err := o.Store.SaveCache(ctx, results, o.now()); err != nil {
			errs = append(errs, err)
		}
	}
	return story, errors.Join(errs...)
}

func (o *Orchestrator) archive(ctx context.Context, results news.ResultSet, at time.Time) {
	if o.Store.DB == nil {
		return
	}
	names := make([]string, 0, len(o.Fetchers))
	for _, f := range o.Fetchers {
		names = append(names, f.Name())
	}
	extra := map[string]any{"fetchers": strings.Join(names, ",")}
	if err := o.Store.ArchiveStories(ctx, results.Stories, at, processor.StoryID, extra); err != nil {
		logger.S().Warnf("archive stories: %v", err)
	}
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}
