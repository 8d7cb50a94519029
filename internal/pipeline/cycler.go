package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/LJTian/TheNews/internal/config"
	"github.com/LJTian/TheNews/internal/logger"
	"github.com/LJTian/TheNews/internal/news"
	"github.com/robfig/cron/v3"
)

// Cycler re-displays a random story from the last results on a fixed
// interval. It never fetches; only Reset changes what it cycles through.
type Cycler struct {
	orch *Orchestrator
	cron *cron.Cron

	mu       sync.Mutex
	ctx      context.Context
	entry    cron.EntryID
	results  news.ResultSet
	interval time.Duration
}

func NewCycler(o *Orchestrator) *Cycler {
	return &Cycler{
		orch: o,
		cron: cron.New(),
		ctx:  context.Background(),
	}
}

// Start runs the timer until ctx is done or Stop is called.
func (c *Cycler) Start(ctx context.Context) {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()

	c.cron.Start()
	go func() {
		<-ctx.Done()
		c.Stop()
	}()
}

// Stop cancels the timer and waits for a running tick to finish.
func (c *Cycler) Stop() {
	<-c.cron.Stop().Done()
}

// Reset swaps the results being cycled. Cycling is disabled when opts says
// so, when the interval is not positive or when there is nothing to show.
func (c *Cycler) Reset(results news.ResultSet, opts config.Options) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.results = results
	interval := opts.CycleInterval()
	enabled := opts.Cycle && interval > 0 && !results.Empty()

	if c.entry != 0 && (!enabled || interval != c.interval) {
		c.cron.Remove(c.entry)
		c.entry = 0
	}
	if enabled && c.entry == 0 {
		c.entry = c.cron.Schedule(cron.Every(interval), cron.FuncJob(c.tick))
		c.interval = interval
	}
}

// Active reports whether a cycling timer is scheduled.
func (c *Cycler) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entry != 0
}

func (c *Cycler) tick() {
	c.mu.Lock()
	results, ctx := c.results, c.ctx
	c.mu.Unlock()

	if _, err := c.orch.Display(ctx, results, false); err != nil {
		logger.S().Warnf("cycle display: %v", err)
	}
}
