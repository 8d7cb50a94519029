package scheduler

import (
	"context"
	"time"

	"github.com/LJTian/TheNews/internal/logger"
	"github.com/LJTian/TheNews/internal/pipeline"
	"github.com/robfig/cron/v3"
)

// startupDelay postpones the first background run so the first page load
// is not competing with it.
const startupDelay = 15 * time.Second

// Runner is the part of the orchestrator the scheduler drives.
type Runner interface {
	Run(ctx context.Context) (pipeline.Outcome, error)
}

// Scheduler keeps the cache warm by running the pipeline on a cron spec.
// OnOutcome, when set, receives the result of every run that displayed
// something.
type Scheduler struct {
	cron      *cron.Cron
	runner    Runner
	timeout   time.Duration
	OnOutcome func(pipeline.Outcome)
}

func New(spec string, runner Runner, timeout time.Duration) (*Scheduler, error) {
	c := cron.New()

	s := &Scheduler{
		cron:    c,
		runner:  runner,
		timeout: timeout,
	}

	if _, err := c.AddFunc(spec, s.runOnce); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Cron() *cron.Cron {
	return s.cron
}

func (s *Scheduler) Start() {
	s.cron.Start()
	time.AfterFunc(startupDelay, s.runOnce)
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce runs the pipeline immediately.
func (s *Scheduler) RunOnce() {
	s.runOnce()
}

func (s *Scheduler) runOnce() {
	logger.S().Info("start refresh job...")

	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	out, err := s.runner.Run(ctx)
	if err != nil {
		logger.S().Errorf("refresh job error: %v", err)
		if len(out.Results.Stories) == 0 {
			return
		}
	}
	if out.Stale {
		logger.S().Warnf("refresh job served stale cache: %v", out.FetchErr)
	}
	if s.OnOutcome != nil {
		s.OnOutcome(out)
	}
	logger.S().Infof("refresh job done, stories=%d cached=%t", len(out.Results.Stories), out.FromCache)
}
