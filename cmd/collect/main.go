package main

import (
	"context"
	"os"

	"github.com/LJTian/TheNews/internal/collector"
	"github.com/LJTian/TheNews/internal/config"
	"github.com/LJTian/TheNews/internal/logger"
	"github.com/LJTian/TheNews/internal/news"
	"github.com/LJTian/TheNews/internal/pipeline"
	"github.com/LJTian/TheNews/internal/storage"
	"github.com/spf13/cobra"
)

type logRenderer struct{}

func (logRenderer) Render(_ context.Context, s news.Story) error {
	logger.S().Infof("headline: %s (%s)", s.Title, s.URL)
	return nil
}

// 仅执行一轮采集后退出：适合手动触发或外部 cron 调用
func main() {
	var force bool
	cmd := &cobra.Command{
		Use:          "collect",
		Short:        "Run one collection cycle and exit",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		Run: func(*cobra.Command, []string) {
			collect(force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "fetch even if the cached stories are still fresh")
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func collect(force bool) {
	cfg := config.Load()
	logger.Init(cfg.Env)
	defer logger.Sync()
	log := logger.S()

	store, err := storage.NewStore(cfg)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}
	defer store.Close()

	orch := pipeline.New(store, collector.FromConfig(cfg), logRenderer{})
	if en := collector.EnricherFromConfig(cfg); en != nil {
		orch.Enricher = en
	}
	orch.Timeout = 2 * cfg.FetchTimeout

	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.FetchTimeout)
	defer cancel()

	run := orch.Run
	if force {
		run = orch.Refresh
	}
	out, err := run(ctx)
	if err != nil && out.Results.Empty() {
		log.Errorf("collect failed: %v", err)
		logger.Sync()
		os.Exit(1)
	}
	if err != nil {
		log.Warnf("collect: %v", err)
	}
	log.Infof("collect done, stories=%d cached=%t stale=%t", len(out.Results.Stories), out.FromCache, out.Stale)
}
