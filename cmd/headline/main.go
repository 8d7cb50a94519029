package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/LJTian/TheNews/internal/collector"
	"github.com/LJTian/TheNews/internal/config"
	"github.com/LJTian/TheNews/internal/logger"
	"github.com/LJTian/TheNews/internal/pipeline"
	"github.com/LJTian/TheNews/internal/render"
	"github.com/LJTian/TheNews/internal/storage"
	"github.com/spf13/cobra"
)

type flags struct {
	refresh  bool
	cycle    bool
	cycleSet bool
	interval int
	width    int
}

func main() {
	var f flags
	cmd := &cobra.Command{
		Use:          "headline",
		Short:        "Show a random news headline in the terminal",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f.cycleSet = cmd.Flags().Changed("cycle")
			return run(cmd.Context(), f)
		},
	}
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "ignore the cache and fetch now")
	cmd.Flags().BoolVar(&f.cycle, "cycle", false, "keep showing a new story from the same results until interrupted (default: stored option)")
	cmd.Flags().IntVar(&f.interval, "interval", 0, "seconds between stories when cycling (default: stored option)")
	cmd.Flags().IntVar(&f.width, "width", 80, "wrap width, 0 to disable")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, f flags) error {
	cfg := config.Load()
	logger.Init(cfg.Env)
	defer logger.Sync()

	store, err := storage.NewStore(cfg)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer store.Close()

	orch := pipeline.New(store, collector.FromConfig(cfg), render.NewTerminal(os.Stdout, f.width))
	if en := collector.EnricherFromConfig(cfg); en != nil {
		orch.Enricher = en
	}
	orch.Timeout = 2 * cfg.FetchTimeout

	first := orch.Run
	if f.refresh {
		first = orch.Refresh
	}
	out, err := first(ctx)
	if err != nil && out.Results.Empty() {
		return err
	}
	if err != nil {
		logger.S().Warnf("headline: %v", err)
	}
	opts := cycleOptions(out.Options, f)
	if !opts.Cycle || opts.CycleInterval() <= 0 {
		return nil
	}

	cycler := pipeline.NewCycler(orch)
	cycler.Start(ctx)
	cycler.Reset(out.Results, opts)
	<-ctx.Done()
	cycler.Stop()
	return nil
}

// cycleOptions applies the command line overrides to the stored options.
func cycleOptions(stored config.Options, f flags) config.Options {
	opts := stored
	if f.cycleSet {
		opts.Cycle = f.cycle
	}
	if f.interval > 0 {
		opts.Interval = config.Seconds(f.interval)
	}
	return opts
}
