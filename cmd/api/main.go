package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/LJTian/TheNews/internal/api"
	"github.com/LJTian/TheNews/internal/collector"
	"github.com/LJTian/TheNews/internal/config"
	"github.com/LJTian/TheNews/internal/logger"
	"github.com/LJTian/TheNews/internal/pipeline"
	"github.com/LJTian/TheNews/internal/scheduler"
	"github.com/LJTian/TheNews/internal/storage"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.Env)
	defer logger.Sync()
	log := logger.S()

	store, err := storage.NewStore(cfg)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	board := api.NewBoard()
	orch := pipeline.New(store, collector.FromConfig(cfg), board)
	if en := collector.EnricherFromConfig(cfg); en != nil {
		orch.Enricher = en
	}
	orch.Timeout = 2 * cfg.FetchTimeout

	cycler := pipeline.NewCycler(orch)
	cycler.Start(ctx)

	resetCycler := func(out pipeline.Outcome) {
		cycler.Reset(out.Results, out.Options)
	}

	s, err := scheduler.New(cfg.CronSpec, orch, 2*cfg.FetchTimeout)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}
	s.OnOutcome = resetCycler
	s.Start()
	defer s.Stop()

	r := gin.Default()
	r.Use(api.RequestID())
	// 配置了访问密码时启用 Basic Auth（/health 仍然免认证）
	if cfg.BasicAuthUser != "" && cfg.BasicAuthPass != "" {
		r.Use(api.BasicAuth(cfg.BasicAuthUser, cfg.BasicAuthPass))
	}

	apiServer := api.NewServer(store, board, orch)
	apiServer.OnOutcome = resetCycler
	apiServer.OnOptions = func(opts config.Options) {
		entry, err := store.LoadCache(ctx)
		if err != nil {
			log.Warnf("reload cache after options change: %v", err)
			return
		}
		cycler.Reset(entry.Results, opts)
	}
	apiServer.RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("starting api server at %s ...", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server exit: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("server shutdown: %v", err)
	}
}
