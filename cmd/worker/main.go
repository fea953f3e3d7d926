package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/geocoder89/requesthub/internal/clients"
	"github.com/geocoder89/requesthub/internal/config"
	"github.com/geocoder89/requesthub/internal/db"
	"github.com/geocoder89/requesthub/internal/notifications"
	"github.com/geocoder89/requesthub/internal/observability"
	"github.com/geocoder89/requesthub/internal/queue/worker"
	"github.com/geocoder89/requesthub/internal/repo/postgres"
)

func main() {
	cfg := config.Load()
	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, "requesthub-worker", cfg.OtelEndpoint)

	if err != nil {
		log.Warn("tracer init failed, continuing without traces", "err", err)
		shutdownTracer = func(context.Context) error { return nil }
	}

	pool, err := db.NewPool(cfg.DBURL)

	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	prom := observability.NewProm(prometheus.DefaultRegisterer)

	jobsRepo := postgres.NewJobsRepo(pool, prom)

	notifier := notifications.NewProtectedNotifier(
		notifications.NewLogNotifier(),
		clients.BreakerConfig{},
	)

	hostname, _ := os.Hostname()

	w := worker.New(worker.Config{
		PollInterval:  2 * time.Second,
		WorkerID:      hostname,
		Concurrency:   4,
		ShutdownGrace: 10 * time.Second,
		LockTTL:       5 * time.Minute,
	}, jobsRepo, notifier, prom, log)

	healthSrv := &http.Server{
		Addr:              ":8091",
		Handler:           w.HealthHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("health server error", "err", err)
		}
	}()

	log.Info("worker starting", "id", hostname)

	if err := w.Run(ctx); err != nil {
		log.Error("worker stopped with error", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = healthSrv.Shutdown(shutdownCtx)

	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Warn("tracer shutdown failed", "err", err)
	}
}
