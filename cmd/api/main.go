package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/geocoder89/requesthub/internal/admission"
	"github.com/geocoder89/requesthub/internal/auth"
	"github.com/geocoder89/requesthub/internal/cache"
	"github.com/geocoder89/requesthub/internal/clients"
	"github.com/geocoder89/requesthub/internal/clients/eventclient"
	"github.com/geocoder89/requesthub/internal/clients/userclient"
	"github.com/geocoder89/requesthub/internal/config"
	"github.com/geocoder89/requesthub/internal/db"
	httpapi "github.com/geocoder89/requesthub/internal/http"
	"github.com/geocoder89/requesthub/internal/http/handlers"
	"github.com/geocoder89/requesthub/internal/observability"
	"github.com/geocoder89/requesthub/internal/queue/redisclient"
	"github.com/geocoder89/requesthub/internal/repo/postgres"
)

func main() {
	cfg := config.Load()
	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, "requesthub-api", cfg.OtelEndpoint)

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

	rds := redisclient.New(redisclient.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rds.Close()

	if err := rds.Ping(ctx); err != nil {
		// degraded: rate limiting fails open
		log.Warn("redis unreachable at startup", "err", err)
	}

	prom := observability.NewProm(prometheus.DefaultRegisterer)

	httpClient := &http.Client{Timeout: cfg.ClientTimeout}

	eventsClient := eventclient.New(
		cfg.EventServiceURL,
		httpClient,
		clients.NewBreaker(clients.BreakerConfig{}),
		prom,
	)
	usersClient := userclient.New(
		cfg.UserServiceURL,
		httpClient,
		clients.NewBreaker(clients.BreakerConfig{}),
		prom,
	)

	jobsRepo := postgres.NewJobsRepo(pool, prom)
	requestsRepo := postgres.NewRequestsRepo(pool, prom, jobsRepo)

	counts := cache.NewCounts(10 * time.Second)

	engine := admission.NewEngine(requestsRepo, eventsClient, usersClient, counts, log)

	tokens := auth.NewManager(cfg.JWTSecret, 15*time.Minute)

	router := httpapi.NewRouter(httpapi.RouterDeps{
		Requests:        handlers.NewRequestsHandler(engine, log),
		DBPing:          pool.Ping,
		Prom:            prom,
		Redis:           rds.Raw(),
		Auth:            tokens,
		Log:             log,
		Env:             cfg.Env,
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimit:       cfg.RateLimit,
		RateLimitWindow: cfg.RateLimitWindow,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("api listening", "port", cfg.Port, "env", cfg.Env)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
	}

	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Warn("tracer shutdown failed", "err", err)
	}
}
