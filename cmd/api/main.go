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

	"github.com/geocoder89/mealplanner/internal/app"
	"github.com/geocoder89/mealplanner/internal/auth"
	"github.com/geocoder89/mealplanner/internal/config"
	httpx "github.com/geocoder89/mealplanner/internal/http"
	"github.com/geocoder89/mealplanner/internal/observability"
)

const serviceName = "mealplanner-api"

func main() {
	cfg := config.Load()
	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer := observability.NoopShutdown
	if cfg.OtelEnabled {
		var err error
		shutdownTracer, err = observability.InitTracer(ctx, observability.TracingConfig{
			Service:  serviceName,
			Env:      cfg.Env,
			Endpoint: cfg.OtelEndpoint,
		})
		if err != nil {
			log.Error("tracer init failed", "err", err)
			os.Exit(1)
		}
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.Bootstrap(ctx); err != nil {
		log.Error("bootstrap failed", "err", err)
		os.Exit(1)
	}

	if cfg.ChatWebhookSecret == "" {
		log.Warn("CHAT_WEBHOOK_SECRET is not set, chat events will be rejected")
	}

	router, limiter := httpx.NewRouter(httpx.Deps{
		Env:             cfg.Env,
		ServiceName:     serviceName,
		Tracing:         cfg.OtelEnabled,
		Log:             log,
		Prom:            a.Prom,
		Gatherer:        a.Registry,
		Engine:          a.Engine,
		Identity:        a.Identity,
		Catalog:         a.Catalog,
		Planner:         a.Planner,
		Reservations:    a.Reservations,
		JWT:             auth.NewManager(cfg.JWTSecret, cfg.AccessTokenTTL),
		Ready:           a.Ready,
		ChatSecret:      cfg.ChatWebhookSecret,
		RateLimitCount:  cfg.RateLimitCount,
		RateLimitWindow: cfg.RateLimitWindow,
	})

	if cfg.SessionTTL > 0 {
		go a.Engine.RunJanitor(ctx, cfg.SessionTTL/2)
	}
	go pruneLoop(ctx, limiter.Prune, cfg.RateLimitWindow)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreBackend, "lock", cfg.LockBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("server shutting down")

	shutdownCtx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Error("tracer shutdown failed", "err", err)
	}
	log.Info("shutdown complete")
}

func pruneLoop(ctx context.Context, prune func(), every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			prune()
		}
	}
}
