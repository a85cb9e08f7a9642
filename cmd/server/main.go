package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coursegate/internal/authority"
	"coursegate/internal/cache"
	"coursegate/internal/gateway"
	"coursegate/internal/login"
	"coursegate/internal/platform/config"
	"coursegate/internal/platform/httpserver"
	"coursegate/internal/platform/logger"
	"coursegate/internal/platform/metrics"
	"coursegate/internal/platform/redis"
	"coursegate/internal/ratelimit"
	"coursegate/internal/ratings"
	httptransport "coursegate/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	m := metrics.New()

	// Shared cache backs both rate limiting and the ratings cache. Without
	// REDIS_URL the store is in-process, which is fine for a single replica.
	var (
		store       cache.Store
		cacheHealth func(ctx context.Context) error
	)
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		store = cache.NewRedisStore(redisClient.Client)
		cacheHealth = redisClient.Health
		defer redisClient.Close()
		log.Info("using redis cache store")
	} else {
		store = cache.NewMemoryStore()
		log.Info("using in-memory cache store")
	}

	limiter := ratelimit.New(store, log,
		ratelimit.WithMetrics(m),
		ratelimit.WithDisabled(cfg.RateLimitDisabled),
	)

	authorityClient := authority.New(cfg.AuthorityURL, cfg.AuthorityAPIKey, log,
		authority.WithMetrics(m),
	)

	router := httptransport.NewRouter(httptransport.Deps{
		Gateway:       gateway.New(authorityClient, cfg.SigningSecret, cfg.ContactEmail, log, gateway.WithMetrics(m)),
		Login:         login.New(authorityClient, limiter, cfg.SigningSecret, cfg.AllowedOrigin, log, login.WithMetrics(m)),
		Ratings:       ratings.New(authorityClient, store, limiter, log, ratings.WithMetrics(m)),
		AllowedOrigin: cfg.AllowedOrigin,
		DefaultOrigin: cfg.DefaultOrigin,
		Logger:        log,
		CacheHealth:   cacheHealth,
	})

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting coursegate", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
