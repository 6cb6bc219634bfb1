package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/castingly/castingly-backend/api/controllers"
	"github.com/castingly/castingly-backend/api/routes"
	"github.com/castingly/castingly-backend/internal/bootstrap"
	"github.com/castingly/castingly-backend/pkg/auth"
	"github.com/castingly/castingly-backend/pkg/auth/session"
	"github.com/castingly/castingly-backend/pkg/config"
	"github.com/castingly/castingly-backend/pkg/db"
	"github.com/castingly/castingly-backend/pkg/logger"
	"github.com/castingly/castingly-backend/pkg/migrate"
	"github.com/castingly/castingly-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	stack, err := bootstrap.NewStack(context.Background(), cfg, logg, dbClient, redisClient, registry)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap media stack", err)
		os.Exit(1)
	}
	defer func() {
		if err := stack.Close(); err != nil {
			logg.Error(context.Background(), "error closing media stack", err)
		}
	}()

	principalCache, err := session.NewCache(redisClient, cfg.Core.PrincipalCacheTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create principal cache", err)
		os.Exit(1)
	}

	apiKeys, err := session.NewKeyVerifier(redisClient, stack.Storage.VerifyKey, cfg.DMAPI.KeyCacheTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create api key verifier", err)
		os.Exit(1)
	}

	resolver, err := auth.NewResolver(cfg.JWT, stack.Core, principalCache, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create principal resolver", err)
		os.Exit(1)
	}

	mediaService, err := stack.MediaService()
	if err != nil {
		logg.Error(context.Background(), "failed to create media service", err)
		os.Exit(1)
	}

	backfillService, err := stack.BackfillService()
	if err != nil {
		logg.Error(context.Background(), "failed to create backfill service", err)
		os.Exit(1)
	}

	ready := map[string]controllers.Pinger{
		"db":    dbClient,
		"redis": redisClient,
		"dmapi": stack.Storage,
	}
	if stack.PubSub != nil {
		ready["pubsub"] = stack.PubSub
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Deps{
			Resolver:       resolver,
			Limiter:        redisClient,
			Media:          mediaService,
			Backfill:       backfillService,
			BackfillRuns:   stack.Runs,
			StorageForKey:  stack.KeyStorage,
			APIKeys:        apiKeys,
			Refresher:      stack.Core,
			PrincipalCache: principalCache,
			Ready:          ready,
			Metrics:        registry,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-sigCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}
