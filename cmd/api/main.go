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
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/ltv-backend/api/controllers"
	"github.com/angelmondragon/ltv-backend/api/middleware"
	"github.com/angelmondragon/ltv-backend/api/routes"
	"github.com/angelmondragon/ltv-backend/internal/bootstrap"
	"github.com/angelmondragon/ltv-backend/internal/dashboard"
	"github.com/angelmondragon/ltv-backend/internal/runs"
	"github.com/angelmondragon/ltv-backend/pkg/config"
	"github.com/angelmondragon/ltv-backend/pkg/db"
	"github.com/angelmondragon/ltv-backend/pkg/instance"
	"github.com/angelmondragon/ltv-backend/pkg/logger"
	"github.com/angelmondragon/ltv-backend/pkg/migrate"
	"github.com/angelmondragon/ltv-backend/pkg/redis"
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
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	ready := map[string]controllers.Pinger{"db": dbClient, "redis": nil}
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		ready["redis"] = redisClient
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	dash, err := bootstrap.NewDashboard(cfg, logg, dbClient, redisClient, reg)
	if err != nil {
		logg.Error(ctx, "failed to wire dashboard", err)
		os.Exit(1)
	}
	if _, err := dash.Loader.Load(ctx); err != nil {
		// keep serving an empty snapshot; a later reload notice fills it
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "initial snapshot load failed")
	}

	group, ctx := errgroup.WithContext(ctx)

	var rateStore middleware.RateStore
	if redisClient != nil {
		rateStore = redisClient
		sub, err := redisClient.Subscribe(ctx, cfg.Dashboard.ReloadChannel)
		if err != nil {
			logg.Error(ctx, "failed to subscribe to reload channel", err)
			os.Exit(1)
		}
		defer sub.Close()
		group.Go(func() error {
			dashboard.Listen(ctx, logg, sub.Payloads(ctx), dash.Loader)
			return nil
		})
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Deps{
			Dashboard: dash.Service,
			Reloader:  dash.Loader,
			Runs:      runs.NewRepository(dbClient.DB()),
			Ready:     ready,
			Gatherer:  reg,
			RateStore: rateStore,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	group.Go(func() error {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(context.Background(), "api server shut down gracefully")
}
