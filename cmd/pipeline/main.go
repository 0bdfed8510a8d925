package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/ltv-backend/internal/bootstrap"
	"github.com/angelmondragon/ltv-backend/pkg/config"
	"github.com/angelmondragon/ltv-backend/pkg/db"
	"github.com/angelmondragon/ltv-backend/pkg/enums"
	"github.com/angelmondragon/ltv-backend/pkg/logger"
	"github.com/angelmondragon/ltv-backend/pkg/migrate"
	"github.com/angelmondragon/ltv-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "pipeline"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	strict := flag.Bool("strict", false, "exit non-zero when the run is only partially persisted")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "pipeline"

	logg = logger.New(logger.Options{
		ServiceName: "pipeline",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// an unreachable database is not fatal: the run reads the fallback
	// export and still writes the snapshot file
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "database unavailable; running file-only")
		dbClient = nil
	} else {
		defer dbClient.Close()
		if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
			logg.Error(ctx, "failed to run dev migrations", err)
			os.Exit(1)
		}
	}

	deps := bootstrap.PipelineDeps{DB: dbClient, Registry: prometheus.NewRegistry()}
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "redis unavailable; skipping reload notice")
		} else {
			defer redisClient.Close()
			deps.Redis = redisClient
		}
	}

	runner, closeFn, err := bootstrap.NewPipelineRunner(ctx, cfg, logg, deps)
	if err != nil {
		logg.Error(ctx, "failed to wire pipeline", err)
		os.Exit(1)
	}
	defer func() {
		if err := closeFn(); err != nil {
			logg.Error(context.Background(), "error closing pipeline clients", err)
		}
	}()

	summary, err := runner.Run(ctx)
	_ = json.NewEncoder(os.Stdout).Encode(summary)
	if err != nil {
		logg.Error(ctx, "pipeline run failed", err)
		os.Exit(1)
	}
	if *strict && summary.Status != enums.RunStatusSucceeded {
		os.Exit(2)
	}
}
