// Package bootstrap assembles the pipeline and dashboard from configuration
// so every entry point wires them the same way.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/ltv-backend/internal/facts"
	"github.com/angelmondragon/ltv-backend/internal/normalize"
	"github.com/angelmondragon/ltv-backend/internal/pipeline"
	"github.com/angelmondragon/ltv-backend/internal/reconcile"
	"github.com/angelmondragon/ltv-backend/internal/runs"
	"github.com/angelmondragon/ltv-backend/internal/sources"
	"github.com/angelmondragon/ltv-backend/internal/warehouse"
	"github.com/angelmondragon/ltv-backend/pkg/bigquery"
	"github.com/angelmondragon/ltv-backend/pkg/config"
	"github.com/angelmondragon/ltv-backend/pkg/db"
	"github.com/angelmondragon/ltv-backend/pkg/instance"
	"github.com/angelmondragon/ltv-backend/pkg/logger"
	"github.com/angelmondragon/ltv-backend/pkg/metrics"
	"github.com/angelmondragon/ltv-backend/pkg/pubsub"
	"github.com/angelmondragon/ltv-backend/pkg/redis"
	"github.com/angelmondragon/ltv-backend/pkg/retry"
	"github.com/angelmondragon/ltv-backend/pkg/storage/gcs"
)

// PipelineDeps are the already connected clients a runner may use. Redis is
// optional; BigQuery, Pub/Sub and GCS are opened here when configured.
type PipelineDeps struct {
	DB       *db.Client
	Redis    *redis.Client
	Registry prometheus.Registerer
}

// Closer releases clients opened by a constructor in this package.
type Closer func() error

// DateBounds turns the configured year range into parser bounds.
func DateBounds(cfg config.PipelineConfig) normalize.DateBounds {
	return normalize.DateBounds{MinYear: cfg.MinYear, MaxYear: cfg.MaxYear}
}

// PersistPolicy is the retry policy for clean table writes.
func PersistPolicy(cfg config.PipelineConfig) retry.Policy {
	return retry.Policy{
		MaxAttempts:    cfg.PersistMaxAttempts,
		InitialBackoff: cfg.PersistInitialBackoff,
		MaximumBackoff: cfg.PersistMaximumBackoff,
	}
}

// FactRepository binds the clean table configured for the pipeline.
func FactRepository(cfg *config.Config, conn *db.Client) (facts.Repository, error) {
	return facts.NewRepository(conn.DB(), cfg.Pipeline.CleanTable, cfg.Pipeline.InsertBatch)
}

// RawSources builds the primary-then-fallback source chain.
func RawSources(cfg *config.Config, conn *db.Client, logg *logger.Logger) (*sources.Chain, error) {
	cols := sources.ColumnsFromConfig(cfg.Source)
	var chain []sources.Source
	if conn != nil && cfg.Source.Table != "" {
		primary, err := sources.NewDatabase(conn.DB(), cfg.Source.Table, cols, cfg.Source.SkipRows, logg)
		if err != nil {
			return nil, err
		}
		chain = append(chain, primary)
	}
	if cfg.Source.FallbackFile != "" {
		fallback, err := sources.NewFile(cfg.Source.FallbackFile, cfg.Source.Sheet, cols, cfg.Source.SkipRows, logg)
		if err != nil {
			return nil, err
		}
		chain = append(chain, fallback)
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("no raw source configured: set %s or %s", config.EnvSourceTable, config.EnvSourceFallback)
	}
	return sources.NewChain(logg, chain...), nil
}

// NewPipelineRunner wires a runner with every sink the configuration enables.
func NewPipelineRunner(ctx context.Context, cfg *config.Config, logg *logger.Logger, deps PipelineDeps) (*pipeline.Runner, Closer, error) {
	var closers []func() error
	closeAll := func() error {
		var err error
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i]())
		}
		return err
	}
	fail := func(err error) (*pipeline.Runner, Closer, error) {
		_ = closeAll()
		return nil, nil, err
	}

	chain, err := RawSources(cfg, deps.DB, logg)
	if err != nil {
		return fail(err)
	}

	params := pipeline.Params{
		Logger:    logg,
		Fetcher:   chain,
		Metrics:   metrics.NewPipelineMetrics(deps.Registry),
		Countries: cfg.Pipeline.Countries(),
		Options: reconcile.Options{
			Sentinel: cfg.Pipeline.TotalSentinel,
		},
		SnapshotPath: cfg.Pipeline.SnapshotPath,
		Persist:      PersistPolicy(cfg.Pipeline),
		Instance:     instance.GetID(),
	}
	bounds := DateBounds(cfg.Pipeline)
	params.Options.Bounds = &bounds

	if deps.DB != nil {
		store, err := FactRepository(cfg, deps.DB)
		if err != nil {
			return fail(err)
		}
		params.Store = store
		params.Journal = runs.NewRepository(deps.DB.DB())
	}

	if cfg.BigQuery.Enabled {
		bq, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
		if err != nil {
			logg.Error(logg.WithField(ctx, "event", "warehouse.skipped"), "bigquery unavailable; running without mirror", err)
		} else {
			closers = append(closers, bq.Close)
			if mirror := warehouseMirror(ctx, logg, bq, cfg); mirror != nil {
				params.Mirror = mirror
			}
		}
	}

	if deps.Redis != nil {
		reload, err := pipeline.NewReloadNotifier(deps.Redis, cfg.Dashboard.ReloadChannel)
		if err != nil {
			return fail(err)
		}
		params.Notifiers = append(params.Notifiers, reload)
	}

	if cfg.PubSub.Enabled() {
		ps, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return fail(fmt.Errorf("bootstrap pubsub: %w", err))
		}
		closers = append(closers, ps.Close)
		events, err := pipeline.NewEventNotifier(ps)
		if err != nil {
			return fail(err)
		}
		params.Notifiers = append(params.Notifiers, events)
	}

	if cfg.GCS.Enabled() {
		archive, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
		if err != nil {
			return fail(fmt.Errorf("bootstrap gcs: %w", err))
		}
		closers = append(closers, archive.Close)
		notifier, err := pipeline.NewArchiveNotifier(archive, cfg.Pipeline.SnapshotPath)
		if err != nil {
			return fail(err)
		}
		params.Notifiers = append(params.Notifiers, notifier)
	}

	runner, err := pipeline.NewRunner(params)
	if err != nil {
		return fail(err)
	}
	return runner, closeAll, nil
}

// warehouseMirror returns nil when the mirrored table cannot be prepared; the
// pipeline then runs without a mirror.
func warehouseMirror(ctx context.Context, logg *logger.Logger, client warehouse.TableWriter, cfg *config.Config) *warehouse.Mirror {
	mirror, err := warehouse.New(client, warehouse.Config{
		Table:     cfg.BigQuery.FactTable,
		BatchSize: cfg.BigQuery.BatchSize,
		Retry:     PersistPolicy(cfg.Pipeline),
	})
	if err == nil {
		err = mirror.Prepare(ctx)
	}
	if err != nil {
		logg.Error(logg.WithField(ctx, "event", "warehouse.skipped"), "warehouse table not ready; running without mirror", err)
		return nil
	}
	return mirror
}
