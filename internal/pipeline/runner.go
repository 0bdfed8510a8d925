// Package pipeline runs one full recompute of the clean fact table.
package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/angelmondragon/ltv-backend/internal/classifier"
	"github.com/angelmondragon/ltv-backend/internal/facts"
	"github.com/angelmondragon/ltv-backend/internal/reconcile"
	"github.com/angelmondragon/ltv-backend/internal/sources"
	"github.com/angelmondragon/ltv-backend/pkg/db/models"
	"github.com/angelmondragon/ltv-backend/pkg/enums"
	"github.com/angelmondragon/ltv-backend/pkg/errors"
	"github.com/angelmondragon/ltv-backend/pkg/logger"
	"github.com/angelmondragon/ltv-backend/pkg/metrics"
	"github.com/angelmondragon/ltv-backend/pkg/retry"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// Fetcher yields the raw export.
type Fetcher interface {
	Fetch(ctx context.Context) (sources.Result, error)
}

// Store replaces the relational clean table.
type Store interface {
	Replace(ctx context.Context, records []facts.Record) error
	Table() string
}

// Journal records run lifecycle; optional.
type Journal interface {
	Create(ctx context.Context, run *models.PipelineRun) error
	Finish(ctx context.Context, run *models.PipelineRun) error
}

// Mirror copies the fact table to a warehouse; optional.
type Mirror interface {
	Replace(ctx context.Context, runID string, records []facts.Record) error
}

// Notifier is told about every run that produced output.
type Notifier interface {
	Notify(ctx context.Context, summary Summary) error
}

// Params wires a Runner.
type Params struct {
	Logger       *logger.Logger
	Fetcher      Fetcher
	Store        Store
	Journal      Journal
	Mirror       Mirror
	Notifiers    []Notifier
	Metrics      *metrics.PipelineMetrics
	Countries    []string
	Options      reconcile.Options
	SnapshotPath string
	Persist      retry.Policy
	Instance     string
}

// Runner executes the fetch, reconcile and persist sequence.
type Runner struct {
	logg         *logger.Logger
	fetcher      Fetcher
	store        Store
	journal      Journal
	mirror       Mirror
	notifiers    []Notifier
	metrics      *metrics.PipelineMetrics
	countries    classifier.Countries
	opts         reconcile.Options
	snapshotPath string
	persist      retry.Policy
	instance     string
	now          func() time.Time
	writeFile    func(path string, records []facts.Record) error
}

func NewRunner(p Params) (*Runner, error) {
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.Fetcher == nil {
		return nil, fmt.Errorf("fetcher required")
	}
	if p.SnapshotPath == "" {
		return nil, fmt.Errorf("snapshot path required")
	}
	countries := classifier.NewCountries(p.Countries)
	if countries.Len() == 0 {
		return nil, fmt.Errorf("at least one known country required")
	}
	return &Runner{
		logg:         p.Logger,
		fetcher:      p.Fetcher,
		store:        p.Store,
		journal:      p.Journal,
		mirror:       p.Mirror,
		notifiers:    p.Notifiers,
		metrics:      p.Metrics,
		countries:    countries,
		opts:         p.Options,
		snapshotPath: p.SnapshotPath,
		persist:      p.Persist,
		instance:     p.Instance,
		now:          time.Now,
		writeFile:    facts.WriteSnapshotFile,
	}, nil
}

// Run performs one pass. The snapshot file is the success criterion: when it
// is written the run returns a nil error even if the store, mirror or
// notifiers failed, and Summary.Status reports partial.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	runID := uuid.NewString()
	ctx = r.logg.WithRunID(ctx, runID)
	summary := Summary{
		RunID:     runID,
		Status:    enums.RunStatusRunning,
		StartedAt: r.now().UTC(),
	}
	journal := &models.PipelineRun{
		ID:        runID,
		Status:    enums.RunStatusRunning,
		Instance:  r.instance,
		StartedAt: summary.StartedAt,
	}
	if r.journal != nil {
		if err := r.journal.Create(ctx, journal); err != nil {
			r.logg.Error(ctx, "failed to journal run start", err)
		}
	}
	r.logg.Info(ctx, "pipeline run starting")

	err := r.execute(ctx, &summary)
	r.finish(ctx, &summary, journal, err)
	return summary, err
}

func (r *Runner) execute(ctx context.Context, summary *Summary) error {
	res, err := r.fetcher.Fetch(ctx)
	if err != nil {
		return err
	}
	summary.Source = res.Kind
	summary.SourceName = res.Name
	ctx = r.logg.WithSource(ctx, res.Kind.String())
	r.metrics.AddRowsIn(res.Kind.String(), len(res.Rows))

	records, stats := reconcile.Reconcile(res.Rows, r.countries, r.opts)
	summary.Stats = stats
	summary.Records = len(records)
	r.logStats(ctx, stats)

	if err := r.writeFile(r.snapshotPath, records); err != nil {
		return errors.Wrap(errors.CodeInternal, err, "write snapshot file")
	}
	summary.SnapshotWritten = true

	var sinkErr error
	if r.store != nil {
		err := retry.Do(ctx, r.persist, retryablePersist, func(ctx context.Context) error {
			return r.store.Replace(ctx, records)
		})
		if err != nil {
			r.logg.Error(r.logg.WithField(ctx, "table", r.store.Table()), "failed to replace clean table", err)
			sinkErr = multierr.Append(sinkErr, fmt.Errorf("store: %w", err))
		} else {
			summary.StoreWritten = true
		}
	}
	if r.mirror != nil {
		if err := r.mirror.Replace(ctx, summary.RunID, records); err != nil {
			r.logg.Error(ctx, "failed to mirror facts to warehouse", err)
			sinkErr = multierr.Append(sinkErr, fmt.Errorf("mirror: %w", err))
		} else {
			summary.MirrorWritten = true
		}
	}
	summary.sinkErr = sinkErr
	return nil
}

func (r *Runner) finish(ctx context.Context, summary *Summary, run *models.PipelineRun, runErr error) {
	summary.FinishedAt = r.now().UTC()
	switch {
	case runErr != nil:
		summary.Status = enums.RunStatusFailed
	case summary.sinkErr != nil:
		summary.Status = enums.RunStatusPartial
	default:
		summary.Status = enums.RunStatusSucceeded
	}
	if failure := multierr.Append(runErr, summary.sinkErr); failure != nil {
		summary.Error = failure.Error()
	}

	if summary.SnapshotWritten {
		for _, n := range r.notifiers {
			if err := n.Notify(ctx, *summary); err != nil {
				r.logg.Error(ctx, "failed to notify run completion", err)
			}
		}
	}

	r.metrics.ObserveRun(summary.Status.String(), summary.FinishedAt.Sub(summary.StartedAt), summary.FinishedAt, summary.SnapshotWritten)
	for reason, n := range summary.Stats.Dropped {
		r.metrics.AddDropped(reason.String(), n)
	}
	r.metrics.AddRecordsOut(summary.Records)

	if r.journal != nil {
		summary.applyTo(run)
		if err := r.journal.Finish(ctx, run); err != nil {
			r.logg.Error(ctx, "failed to journal run finish", err)
		}
	}

	fields := map[string]any{
		"status":      summary.Status.String(),
		"records_out": summary.Records,
		"duration_ms": summary.FinishedAt.Sub(summary.StartedAt).Milliseconds(),
	}
	if runErr != nil {
		r.logg.Error(r.logg.WithFields(ctx, fields), "pipeline run failed", runErr)
		return
	}
	r.logg.Info(r.logg.WithFields(ctx, fields), "pipeline run complete")
}

func (r *Runner) logStats(ctx context.Context, stats reconcile.Stats) {
	fields := map[string]any{
		"rows_in":     stats.RowsIn,
		"headers":     stats.Headers,
		"records_out": stats.RecordsOut,
	}
	for reason, n := range stats.Dropped {
		fields["dropped_"+reason.String()] = n
	}
	if stats.ClampedNegative > 0 {
		fields["clamped_negative"] = stats.ClampedNegative
	}
	ctx = r.logg.WithFields(ctx, fields)
	if stats.Dropped[enums.DropReasonUnresolvedCountry] > 0 || stats.Dropped[enums.DropReasonInvalidDate] > 0 {
		r.logg.Warn(ctx, "rows dropped during reconciliation")
		return
	}
	r.logg.Info(ctx, "reconciliation complete")
}

// retryablePersist retries everything except cancellation.
func retryablePersist(err error) bool {
	return !stderrors.Is(err, context.Canceled) && !stderrors.Is(err, context.DeadlineExceeded)
}
