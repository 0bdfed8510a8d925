package dashboard

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/angelmondragon/ltv-backend/internal/facts"
	"github.com/angelmondragon/ltv-backend/internal/normalize"
	"github.com/angelmondragon/ltv-backend/pkg/enums"
	"github.com/angelmondragon/ltv-backend/pkg/errors"
	"github.com/angelmondragon/ltv-backend/pkg/logger"
	"github.com/angelmondragon/ltv-backend/pkg/metrics"
)

// FactLister reads the persisted clean table.
type FactLister interface {
	List(ctx context.Context) ([]facts.Record, error)
}

// LoaderParams wires a Loader.
type LoaderParams struct {
	Logger       *logger.Logger
	Store        *facts.SnapshotStore
	Facts        FactLister
	SnapshotPath string
	Bounds       normalize.DateBounds
	Metrics      *metrics.DashboardMetrics
}

// Loader refreshes the served snapshot from the clean table, falling back to
// the snapshot CSV when the table cannot be read.
type Loader struct {
	logg         *logger.Logger
	store        *facts.SnapshotStore
	facts        FactLister
	snapshotPath string
	bounds       normalize.DateBounds
	metrics      *metrics.DashboardMetrics
	now          func() time.Time
}

func NewLoader(p LoaderParams) (*Loader, error) {
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.Store == nil {
		return nil, fmt.Errorf("snapshot store required")
	}
	if p.Facts == nil && p.SnapshotPath == "" {
		return nil, fmt.Errorf("fact table or snapshot path required")
	}
	return &Loader{
		logg:         p.Logger,
		store:        p.Store,
		facts:        p.Facts,
		snapshotPath: p.SnapshotPath,
		bounds:       p.Bounds,
		metrics:      p.Metrics,
		now:          time.Now,
	}, nil
}

// Load builds a new snapshot and swaps it in. On failure the previous
// snapshot keeps being served.
func (l *Loader) Load(ctx context.Context) (*facts.Snapshot, error) {
	records, origin, err := l.read(ctx)
	if err != nil {
		return nil, err
	}
	snap := facts.NewSnapshot(records, origin, l.now())
	l.store.Swap(snap)
	current := l.store.Load()
	l.metrics.SnapshotLoaded(origin.String(), current.Len())
	l.logg.Info(l.logg.WithFields(ctx, map[string]any{
		"origin":  origin.String(),
		"records": current.Len(),
		"version": current.Version(),
	}), "dashboard snapshot loaded")
	return current, nil
}

func (l *Loader) read(ctx context.Context) ([]facts.Record, enums.SourceKind, error) {
	var tableErr error
	if l.facts != nil {
		records, err := l.facts.List(ctx)
		if err == nil {
			return records, enums.SourceKindDatabase, nil
		}
		tableErr = err
		if l.snapshotPath == "" {
			return nil, "", errors.Wrap(errors.CodeDependency, err, "read clean table")
		}
		l.logg.Warn(l.logg.WithField(ctx, "error", err.Error()), "clean table unavailable; reading snapshot file")
	}

	res, err := facts.ReadSnapshotFile(l.snapshotPath, l.bounds)
	if err != nil {
		if tableErr != nil {
			err = fmt.Errorf("%w (clean table: %v)", err, tableErr)
		}
		if stderrors.Is(err, facts.ErrSnapshotMissing) {
			return nil, "", errors.Wrap(errors.CodeDependency, err, "no fact source available")
		}
		return nil, "", errors.Wrap(errors.CodeDependency, err, "read snapshot file")
	}
	if res.Skipped > 0 || res.Duplicates > 0 {
		l.logg.Warn(l.logg.WithFields(ctx, map[string]any{
			"skipped":    res.Skipped,
			"duplicates": res.Duplicates,
		}), "snapshot file rows discarded")
	}
	return res.Records, enums.SourceKindSnapshot, nil
}
