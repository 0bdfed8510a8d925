package sources

import (
	"context"
	"fmt"

	"github.com/angelmondragon/ltv-backend/internal/facts"
	"github.com/angelmondragon/ltv-backend/pkg/enums"
	"github.com/angelmondragon/ltv-backend/pkg/errors"
	"github.com/angelmondragon/ltv-backend/pkg/logger"
	"go.uber.org/multierr"
)

// Result carries the rows together with the source that produced them.
type Result struct {
	Rows []facts.RawRow
	Kind enums.SourceKind
	Name string
}

// Chain tries each source in order and returns the first success.
type Chain struct {
	sources []Source
	logg    *logger.Logger
}

func NewChain(logg *logger.Logger, sources ...Source) *Chain {
	list := make([]Source, 0, len(sources))
	for _, s := range sources {
		if s != nil {
			list = append(list, s)
		}
	}
	return &Chain{sources: list, logg: logg}
}

// Fetch returns rows from the first reachable source. Format errors stop the
// chain; only dependency failures fall through to the next source. When every
// source fails the combined error is a dependency error.
func (c *Chain) Fetch(ctx context.Context) (Result, error) {
	if len(c.sources) == 0 {
		return Result{}, errors.New(errors.CodeDependency, "no raw sources configured")
	}

	var failures error
	for _, src := range c.sources {
		rows, err := src.Fetch(ctx)
		if err == nil {
			return Result{Rows: rows, Kind: src.Kind(), Name: src.Name()}, nil
		}
		if errors.IsCode(err, errors.CodeSourceFormat) {
			return Result{}, err
		}
		failures = multierr.Append(failures, fmt.Errorf("%s %s: %w", src.Kind(), src.Name(), err))
		if c.logg != nil {
			c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
				"source": src.Kind().String(),
				"name":   src.Name(),
				"error":  err.Error(),
			}), "raw source unavailable; trying next")
		}
	}
	return Result{}, errors.Wrap(errors.CodeDependency, failures, "every raw source failed")
}
