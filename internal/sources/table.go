package sources

import (
	"context"

	"github.com/angelmondragon/ltv-backend/internal/facts"
	"github.com/angelmondragon/ltv-backend/pkg/errors"
	"github.com/angelmondragon/ltv-backend/pkg/logger"
)

// skipLeading drops the first n rows only when the dataset is longer than n.
func skipLeading[T any](ctx context.Context, logg *logger.Logger, rows []T, n int) []T {
	if n <= 0 {
		return rows
	}
	if len(rows) <= n {
		if logg != nil {
			logg.Warn(logg.WithFields(ctx, map[string]any{
				"rows":      len(rows),
				"skip_rows": n,
			}), "dataset not longer than rows to skip; keeping every row")
		}
		return rows
	}
	return rows[n:]
}

// mapTable converts a header plus string cells into raw rows. Line numbers are
// 1-based positions in the data section.
func mapTable(name string, header []string, cells [][]string, cols Columns) ([]facts.RawRow, error) {
	l, missing := cols.resolve(header)
	if len(missing) > 0 {
		return nil, errors.New(errors.CodeSourceFormat, "export is missing mapped columns").WithDetails(map[string]any{
			"source":  name,
			"missing": missing,
			"header":  header,
		})
	}
	out := make([]facts.RawRow, 0, len(cells))
	for i, values := range cells {
		if blank(values) {
			continue
		}
		out = append(out, l.row(i+1, values))
	}
	return out, nil
}

func blank(values []string) bool {
	for _, v := range values {
		if v != "" {
			return false
		}
	}
	return true
}
