// Package sources reads the raw export from the relational source table or
// from a CSV/XLSX dump of it.
package sources

import (
	"context"
	"strings"

	"github.com/angelmondragon/ltv-backend/internal/facts"
	"github.com/angelmondragon/ltv-backend/pkg/config"
	"github.com/angelmondragon/ltv-backend/pkg/enums"
)

// Source produces raw rows in export order.
type Source interface {
	Kind() enums.SourceKind
	Name() string
	Fetch(ctx context.Context) ([]facts.RawRow, error)
}

// Columns names the export columns feeding each RawRow field. The export is
// skewed, so the defaults deliberately map e.g. the affiliate column onto the
// amount.
type Columns struct {
	Key    string
	Date   string
	Amount string
	FTD    string
	LTV    string
	Source string
}

// ColumnsFromConfig reads the mapping from the source configuration.
func ColumnsFromConfig(cfg config.SourceConfig) Columns {
	return Columns{
		Key:    cfg.KeyColumn,
		Date:   cfg.DateColumn,
		Amount: cfg.AmountColumn,
		FTD:    cfg.FTDColumn,
		LTV:    cfg.LTVColumn,
		Source: cfg.SourceColumn,
	}
}

// layout holds the resolved header positions, -1 when the column is absent.
type layout struct {
	key, date, amount, ftd, ltv, source int
}

func (c Columns) resolve(header []string) (layout, []string) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	var missing []string
	find := func(column string, required bool) int {
		if column == "" {
			return -1
		}
		if pos, ok := index[strings.ToLower(strings.TrimSpace(column))]; ok {
			return pos
		}
		if required {
			missing = append(missing, column)
		}
		return -1
	}
	l := layout{
		key:    find(c.Key, true),
		date:   find(c.Date, true),
		amount: find(c.Amount, true),
		ftd:    find(c.FTD, false),
		ltv:    find(c.LTV, false),
		source: find(c.Source, false),
	}
	return l, missing
}

func (l layout) row(line int, values []string) facts.RawRow {
	cell := func(pos int) string {
		if pos < 0 || pos >= len(values) {
			return ""
		}
		return values[pos]
	}
	return facts.RawRow{
		Line:   line,
		Key:    cell(l.key),
		Date:   cell(l.date),
		Amount: cell(l.amount),
		FTD:    cell(l.ftd),
		LTV:    cell(l.ltv),
		Source: cell(l.source),
	}
}
