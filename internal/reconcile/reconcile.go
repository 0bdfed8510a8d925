// Package reconcile turns classified export rows into the clean fact table.
package reconcile

import (
	"sort"
	"strings"

	"github.com/angelmondragon/ltv-backend/internal/classifier"
	"github.com/angelmondragon/ltv-backend/internal/facts"
	"github.com/angelmondragon/ltv-backend/internal/normalize"
	"github.com/angelmondragon/ltv-backend/pkg/enums"
)

// DefaultSentinel labels the grand-total row appended by the export.
const DefaultSentinel = "TOTAL GENERAL"

// Options tunes a reconciliation pass. The zero value uses DefaultSentinel and
// normalize.DefaultDateBounds.
type Options struct {
	Sentinel string
	Bounds   *normalize.DateBounds
}

func (o Options) sentinel() string {
	if s := strings.TrimSpace(o.Sentinel); s != "" {
		return strings.ToUpper(s)
	}
	return DefaultSentinel
}

func (o Options) bounds() normalize.DateBounds {
	if o.Bounds != nil {
		return *o.Bounds
	}
	return normalize.DefaultDateBounds
}

// Stats summarizes one pass. Every input row is either a header, a record or
// counted under exactly one drop reason.
type Stats struct {
	RowsIn          int                      `json:"rows_in"`
	Headers         int                      `json:"headers"`
	Dropped         map[enums.DropReason]int `json:"dropped"`
	ClampedNegative int                      `json:"clamped_negative"`
	RecordsOut      int                      `json:"records_out"`
}

// TotalDropped sums every drop reason.
func (s Stats) TotalDropped() int {
	total := 0
	for _, n := range s.Dropped {
		total += n
	}
	return total
}

func (s *Stats) drop(reason enums.DropReason) {
	s.Dropped[reason]++
}

type literalKey struct {
	date   string
	key    string
	amount string
}

// Reconcile classifies rows against countries and produces the de-duplicated,
// normalized records sorted ascending by date. Rows are never rejected with an
// error: anything unusable is dropped and counted in Stats.
func Reconcile(rows []facts.RawRow, countries classifier.Countries, opts Options) ([]facts.Record, Stats) {
	stats := Stats{
		RowsIn:  len(rows),
		Dropped: make(map[enums.DropReason]int, len(enums.DropReasons())),
	}

	classified := classifier.Classify(rows, countries)
	stats.Headers = classified.Headers

	sentinel := opts.sentinel()
	kept := make([]classifier.Detail, 0, len(classified.Details))
	for _, d := range classified.Details {
		switch {
		case !d.Resolved:
			stats.drop(enums.DropReasonUnresolvedCountry)
		case d.Reassigned:
			stats.drop(enums.DropReasonCountryAsAffiliate)
		case normalize.IsNull(d.Affiliate):
			stats.drop(enums.DropReasonMissingAffiliate)
		case isSentinel(d, sentinel):
			stats.drop(enums.DropReasonTotalSentinel)
		default:
			kept = append(kept, d)
		}
	}

	// literal de-duplication runs before any value is normalized
	last := make(map[literalKey]int, len(kept))
	for i, d := range kept {
		last[literalKey{date: d.Row.Date, key: d.Row.Key, amount: d.Row.Amount}] = i
	}

	bounds := opts.bounds()
	records := make([]facts.Record, 0, len(kept))
	for i, d := range kept {
		if last[literalKey{date: d.Row.Date, key: d.Row.Key, amount: d.Row.Amount}] != i {
			stats.drop(enums.DropReasonDuplicate)
			continue
		}
		date, ok := normalize.ParseDate(d.Row.Date, bounds)
		if !ok {
			stats.drop(enums.DropReasonInvalidDate)
			continue
		}

		amount := normalize.Amount(d.Row.Amount)
		if amount < 0 {
			amount = 0
			stats.ClampedNegative++
		}
		ftd := facts.FTDCount(d.Row.FTD)

		source := ""
		if !normalize.IsNull(d.Row.Source) {
			source = normalize.Label(d.Row.Source)
		}

		records = append(records, facts.Record{
			Date:      date,
			Country:   normalize.Label(d.Country),
			Affiliate: normalize.Label(d.Affiliate),
			Source:    source,
			Amount:    amount,
			FTDCount:  ftd,
			LTV:       facts.LTV(amount, ftd, d.Row.LTV),
		})
	}

	records, collapsed := uniqueByKey(records)
	for i := 0; i < collapsed; i++ {
		stats.drop(enums.DropReasonDuplicate)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})
	stats.RecordsOut = len(records)
	return records, stats
}

func isSentinel(d classifier.Detail, sentinel string) bool {
	return strings.ToUpper(strings.TrimSpace(d.Row.Key)) == sentinel ||
		strings.ToUpper(strings.TrimSpace(d.Affiliate)) == sentinel
}

// uniqueByKey keeps the last record per (date, country, affiliate), preserving
// the relative order of survivors.
func uniqueByKey(records []facts.Record) ([]facts.Record, int) {
	last := make(map[facts.Key]int, len(records))
	for i, r := range records {
		last[r.Key()] = i
	}
	if len(last) == len(records) {
		return records, 0
	}
	out := make([]facts.Record, 0, len(last))
	for i, r := range records {
		if last[r.Key()] == i {
			out = append(out, r)
		}
	}
	return out, len(records) - len(out)
}
