// Package aggregate computes filtered, grouped sums over fact records. Ratios
// are always recomputed from the summed amount and deposit count.
package aggregate

import (
	"sort"
	"time"

	"github.com/angelmondragon/ltv-backend/internal/facts"
	"github.com/angelmondragon/ltv-backend/pkg/enums"
)

// Row is one group of the result. Only the dimensions that were grouped on
// are populated.
type Row struct {
	Date      time.Time `json:"date,omitempty"`
	Country   string    `json:"country,omitempty"`
	Affiliate string    `json:"affiliate,omitempty"`
	Source    string    `json:"source,omitempty"`
	Amount    float64   `json:"amount"`
	FTDCount  int       `json:"ftd_count"`
	LTV       float64   `json:"ltv"`
	Records   int       `json:"records"`
}

// Totals is the grand total over the filtered set.
type Totals struct {
	Amount   float64 `json:"amount"`
	FTDCount int     `json:"ftd_count"`
	LTV      float64 `json:"ltv"`
	Records  int     `json:"records"`
}

type groupKey struct {
	date      time.Time
	country   string
	affiliate string
	source    string
}

// Aggregate filters records and sums them per distinct combination of the
// groupBy dimensions. Rows are ordered by the grouped values, in groupBy order.
// An empty groupBy yields a single row equal to the totals, or nothing when no
// record matches.
func Aggregate(records []facts.Record, groupBy []enums.Dimension, f Filters) []Row {
	dims := dedupDimensions(groupBy)
	m := f.matcher()

	index := make(map[groupKey]int)
	rows := make([]Row, 0)
	for i := range records {
		r := &records[i]
		if !m.match(r) {
			continue
		}
		key := keyFor(r, dims)
		pos, ok := index[key]
		if !ok {
			pos = len(rows)
			index[key] = pos
			rows = append(rows, Row{
				Date:      key.date,
				Country:   key.country,
				Affiliate: key.affiliate,
				Source:    key.source,
			})
		}
		rows[pos].Amount += r.Amount
		rows[pos].FTDCount += r.FTDCount
		rows[pos].Records++
	}

	for i := range rows {
		rows[i].LTV = facts.Ratio(rows[i].Amount, rows[i].FTDCount)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return less(rows[i], rows[j], dims)
	})
	return rows
}

// Total computes the grand total over the records matching f.
func Total(records []facts.Record, f Filters) Totals {
	m := f.matcher()
	var t Totals
	for i := range records {
		r := &records[i]
		if !m.match(r) {
			continue
		}
		t.Amount += r.Amount
		t.FTDCount += r.FTDCount
		t.Records++
	}
	t.LTV = facts.Ratio(t.Amount, t.FTDCount)
	return t
}

// SortByAmount orders rows by descending amount, breaking ties on the grouped
// values so the order is deterministic.
func SortByAmount(rows []Row, groupBy []enums.Dimension) {
	dims := dedupDimensions(groupBy)
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Amount != rows[j].Amount {
			return rows[i].Amount > rows[j].Amount
		}
		return less(rows[i], rows[j], dims)
	})
}

func keyFor(r *facts.Record, dims []enums.Dimension) groupKey {
	var k groupKey
	for _, d := range dims {
		switch d {
		case enums.DimensionDate:
			k.date = dayOf(r.Date)
		case enums.DimensionCountry:
			k.country = r.Country
		case enums.DimensionAffiliate:
			k.affiliate = r.Affiliate
		case enums.DimensionSource:
			k.source = r.Source
		}
	}
	return k
}

func less(a, b Row, dims []enums.Dimension) bool {
	for _, d := range dims {
		switch d {
		case enums.DimensionDate:
			if !a.Date.Equal(b.Date) {
				return a.Date.Before(b.Date)
			}
		case enums.DimensionCountry:
			if a.Country != b.Country {
				return a.Country < b.Country
			}
		case enums.DimensionAffiliate:
			if a.Affiliate != b.Affiliate {
				return a.Affiliate < b.Affiliate
			}
		case enums.DimensionSource:
			if a.Source != b.Source {
				return a.Source < b.Source
			}
		}
	}
	return false
}

func dedupDimensions(groupBy []enums.Dimension) []enums.Dimension {
	out := make([]enums.Dimension, 0, len(groupBy))
	seen := make(map[enums.Dimension]bool, len(groupBy))
	for _, d := range groupBy {
		if !d.IsValid() || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}
