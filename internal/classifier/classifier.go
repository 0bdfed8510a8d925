// Package classifier folds the interleaved country/affiliate rows of the export
// into detail rows tagged with the country header that precedes them.
package classifier

import (
	"strings"

	"github.com/angelmondragon/ltv-backend/internal/facts"
)

// Detail is a non-header row with the country it was carried down into.
type Detail struct {
	Row       facts.RawRow
	Country   string
	Affiliate string
	// Resolved is false when no header preceded the row.
	Resolved bool
	// Reassigned marks a row whose affiliate was itself a country name; Country
	// holds that name and Affiliate is empty.
	Reassigned bool
}

// Result is the outcome of one classification pass.
type Result struct {
	Details    []Detail
	Headers    int
	Unresolved int
	Reassigned int
}

// Classify walks rows once, in order. A row whose key is exactly a known
// country becomes the current country and emits nothing; every other row is a
// detail tagged with the current country. Order is significant: reordering the
// input changes the output.
func Classify(rows []facts.RawRow, countries Countries) Result {
	res := Result{Details: make([]Detail, 0, len(rows))}
	current := ""

	for _, row := range rows {
		key := strings.TrimSpace(row.Key)
		if countries.IsHeader(key) {
			current = key
			res.Headers++
			continue
		}

		d := Detail{
			Row:       row,
			Country:   current,
			Affiliate: key,
			Resolved:  current != "",
		}
		if name, ok := countries.Match(key); ok {
			d.Country = name
			d.Affiliate = ""
			d.Resolved = true
			d.Reassigned = true
			res.Reassigned++
		}
		if !d.Resolved {
			res.Unresolved++
		}
		res.Details = append(res.Details, d)
	}
	return res
}
