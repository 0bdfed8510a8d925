package facts

import (
	"math"
	"time"

	"github.com/angelmondragon/ltv-backend/internal/normalize"
)

// RawRow is one untyped line of the export. Key holds the interleaved
// country/affiliate column; every other field is kept as written so the
// reconciler can de-duplicate on the literal values.
type RawRow struct {
	Line   int
	Key    string
	Date   string
	Amount string
	FTD    string
	LTV    string
	Source string
}

// Record is one clean fact: the activity of an affiliate in a country on a day.
type Record struct {
	Date      time.Time
	Country   string
	Affiliate string
	Source    string
	Amount    float64
	FTDCount  int
	LTV       float64
}

// Key identifies a record for the uniqueness guarantee of the fact table.
type Key struct {
	Date      time.Time
	Country   string
	Affiliate string
}

func (r Record) Key() Key {
	return Key{Date: r.Date.UTC(), Country: r.Country, Affiliate: r.Affiliate}
}

// Ratio returns amount per first-time deposit, or 0 when there are none.
func Ratio(amount float64, ftd int) float64 {
	if ftd <= 0 {
		return 0
	}
	return amount / float64(ftd)
}

// FTDCount normalizes a deposit count the same way as amounts, rounded and
// clamped at zero.
func FTDCount(raw string) int {
	v := math.Round(normalize.Amount(raw))
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(v)
}

// LTV is amount/ftd when there are deposits, else the supplied raw ratio when
// it parses, else 0.
func LTV(amount float64, ftd int, raw string) float64 {
	if ftd > 0 {
		return Ratio(amount, ftd)
	}
	if v, ok := normalize.ParseAmount(raw); ok {
		return v
	}
	return 0
}
