package normalize

import (
	"strings"
	"time"
)

// DateBounds limits the calendar years a parsed date may fall in.
type DateBounds struct {
	MinYear int
	MaxYear int
}

// DefaultDateBounds mirrors the range a nanosecond timestamp can represent.
var DefaultDateBounds = DateBounds{MinYear: 1900, MaxYear: 2262}

var (
	slashLayouts = []string{"2/1/2006", "2/1/06"}
	// year-month-day first, day-month-year is the export locale default
	dashLayouts = []string{"2006-01-02", "2006-1-2", "02-01-2006", "2-1-2006"}
)

// Date parses raw within DefaultDateBounds.
func Date(raw string) (time.Time, bool) {
	return ParseDate(raw, DefaultDateBounds)
}

// ParseDate returns the calendar date in raw at UTC midnight. Strings with '/'
// are day/month/year; strings with '-' are cut at the first space (or a 'T'
// time designator) and read as year-month-day, then day-month-year. Anything
// else is rejected.
func ParseDate(raw string, bounds DateBounds) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	var layouts []string
	switch {
	case strings.Contains(s, "/"):
		layouts = slashLayouts
	case strings.Contains(s, "-"):
		layouts = dashLayouts
	default:
		return time.Time{}, false
	}

	s = datePart(s)
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if !bounds.contains(t.Year()) {
			return time.Time{}, false
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

func datePart(s string) string {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, 'T'); i >= 8 {
		s = s[:i]
	}
	return s
}

func (b DateBounds) contains(year int) bool {
	if b.MinYear != 0 && year < b.MinYear {
		return false
	}
	if b.MaxYear != 0 && year > b.MaxYear {
		return false
	}
	return true
}
