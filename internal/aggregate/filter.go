package aggregate

import (
	"time"

	"github.com/angelmondragon/ltv-backend/internal/facts"
)

// Filters restrict the records an aggregation sees. Zero dates leave that end
// of the range open; an empty set matches everything.
type Filters struct {
	From       time.Time
	To         time.Time
	Affiliates []string
	Sources    []string
	Countries  []string
}

type matcher struct {
	from, to   time.Time
	affiliates set
	sources    set
	countries  set
}

type set map[string]struct{}

func newSet(values []string) set {
	if len(values) == 0 {
		return nil
	}
	s := make(set, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

func (s set) allows(v string) bool {
	if s == nil {
		return true
	}
	_, ok := s[v]
	return ok
}

func (f Filters) matcher() matcher {
	return matcher{
		from:       dayOf(f.From),
		to:         dayOf(f.To),
		affiliates: newSet(f.Affiliates),
		sources:    newSet(f.Sources),
		countries:  newSet(f.Countries),
	}
}

// match applies the inclusive date range on calendar days.
func (m matcher) match(r *facts.Record) bool {
	d := dayOf(r.Date)
	if !m.from.IsZero() && d.Before(m.from) {
		return false
	}
	if !m.to.IsZero() && d.After(m.to) {
		return false
	}
	return m.affiliates.allows(r.Affiliate) && m.sources.allows(r.Source) && m.countries.allows(r.Country)
}

// Filter returns the records matching f, in input order.
func Filter(records []facts.Record, f Filters) []facts.Record {
	m := f.matcher()
	out := make([]facts.Record, 0, len(records))
	for i := range records {
		if m.match(&records[i]) {
			out = append(out, records[i])
		}
	}
	return out
}

func dayOf(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
