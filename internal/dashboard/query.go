package dashboard

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/ltv-backend/internal/aggregate"
	"github.com/cespare/xxhash/v2"
)

// Query selects the slice of the fact table a dashboard view shows.
type Query struct {
	From       *time.Time `json:"from,omitempty"`
	To         *time.Time `json:"to,omitempty"`
	Affiliates []string   `json:"affiliates,omitempty" validate:"dive,max=150"`
	Sources    []string   `json:"sources,omitempty" validate:"dive,max=100"`
	Countries  []string   `json:"countries,omitempty" validate:"dive,max=100"`
	Limit      int        `json:"limit,omitempty" validate:"gte=0"`
	Cursor     string     `json:"cursor,omitempty" validate:"max=256"`
}

// normalized drops blank and repeated filter values and sorts them so
// equivalent queries share a cache entry.
func (q Query) normalized() Query {
	q.Affiliates = cleanSet(q.Affiliates)
	q.Sources = cleanSet(q.Sources)
	q.Countries = cleanSet(q.Countries)
	q.Cursor = strings.TrimSpace(q.Cursor)
	return q
}

func (q Query) filters() aggregate.Filters {
	f := aggregate.Filters{
		Affiliates: q.Affiliates,
		Sources:    q.Sources,
		Countries:  q.Countries,
	}
	if q.From != nil {
		f.From = *q.From
	}
	if q.To != nil {
		f.To = *q.To
	}
	return f
}

// fingerprint hashes the normalized query for cache keys.
func (q Query) fingerprint(limit int) string {
	var b strings.Builder
	writeDate := func(t *time.Time) {
		if t != nil {
			b.WriteString(t.UTC().Format("2006-01-02"))
		}
		b.WriteByte('|')
	}
	writeDate(q.From)
	writeDate(q.To)
	for _, set := range [][]string{q.Affiliates, q.Sources, q.Countries} {
		b.WriteString(strings.Join(set, "\x1f"))
		b.WriteByte('|')
	}
	b.WriteString(strconv.Itoa(limit))
	b.WriteByte('|')
	b.WriteString(q.Cursor)
	return strconv.FormatUint(xxhash.Sum64String(b.String()), 16)
}

func cleanSet(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}
