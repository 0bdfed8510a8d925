// Package dashboard answers the filtered aggregate views of the LTV dashboard
// from an in-memory snapshot of the fact table.
package dashboard

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/angelmondragon/ltv-backend/internal/aggregate"
	"github.com/angelmondragon/ltv-backend/internal/facts"
	"github.com/angelmondragon/ltv-backend/pkg/enums"
	"github.com/angelmondragon/ltv-backend/pkg/errors"
	"github.com/angelmondragon/ltv-backend/pkg/logger"
	"github.com/angelmondragon/ltv-backend/pkg/metrics"
	"github.com/angelmondragon/ltv-backend/pkg/pagination"
	"github.com/angelmondragon/ltv-backend/pkg/redis"
	"github.com/golang/snappy"
)

const cacheScope = "dashboard"

var (
	byAffiliate        = []enums.Dimension{enums.DimensionAffiliate}
	byCountry          = []enums.Dimension{enums.DimensionCountry}
	byCountryAffiliate = []enums.Dimension{enums.DimensionCountry, enums.DimensionAffiliate}
	byDetail           = []enums.Dimension{enums.DimensionDate, enums.DimensionCountry, enums.DimensionAffiliate, enums.DimensionSource}
)

// Cache stores rendered query results; redis.Client satisfies it.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CacheKey(scope string, parts ...string) string
}

// Headline is the grand total shown on the dashboard cards.
type Headline struct {
	aggregate.Totals
	Display HeadlineDisplay `json:"display"`
}

// HeadlineDisplay carries the pre-formatted card values.
type HeadlineDisplay struct {
	FTDCount string `json:"ftd_count"`
	Amount   string `json:"amount"`
	LTV      string `json:"ltv"`
}

// DetailPage is one page of the date×country×affiliate×source table.
type DetailPage struct {
	Rows       []aggregate.Row `json:"rows"`
	Total      int             `json:"total"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Result is the full dashboard payload.
type Result struct {
	Totals             Headline        `json:"totals"`
	ByAffiliate        []aggregate.Row `json:"by_affiliate"`
	ByCountry          []aggregate.Row `json:"by_country"`
	ByCountryAffiliate []aggregate.Row `json:"by_country_affiliate"`
	Details            DetailPage      `json:"details"`
	Snapshot           SnapshotInfo    `json:"snapshot"`
}

// SnapshotInfo describes the data the answer was computed from.
type SnapshotInfo struct {
	Origin   enums.SourceKind `json:"origin"`
	Records  int              `json:"records"`
	LoadedAt time.Time        `json:"loaded_at"`
	Digest   string           `json:"digest"`
}

// FilterOptions feeds the dashboard dropdowns and date picker.
type FilterOptions struct {
	Affiliates []string   `json:"affiliates"`
	Sources    []string   `json:"sources"`
	Countries  []string   `json:"countries"`
	MinDate    *time.Time `json:"min_date,omitempty"`
	MaxDate    *time.Time `json:"max_date,omitempty"`
}

// ServiceParams wires a Service.
type ServiceParams struct {
	Logger   *logger.Logger
	Store    *facts.SnapshotStore
	Cache    Cache
	CacheTTL time.Duration
	PageSize int
	Metrics  *metrics.DashboardMetrics
}

// Service computes dashboard views. It is safe for concurrent use.
type Service struct {
	logg     *logger.Logger
	store    *facts.SnapshotStore
	cache    Cache
	cacheTTL time.Duration
	pageSize int
	metrics  *metrics.DashboardMetrics
}

func NewService(p ServiceParams) (*Service, error) {
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.Store == nil {
		return nil, fmt.Errorf("snapshot store required")
	}
	pageSize := p.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultLimit
	}
	return &Service{
		logg:     p.Logger,
		store:    p.Store,
		cache:    p.Cache,
		cacheTTL: p.CacheTTL,
		pageSize: pageSize,
		metrics:  p.Metrics,
	}, nil
}

// Query answers q against the current snapshot. Empty or fully filtered
// results are zero totals and empty lists, never an error.
func (s *Service) Query(ctx context.Context, q Query) (Result, error) {
	q = q.normalized()
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return Result{}, errors.New(errors.CodeValidation, "to must not be before from")
	}
	limit := s.pageSize
	if q.Limit > 0 {
		limit = pagination.NormalizeLimit(q.Limit)
	}

	snap := s.store.Load()
	digest := strconv.FormatUint(snap.Digest(), 16)
	key := ""
	if s.cache != nil && s.cacheTTL > 0 {
		key = s.cache.CacheKey(cacheScope, digest, q.fingerprint(limit))
		if res, ok := s.cached(ctx, key); ok {
			s.metrics.IncQuery("dashboard", "hit")
			return res, nil
		}
	}

	res, err := s.compute(snap, q, limit)
	if err != nil {
		return Result{}, err
	}
	s.metrics.IncQuery("dashboard", "miss")
	if key != "" {
		s.remember(ctx, key, res)
	}
	return res, nil
}

func (s *Service) compute(snap *facts.Snapshot, q Query, limit int) (Result, error) {
	offset := 0
	cursor, err := pagination.ParseOffsetCursor(q.Cursor)
	if err != nil {
		return Result{}, errors.Wrap(errors.CodeValidation, err, "invalid cursor")
	}
	if cursor != nil {
		if uint64(cursor.Version) != snap.Digest() {
			return Result{}, errors.New(errors.CodeConflict, "cursor refers to a reloaded dataset; restart paging")
		}
		offset = cursor.Offset
	}

	// filter once; every view below reads the same subset
	records := aggregate.Filter(snap.Records(), q.filters())
	all := aggregate.Filters{}

	totals := aggregate.Total(records, all)
	res := Result{
		Totals: Headline{
			Totals: totals,
			Display: HeadlineDisplay{
				FTDCount: Count(totals.FTDCount),
				Amount:   "$" + CompactAmount(totals.Amount),
				LTV:      "$" + Money(totals.LTV),
			},
		},
		ByAffiliate:        aggregate.Aggregate(records, byAffiliate, all),
		ByCountry:          aggregate.Aggregate(records, byCountry, all),
		ByCountryAffiliate: aggregate.Aggregate(records, byCountryAffiliate, all),
		Snapshot:           infoOf(snap),
	}
	aggregate.SortByAmount(res.ByAffiliate, byAffiliate)
	aggregate.SortByAmount(res.ByCountry, byCountry)

	details := aggregate.Aggregate(records, byDetail, all)
	res.Details = page(details, offset, limit, int64(snap.Digest()))
	return res, nil
}

func page(rows []aggregate.Row, offset, limit int, version int64) DetailPage {
	p := DetailPage{Total: len(rows), Rows: []aggregate.Row{}}
	if offset >= len(rows) {
		return p
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	p.Rows = rows[offset:end]
	if end < len(rows) {
		p.NextCursor = pagination.EncodeOffsetCursor(pagination.OffsetCursor{Version: version, Offset: end})
	}
	return p
}

// Filters lists the distinct filter values present in the snapshot.
func (s *Service) Filters(context.Context) FilterOptions {
	snap := s.store.Load()
	affiliates := map[string]struct{}{}
	sources := map[string]struct{}{}
	countries := map[string]struct{}{}
	var minDate, maxDate time.Time
	snap.Each(func(r *facts.Record) {
		affiliates[r.Affiliate] = struct{}{}
		countries[r.Country] = struct{}{}
		if r.Source != "" {
			sources[r.Source] = struct{}{}
		}
		if minDate.IsZero() || r.Date.Before(minDate) {
			minDate = r.Date
		}
		if r.Date.After(maxDate) {
			maxDate = r.Date
		}
	})
	s.metrics.IncQuery("filters", "none")

	opts := FilterOptions{
		Affiliates: sortedKeys(affiliates),
		Sources:    sortedKeys(sources),
		Countries:  sortedKeys(countries),
	}
	if !minDate.IsZero() {
		opts.MinDate = &minDate
		opts.MaxDate = &maxDate
	}
	return opts
}

// Snapshot describes the currently served data.
func (s *Service) Snapshot() SnapshotInfo {
	return infoOf(s.store.Load())
}

func infoOf(snap *facts.Snapshot) SnapshotInfo {
	return SnapshotInfo{
		Origin:   snap.Origin(),
		Records:  snap.Len(),
		LoadedAt: snap.LoadedAt(),
		Digest:   strconv.FormatUint(snap.Digest(), 16),
	}
}

func (s *Service) cached(ctx context.Context, key string) (Result, bool) {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !stderrors.Is(err, redis.Nil) {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dashboard cache read failed")
		}
		return Result{}, false
	}
	payload, err := snappy.Decode(nil, []byte(raw))
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dashboard cache entry unreadable")
		return Result{}, false
	}
	var res Result
	if err := json.Unmarshal(payload, &res); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dashboard cache entry unreadable")
		return Result{}, false
	}
	return res, true
}

func (s *Service) remember(ctx context.Context, key string, res Result) {
	payload, err := json.Marshal(res)
	if err != nil {
		return
	}
	// snappy block-encoded JSON
	if err := s.cache.Set(ctx, key, string(snappy.Encode(nil, payload)), s.cacheTTL); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dashboard cache write failed")
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
