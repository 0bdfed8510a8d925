package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/ltv-backend/api/responses"
	"github.com/angelmondragon/ltv-backend/api/validators"
	"github.com/angelmondragon/ltv-backend/internal/dashboard"
	"github.com/angelmondragon/ltv-backend/internal/facts"
	"github.com/angelmondragon/ltv-backend/pkg/logger"
	"github.com/angelmondragon/ltv-backend/pkg/pagination"
)

// DashboardService answers dashboard views.
type DashboardService interface {
	Query(ctx context.Context, q dashboard.Query) (dashboard.Result, error)
	Filters(ctx context.Context) dashboard.FilterOptions
	Snapshot() dashboard.SnapshotInfo
}

// SnapshotReloader rebuilds the served snapshot.
type SnapshotReloader interface {
	Load(ctx context.Context) (*facts.Snapshot, error)
}

func Dashboard(svc DashboardService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := parseDashboardQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := svc.Query(r.Context(), q)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}

func parseDashboardQuery(r *http.Request) (dashboard.Query, error) {
	from, err := validators.ParseQueryDate(r, "from")
	if err != nil {
		return dashboard.Query{}, err
	}
	to, err := validators.ParseQueryDate(r, "to")
	if err != nil {
		return dashboard.Query{}, err
	}
	limit, err := validators.ParseQueryInt(r, "limit", 0, 1, pagination.MaxLimit)
	if err != nil {
		return dashboard.Query{}, err
	}
	q := dashboard.Query{
		From:       from,
		To:         to,
		Affiliates: validators.ParseQueryList(r, "affiliate"),
		Sources:    validators.ParseQueryList(r, "source"),
		Countries:  validators.ParseQueryList(r, "country"),
		Limit:      limit,
		Cursor:     validators.ParseQueryString(r, "cursor"),
	}
	if err := validators.ValidateStruct(&q); err != nil {
		return dashboard.Query{}, err
	}
	return q, nil
}

func DashboardFilters(svc DashboardService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, svc.Filters(r.Context()))
	}
}

// DashboardReload swaps in a fresh snapshot and reports what is now served.
func DashboardReload(reloader SnapshotReloader, svc DashboardService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := reloader.Load(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, svc.Snapshot())
	}
}
