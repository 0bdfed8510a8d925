package routes

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/ltv-backend/internal/dashboard"
	"github.com/angelmondragon/ltv-backend/internal/facts"
	"github.com/angelmondragon/ltv-backend/internal/runs"
	"github.com/angelmondragon/ltv-backend/pkg/config"
	"github.com/angelmondragon/ltv-backend/pkg/db/models"
	"github.com/angelmondragon/ltv-backend/pkg/enums"
	"github.com/angelmondragon/ltv-backend/pkg/logger"
	"github.com/angelmondragon/ltv-backend/pkg/metrics"
	"github.com/angelmondragon/ltv-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReloader struct{}

func (stubReloader) Load(context.Context) (*facts.Snapshot, error) { return nil, nil }

type stubJournal struct{}

func (stubJournal) Get(context.Context, uuid.UUID) (*models.PipelineRun, error) {
	return nil, runs.ErrNotFound
}

func (stubJournal) List(context.Context, runs.ListParams) ([]models.PipelineRun, *pagination.Cursor, error) {
	return nil, nil, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	return newTestRouterWith(t, config.DashboardConfig{AllowedOrigins: []string{"http://dash.example"}})
}

func newTestRouterWith(t *testing.T, dashCfg config.DashboardConfig) http.Handler {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "router-test", Output: &bytes.Buffer{}})
	reg := prometheus.NewRegistry()
	dashMetrics := metrics.NewDashboardMetrics(reg)

	store := facts.NewSnapshotStore()
	store.Swap(facts.NewSnapshot([]facts.Record{
		{Date: time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC), Country: "Paraguay", Affiliate: "AffX", Amount: 10, FTDCount: 1, LTV: 10},
	}, enums.SourceKindDatabase, time.Now()))
	svc, err := dashboard.NewService(dashboard.ServiceParams{Logger: logg, Store: store, Metrics: dashMetrics})
	require.NoError(t, err)

	cfg := &config.Config{
		App:       config.AppConfig{Env: "test"},
		Dashboard: dashCfg,
	}
	return NewRouter(cfg, logg, Deps{
		Dashboard: svc,
		Reloader:  stubReloader{},
		Runs:      stubJournal{},
		Gatherer:  reg,
	})
}

func TestRoutesRespond(t *testing.T) {
	router := newTestRouter(t)
	cases := []struct {
		method, path string
		status       int
	}{
		{http.MethodGet, "/health/live", http.StatusOK},
		{http.MethodGet, "/health/ready", http.StatusOK},
		{http.MethodGet, "/api/public/ping", http.StatusOK},
		{http.MethodGet, "/api/v1/dashboard", http.StatusOK},
		{http.MethodGet, "/api/v1/dashboard/filters", http.StatusOK},
		{http.MethodPost, "/api/v1/dashboard/reload", http.StatusOK},
		{http.MethodGet, "/api/v1/pipeline/runs", http.StatusOK},
		{http.MethodGet, "/api/v1/pipeline/runs/" + uuid.NewString(), http.StatusNotFound},
		{http.MethodGet, "/api/v1/unknown", http.StatusNotFound},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, tc.status, w.Code, "%s %s", tc.method, tc.path)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-Id", "req-123")
	router.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-Id"))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	_, err := uuid.Parse(w.Header().Get("X-Request-Id"))
	assert.NoError(t, err)
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/dashboard", nil)
	req.Header.Set("Origin", "http://dash.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)
	assert.Equal(t, "http://dash.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpointExposesDashboardQueries(t *testing.T) {
	router := newTestRouter(t)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "ltv_dashboard_queries_total"))
}

func TestReloadIsThrottled(t *testing.T) {
	router := newTestRouterWith(t, config.DashboardConfig{ReloadLimit: 1, ReloadWindow: time.Hour})

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/api/v1/dashboard/reload", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/api/v1/dashboard/reload", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	// reads are not throttled
	read := httptest.NewRecorder()
	router.ServeHTTP(read, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil))
	assert.Equal(t, http.StatusOK, read.Code)
}
