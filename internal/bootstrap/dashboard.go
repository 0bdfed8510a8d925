package bootstrap

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/ltv-backend/internal/dashboard"
	"github.com/angelmondragon/ltv-backend/internal/facts"
	"github.com/angelmondragon/ltv-backend/pkg/config"
	"github.com/angelmondragon/ltv-backend/pkg/db"
	"github.com/angelmondragon/ltv-backend/pkg/logger"
	"github.com/angelmondragon/ltv-backend/pkg/metrics"
	"github.com/angelmondragon/ltv-backend/pkg/redis"
)

// Dashboard is the read side served by the API.
type Dashboard struct {
	Store   *facts.SnapshotStore
	Loader  *dashboard.Loader
	Service *dashboard.Service
}

// NewDashboard wires the snapshot store, its loader and the query service.
// Without redis the query cache is disabled.
func NewDashboard(cfg *config.Config, logg *logger.Logger, conn *db.Client, redisClient *redis.Client, reg prometheus.Registerer) (*Dashboard, error) {
	dashMetrics := metrics.NewDashboardMetrics(reg)
	store := facts.NewSnapshotStore()

	loaderParams := dashboard.LoaderParams{
		Logger:       logg,
		Store:        store,
		SnapshotPath: cfg.Pipeline.SnapshotPath,
		Bounds:       DateBounds(cfg.Pipeline),
		Metrics:      dashMetrics,
	}
	if conn != nil {
		repo, err := FactRepository(cfg, conn)
		if err != nil {
			return nil, err
		}
		loaderParams.Facts = repo
	}
	loader, err := dashboard.NewLoader(loaderParams)
	if err != nil {
		return nil, err
	}

	serviceParams := dashboard.ServiceParams{
		Logger:   logg,
		Store:    store,
		CacheTTL: cfg.Dashboard.CacheTTL,
		PageSize: cfg.Dashboard.DetailPageSize,
		Metrics:  dashMetrics,
	}
	if redisClient != nil {
		serviceParams.Cache = redisClient
	}
	svc, err := dashboard.NewService(serviceParams)
	if err != nil {
		return nil, err
	}
	return &Dashboard{Store: store, Loader: loader, Service: svc}, nil
}
