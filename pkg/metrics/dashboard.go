package metrics

import "github.com/prometheus/client_golang/prometheus"

// DashboardMetrics counts query traffic and tracks the loaded snapshot size.
type DashboardMetrics struct {
	queries *prometheus.CounterVec
	records prometheus.Gauge
	reloads *prometheus.CounterVec
}

// NewDashboardMetrics registers the dashboard collectors on the provided registerer.
func NewDashboardMetrics(reg prometheus.Registerer) *DashboardMetrics {
	if reg == nil {
		return &DashboardMetrics{}
	}
	queries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ltv_dashboard_queries_total",
		Help: "Dashboard queries served, by endpoint and cache outcome.",
	}, []string{"endpoint", "cache"})
	records := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ltv_dashboard_snapshot_records",
		Help: "Fact records in the snapshot currently served.",
	})
	reloads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ltv_dashboard_reloads_total",
		Help: "Snapshot reloads, by origin the snapshot was loaded from.",
	}, []string{"origin"})
	reg.MustRegister(queries, records, reloads)
	return &DashboardMetrics{queries: queries, records: records, reloads: reloads}
}

func (d *DashboardMetrics) IncQuery(endpoint, cache string) {
	if d == nil || d.queries == nil {
		return
	}
	d.queries.WithLabelValues(normalizeLabel(endpoint), normalizeLabel(cache)).Inc()
}

// SnapshotLoaded records a reload and the size of the snapshot now served.
func (d *DashboardMetrics) SnapshotLoaded(origin string, records int) {
	if d == nil || d.reloads == nil {
		return
	}
	d.reloads.WithLabelValues(normalizeLabel(origin)).Inc()
	d.records.Set(float64(records))
}
