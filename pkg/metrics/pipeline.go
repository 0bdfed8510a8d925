package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics tracks row flow through the reconciliation pipeline.
type PipelineMetrics struct {
	rowsIn      *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	recordsOut  prometheus.Counter
	runDuration *prometheus.HistogramVec
	lastSuccess prometheus.Gauge
}

// NewPipelineMetrics registers the pipeline collectors on the provided registerer.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	rowsIn := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ltv_pipeline_rows_in_total",
		Help: "Raw rows read from the export, by source kind.",
	}, []string{"source"})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ltv_pipeline_rows_dropped_total",
		Help: "Raw rows discarded by the reconciler, by reason.",
	}, []string{"reason"})
	recordsOut := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ltv_pipeline_records_out_total",
		Help: "Fact records produced by the reconciler.",
	})
	runDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ltv_pipeline_run_duration_seconds",
		Help:    "Wall time of full pipeline runs, by final status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})
	lastSuccess := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ltv_pipeline_last_success_timestamp_seconds",
		Help: "Unix time of the last run that wrote a snapshot.",
	})
	reg.MustRegister(rowsIn, dropped, recordsOut, runDuration, lastSuccess)
	return &PipelineMetrics{
		rowsIn:      rowsIn,
		dropped:     dropped,
		recordsOut:  recordsOut,
		runDuration: runDuration,
		lastSuccess: lastSuccess,
	}
}

func (p *PipelineMetrics) AddRowsIn(source string, n int) {
	if p == nil || p.rowsIn == nil || n <= 0 {
		return
	}
	p.rowsIn.WithLabelValues(normalizeLabel(source)).Add(float64(n))
}

func (p *PipelineMetrics) AddDropped(reason string, n int) {
	if p == nil || p.dropped == nil || n <= 0 {
		return
	}
	p.dropped.WithLabelValues(normalizeLabel(reason)).Add(float64(n))
}

func (p *PipelineMetrics) AddRecordsOut(n int) {
	if p == nil || p.recordsOut == nil || n <= 0 {
		return
	}
	p.recordsOut.Add(float64(n))
}

// ObserveRun records the run duration and, for successful runs, the completion time.
func (p *PipelineMetrics) ObserveRun(status string, duration time.Duration, finishedAt time.Time, snapshotWritten bool) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.WithLabelValues(normalizeLabel(status)).Observe(duration.Seconds())
	if snapshotWritten && p.lastSuccess != nil {
		p.lastSuccess.Set(float64(finishedAt.Unix()))
	}
}
