package metrics

import (
	"fmt"

	dto "github.com/prometheus/client_model/go"
)

// fetchCounterValue finds the series of name carrying every label pair in kv.
func fetchCounterValue(mfs []*dto.MetricFamily, name string, kv ...string) (float64, error) {
	m, err := findSeries(mfs, name, kv)
	if err != nil {
		return 0, err
	}
	return m.GetCounter().GetValue(), nil
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name string, kv ...string) (float64, error) {
	m, err := findSeries(mfs, name, kv)
	if err != nil {
		return 0, err
	}
	return m.GetHistogram().GetSampleSum(), nil
}

func findSeries(mfs []*dto.MetricFamily, name string, kv []string) (*dto.Metric, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return nil, fmt.Errorf("metric %q not found", name)
	}
	for _, m := range mf.GetMetric() {
		if hasLabels(m.GetLabel(), kv) {
			return m, nil
		}
	}
	return nil, fmt.Errorf("metric %q has no series with labels %v", name, kv)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func hasLabels(labels []*dto.LabelPair, kv []string) bool {
	have := make(map[string]string, len(labels))
	for _, l := range labels {
		have[l.GetName()] = l.GetValue()
	}
	for i := 0; i+1 < len(kv); i += 2 {
		if have[kv[i]] != kv[i+1] {
			return false
		}
	}
	return true
}
