package httpxtest

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// GetMetricValue gathers registry and returns the first sample of metricName
// whose labels include labels. Histograms yield their sample count.
func GetMetricValue(registry *prometheus.Registry, metricName string, labels map[string]string) (float64, error) {
	families, err := registry.Gather()
	if err != nil {
		return 0, fmt.Errorf("gather: %w", err)
	}

	for _, family := range families {
		if family.GetName() != metricName {
			continue
		}
		for _, m := range family.GetMetric() {
			if !hasLabels(m, labels) {
				continue
			}
			switch {
			case m.Counter != nil:
				return m.Counter.GetValue(), nil
			case m.Gauge != nil:
				return m.Gauge.GetValue(), nil
			case m.Histogram != nil:
				return float64(m.Histogram.GetSampleCount()), nil
			}
		}
	}
	return 0, fmt.Errorf("no sample of %q with labels %v", metricName, labels)
}

func hasLabels(m *dto.Metric, want map[string]string) bool {
	found := 0
	for _, pair := range m.GetLabel() {
		if v, ok := want[pair.GetName()]; ok {
			if v != pair.GetValue() {
				return false
			}
			found++
		}
	}
	return found == len(want)
}

func AssertMetricValueWithLabels(t *testing.T, registry *prometheus.Registry, metricName string, labels map[string]string, expected float64) {
	t.Helper()

	actual, err := GetMetricValue(registry, metricName, labels)
	if err != nil {
		t.Fatalf("metric %q: %v", metricName, err)
	}
	if actual != expected {
		t.Errorf("metric %q with labels %v: got %v, want %v", metricName, labels, actual, expected)
	}
}

// AssertNoMetric fails when a sample of metricName with labels exists.
func AssertNoMetric(t *testing.T, registry *prometheus.Registry, metricName string, labels map[string]string) {
	t.Helper()

	if v, err := GetMetricValue(registry, metricName, labels); err == nil {
		t.Errorf("metric %q with labels %v: unexpected sample with value %v", metricName, labels, v)
	}
}
