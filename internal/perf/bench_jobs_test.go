package perf

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	jobmetrics "github.com/fixflow-erp/fixflow/internal/jobs"
	_ "github.com/fixflow-erp/fixflow/internal/testing/guard"
)

func TestBackgroundJobThroughputAndReliability(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)

	// Simulate the frequent alert scans finishing fast and mostly successful.
	for i := 0; i < 60; i++ {
		tracker := metrics.Track("warehouse:alert_scan")
		time.Sleep(2 * time.Millisecond)
		if err := tracker.End(nil); err != nil {
			t.Fatalf("unexpected error ending scan tracker: %v", err)
		}
	}

	// The daily report is slower but must stay within its 2s budget.
	for i := 0; i < 10; i++ {
		tracker := metrics.Track("report:daily")
		time.Sleep(20 * time.Millisecond)
		if err := tracker.End(nil); err != nil {
			t.Fatalf("unexpected error ending report tracker: %v", err)
		}
	}

	// Inject a couple of failures to confirm they are counted.
	for i := 0; i < 3; i++ {
		tracker := metrics.Track("warehouse:alert_scan")
		time.Sleep(2 * time.Millisecond)
		if err := tracker.End(errors.New("timeout")); err == nil {
			t.Fatal("expected error to propagate")
		}
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	success := metricValue(t, families, "fixflow_job_runs_total", map[string]string{"job": "warehouse:alert_scan", "status": "success"})
	failure := metricValue(t, families, "fixflow_job_runs_total", map[string]string{"job": "warehouse:alert_scan", "status": "failure"})
	if success+failure == 0 {
		t.Fatal("no alert scan executions recorded")
	}
	ratio := success / (success + failure)
	if ratio < 0.9 {
		t.Fatalf("alert scan success ratio too low: %f", ratio)
	}

	reportDuration := histogramMean(t, families, "fixflow_job_duration_seconds", map[string]string{"job": "report:daily"})
	if reportDuration > 2.0 {
		t.Fatalf("daily report duration above budget: %f", reportDuration)
	}

	scanDuration := histogramMean(t, families, "fixflow_job_duration_seconds", map[string]string{"job": "warehouse:alert_scan"})
	if scanDuration > 0.5 {
		t.Fatalf("alert scan duration above budget: %f", scanDuration)
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				if fam.GetType() == dto.MetricType_COUNTER {
					return metric.GetCounter().GetValue()
				}
				if fam.GetType() == dto.MetricType_GAUGE {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	for _, lp := range metric.GetLabel() {
		if val, ok := labels[lp.GetName()]; ok {
			if lp.GetValue() != val {
				return false
			}
		}
	}
	for key := range labels {
		found := false
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == key {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
