package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/jplwindssalinity/v3proc-sub010/calib"
	"github.com/jplwindssalinity/v3proc-sub010/footprint"
	"github.com/jplwindssalinity/v3proc-sub010/search"
)

var (
	_ search.Recorder    = (*GeometryCollector)(nil)
	_ footprint.Recorder = (*GeometryCollector)(nil)
	_ calib.Recorder     = (*GeometryCollector)(nil)
)

func TestCollectorRecordsSearchesAndSlices(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewGeometryCollector(reg)
	if err != nil {
		t.Fatalf("NewGeometryCollector: %v", err)
	}

	c.ObservePeakSearch(search.Converged.String(), 1)
	c.ObservePeakSearch(search.Converged.String(), 3)
	c.ObservePeakSearch(search.BestEffort.String(), 10)
	c.ObserveSlice("ok")
	c.ObserveSlice("error")
	c.IncPulses()

	if got := testutil.ToFloat64(c.PeakSearches.WithLabelValues("converged")); got != 2 {
		t.Fatalf("scat_peak_searches_total{converged} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.PeakSearches.WithLabelValues("best_effort")); got != 1 {
		t.Fatalf("scat_peak_searches_total{best_effort} = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "scat_peak_search_passes", nil); count != 3 {
		t.Fatalf("scat_peak_search_passes sample_count = %d, want 3", count)
	}
	if got := testutil.ToFloat64(c.Slices.WithLabelValues("error")); got != 1 {
		t.Fatalf("scat_slices_total{error} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Pulses); got != 1 {
		t.Fatalf("scat_pulses_total = %v, want 1", got)
	}
}

func TestCollectorRecordsTableBuilds(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewGeometryCollector(reg)
	if err != nil {
		t.Fatalf("NewGeometryCollector: %v", err)
	}
	c.ObserveTableBuild("rgc", "ok", 2.5)
	c.ObserveTableBuild("rgc", "error", 0.2)
	c.ObserveRefit("dtc")

	if got := testutil.ToFloat64(c.TableBuilds.WithLabelValues("rgc", "ok")); got != 1 {
		t.Fatalf("scat_table_builds_total{rgc,ok} = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "scat_table_build_duration_seconds", map[string]string{"table": "rgc"}); count != 2 {
		t.Fatalf("scat_table_build_duration_seconds sample_count = %d, want 2", count)
	}
	if got := testutil.ToFloat64(c.Refits.WithLabelValues("dtc")); got != 1 {
		t.Fatalf("scat_table_refits_total{dtc} = %v, want 1", got)
	}
}

func TestCollectorReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewGeometryCollector(reg)
	if err != nil {
		t.Fatalf("first NewGeometryCollector: %v", err)
	}
	second, err := NewGeometryCollector(reg)
	if err != nil {
		t.Fatalf("second NewGeometryCollector: %v", err)
	}
	first.ObserveSlice("ok")
	second.ObserveSlice("ok")
	if got := testutil.ToFloat64(first.Slices.WithLabelValues("ok")); got != 2 {
		t.Fatalf("shared scat_slices_total{ok} = %v, want 2", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *GeometryCollector
	c.ObservePeakSearch("converged", 1)
	c.ObserveSlice("ok")
	c.ObserveTableBuild("rgc", "ok", 1)
	c.ObserveRefit("rgc")
	c.IncPulses()
}

func TestMetricsHandlerExposesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewGeometryCollector(reg)
	if err != nil {
		t.Fatalf("NewGeometryCollector: %v", err)
	}
	c.ObservePeakSearch("converged", 2)
	c.ObserveSlice("best_effort")
	c.ObserveTableBuild("dtc", "ok", 12)
	c.ObserveRefit("dtc")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"scat_peak_searches_total",
		"scat_peak_search_passes",
		"scat_slices_total",
		"scat_table_builds_total",
		"scat_table_build_duration_seconds",
		"scat_table_refits_total",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func TestTracingConfigFromEnv(t *testing.T) {
	t.Setenv("SCAT_TRACING_ENABLED", "TRUE")
	t.Setenv("SCAT_TRACING_EXPORTER", "OTLP")
	t.Setenv("SCAT_TRACING_SAMPLE_RATIO", "0.25")
	t.Setenv("SCAT_TRACING_SERVICE_NAME", "")
	t.Setenv("SCAT_OTLP_ENDPOINT", "collector:4317")

	cfg := TracingConfigFromEnv("calgen")
	if !cfg.Enabled || cfg.Exporter != "otlp" || cfg.SampleRatio != 0.25 ||
		cfg.ServiceName != "calgen" || cfg.Endpoint != "collector:4317" {
		t.Fatalf("TracingConfigFromEnv = %+v", cfg)
	}

	t.Setenv("SCAT_TRACING_SAMPLE_RATIO", "7")
	if cfg := TracingConfigFromEnv("calgen"); cfg.SampleRatio != 1 {
		t.Fatalf("out of range ratio = %v, want 1", cfg.SampleRatio)
	}
}

func TestInitTracingStdout(t *testing.T) {
	var buf strings.Builder
	ctx := context.Background()
	shutdown, err := InitTracing(ctx, TracingConfig{
		Enabled:     true,
		ServiceName: "test",
		Exporter:    "stdout",
		SampleRatio: 1,
		Writer:      &buf,
	}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	_, span := Tracer("calib").Start(ctx, "calib.BuildTable")
	span.End()
	ShutdownWithTimeout(ctx, shutdown, nil)

	if !strings.Contains(buf.String(), "calib.BuildTable") {
		t.Fatalf("exported spans missing calib.BuildTable: %q", buf.String())
	}

	if _, err := InitTracing(ctx, TracingConfig{Enabled: true, Exporter: "zipkin"}, nil); err == nil {
		t.Fatal("expected error for unsupported exporter")
	}
	if _, err := InitTracing(ctx, TracingConfig{}, nil); err != nil {
		t.Fatalf("disabled InitTracing: %v", err)
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
