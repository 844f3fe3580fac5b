package telemetry

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/pthm-cable/soupview/transport"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		out[mf.GetName()] = mf
	}
	return out
}

func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

func TestMetricsObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, nil)

	m.PatchApplied(testSnapshot(), 200*time.Microsecond)
	m.PatchApplied(testSnapshot(), 300*time.Microsecond)
	m.PatchRejected("malformed")
	m.ConnectionState(transport.StateConnected, nil)

	got := gather(t, reg)

	if v := got["soupview_patches_applied_total"].GetMetric()[0].GetCounter().GetValue(); v != 2 {
		t.Errorf("patches_applied_total = %v, want 2", v)
	}
	rejected := got["soupview_patches_rejected_total"].GetMetric()[0]
	if labelValue(rejected, "reason") != "malformed" || rejected.GetCounter().GetValue() != 1 {
		t.Errorf("patches_rejected_total = %v", rejected)
	}
	if n := got["soupview_patch_apply_duration_seconds"].GetMetric()[0].GetHistogram().GetSampleCount(); n != 2 {
		t.Errorf("apply duration samples = %d, want 2", n)
	}
	if v := got["soupview_world_tick"].GetMetric()[0].GetGauge().GetValue(); v != 42 {
		t.Errorf("world_tick = %v, want 42", v)
	}

	kinds := map[string]float64{}
	for _, mt := range got["soupview_world_entities"].GetMetric() {
		kinds[labelValue(mt, "kind")] = mt.GetGauge().GetValue()
	}
	if kinds["plant"] != 1 || kinds["creature"] != 2 {
		t.Errorf("world_entities = %v", kinds)
	}

	for _, mt := range got["soupview_connection_state"].GetMetric() {
		want := 0.0
		if labelValue(mt, "state") == "connected" {
			want = 1
		}
		if mt.GetGauge().GetValue() != want {
			t.Errorf("connection_state{state=%q} = %v, want %v", labelValue(mt, "state"), mt.GetGauge().GetValue(), want)
		}
	}

	if _, ok := got["soupview_frames_drawn_total"]; ok {
		t.Error("frame metrics registered without a perf collector")
	}
}

func TestMetricsFrameCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	perf := NewPerfCollector(10)
	NewMetrics(reg, perf)

	for range 3 {
		perf.StartFrame()
		perf.EndFrame()
	}
	perf.RecordSkip()

	got := gather(t, reg)
	if v := got["soupview_frames_drawn_total"].GetMetric()[0].GetCounter().GetValue(); v != 3 {
		t.Errorf("frames_drawn_total = %v, want 3", v)
	}
	if v := got["soupview_frames_skipped_total"].GetMetric()[0].GetCounter().GetValue(); v != 1 {
		t.Errorf("frames_skipped_total = %v, want 1", v)
	}
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, nil)
	m.PatchApplied(testSnapshot(), time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "soupview_patches_applied_total 1") {
		t.Errorf("body missing applied counter:\n%s", rec.Body.String())
	}
}
