package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func findFamily(t *testing.T, name string) *dto.MetricFamily {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func TestStageMetricsRegistered(t *testing.T) {
	StageTotal.WithLabelValues("logic", "success").Inc()
	StageDuration.WithLabelValues("logic").Observe(1.5)
	RunsTotal.WithLabelValues("generate", "success").Inc()

	if f := findFamily(t, "spielwerk_pipeline_stage_total"); f == nil {
		t.Error("spielwerk_pipeline_stage_total not registered")
	}
	if f := findFamily(t, "spielwerk_pipeline_stage_duration_seconds"); f == nil {
		t.Error("spielwerk_pipeline_stage_duration_seconds not registered")
	}
	if f := findFamily(t, "spielwerk_pipeline_runs_total"); f == nil {
		t.Error("spielwerk_pipeline_runs_total not registered")
	}
}

func TestProviderTokenCounter(t *testing.T) {
	ProviderTokensTotal.WithLabelValues("openaicompat", "kimi-k2", "input").Add(100)
	ProviderTokensTotal.WithLabelValues("openaicompat", "kimi-k2", "output").Add(250)

	f := findFamily(t, "spielwerk_provider_tokens_total")
	if f == nil {
		t.Fatal("spielwerk_provider_tokens_total not registered")
	}
	var found bool
	for _, m := range f.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == "direction" && l.GetValue() == "output" {
				found = true
			}
		}
	}
	if !found {
		t.Error("expected an output-direction sample")
	}
}

func TestMetricsMiddlewareRecordsStatusClass(t *testing.T) {
	handler := MetricsMiddleware("/v1/games/generate",
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))

	req := httptest.NewRequest(http.MethodPost, "/v1/games/generate", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	f := findFamily(t, "spielwerk_requests_total")
	if f == nil {
		t.Fatal("spielwerk_requests_total not registered")
	}
	var found bool
	for _, m := range f.GetMetric() {
		var route, status string
		for _, l := range m.GetLabel() {
			switch l.GetName() {
			case "route":
				route = l.GetValue()
			case "status":
				status = l.GetValue()
			}
		}
		if route == "/v1/games/generate" && status == "4xx" {
			found = true
		}
	}
	if !found {
		t.Error("expected a 4xx sample for the generate route")
	}
}
