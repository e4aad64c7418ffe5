package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"power-saver/internal/config"
	"power-saver/internal/schedule"
	"power-saver/internal/service"
)

type staticSource struct {
	points []schedule.RawPoint
}

func (s *staticSource) FetchPrices(context.Context, time.Time) ([]schedule.RawPoint, error) {
	return s.points, nil
}

func testService(t *testing.T) *service.Service {
	t.Helper()

	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	points := make([]schedule.RawPoint, 6)
	for i, p := range []float64{5, 1, 8, 2, 9, 7} {
		s := start.Add(time.Duration(i) * time.Hour)
		points[i] = schedule.RawPoint{Start: s, End: s.Add(time.Hour), Price: decimal.NewFromFloat(p)}
	}

	cfg := &config.Config{
		Planner: config.PlannerConfig{
			Instance:       "test",
			Mode:           string(schedule.ModeCheapest),
			Strategy:       string(schedule.StrategyLowestPrice),
			HoursPerPeriod: 2,
		},
		Pricing: config.PricingConfig{Area: "FI", Currency: "EUR"},
	}

	svc, err := service.New(cfg, service.Options{
		Engine: schedule.NewEngine(zerolog.Nop()),
		Source: &staticSource{points: points},
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("service.New returned error: %v", err)
	}

	if err := svc.ProcessTick(context.Background(), start); err != nil {
		t.Fatalf("ProcessTick returned error: %v", err)
	}
	return svc
}

func TestHealthz(t *testing.T) {
	srv := NewServer(testService(t), zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/api/healthz", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status %d, want 200", rec.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := NewServer(testService(t), zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status endpoint returned %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode status body: %v", err)
	}
	if body["current_status"] != "standby" {
		t.Errorf("current_status %v, want standby", body["current_status"])
	}
	if body["emergency"] != false {
		t.Error("healthy schedule must not report emergency")
	}
}

func TestScheduleEndpoint(t *testing.T) {
	srv := NewServer(testService(t), zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/api/schedule", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	var snap service.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode schedule body: %v", err)
	}
	if len(snap.Slots) != 6 {
		t.Errorf("expected 6 slots, got %d", len(snap.Slots))
	}
	if snap.ActiveSlotCount != 2 {
		t.Errorf("active slot count %d, want 2", snap.ActiveSlotCount)
	}
}

func TestRequestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	srv := NewServer(testService(t), logger)
	req := httptest.NewRequest(http.MethodGet, "/api/healthz", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	logged := buf.String()
	if !strings.Contains(logged, "/api/healthz") || !strings.Contains(logged, `"status":200`) {
		t.Errorf("request log missing path or status: %s", logged)
	}
}

func TestOverrideEndpointRejectsConflict(t *testing.T) {
	srv := NewServer(testService(t), zerolog.Nop())
	req := httptest.NewRequest(http.MethodPost, "/api/override", strings.NewReader(`{"force_on":true,"force_off":true}`))
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("conflicting override returned %d, want 400", rec.Code)
	}
}
