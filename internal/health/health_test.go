package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func ok(context.Context) error { return nil }

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("storage", NewPingChecker("storage", ok))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var response Response
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Status != StatusHealthy || response.Version != "v1.0.0" || len(response.Checks) != 1 {
		t.Fatalf("unexpected response: %+v", response)
	}
}

func TestHealthHandler_Unhealthy(t *testing.T) {
	t.Parallel()

	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("storage", NewPingChecker("storage", func(context.Context) error {
		return errors.New("connection refused")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ReadinessHandler(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable || w.Body.String() != "not ready" {
		t.Fatalf("unexpected readiness: %d %q", w.Code, w.Body.String())
	}
}

func TestEvaluate_DegradedBacklogKeepsReadiness(t *testing.T) {
	t.Parallel()

	handler := NewHandler("dev")
	handler.RegisterChecker("storage", NewPingChecker("storage", ok))
	handler.RegisterChecker("outbox", NewBacklogChecker("outbox", time.Minute, func(context.Context) (time.Time, error) {
		return time.Now().Add(-time.Hour), nil
	}))

	response := handler.Evaluate(context.Background())
	if response.Status != StatusDegraded {
		t.Fatalf("expected degraded, got %s", response.Status)
	}
	if response.Checks["outbox"].Message == "" {
		t.Fatal("expected backlog message")
	}

	w := httptest.NewRecorder()
	handler.ReadinessHandler(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("degraded service must stay ready, got %d", w.Code)
	}
}

func TestEvaluate_CheckTimeout(t *testing.T) {
	t.Parallel()

	handler := NewHandler("dev")
	handler.timeout = 20 * time.Millisecond
	handler.RegisterChecker("slow", NewPingChecker("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	response := handler.Evaluate(context.Background())
	if response.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy, got %s", response.Status)
	}
}

func TestLivenessHandler(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	LivenessHandler(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("unexpected liveness: %d %q", w.Code, w.Body.String())
	}
}
