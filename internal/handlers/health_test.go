package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/russellmoss/guest-count-check/internal/domain"
	"github.com/russellmoss/guest-count-check/internal/services"
)

type stubSystemService struct {
	report services.SystemHealthReport
	err    error
}

func (s *stubSystemService) HealthReport(context.Context) (services.SystemHealthReport, error) {
	return s.report, s.err
}

type readinessBody struct {
	Status string `json:"status"`
	Checks map[string]struct {
		Status string `json:"status"`
		Detail string `json:"detail"`
		Error  string `json:"error"`
	} `json:"checks"`
	Details []string `json:"details"`
}

func readyz(t *testing.T, h *HealthHandlers) (*httptest.ResponseRecorder, readinessBody) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	var body readinessBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return rr, body
}

func TestHealthHandlersHealthz(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(30 * time.Second)
	handlers := NewHealthHandlers(
		WithHealthBuildInfo(services.BuildInfo{
			Version:     "1.0.0",
			CommitSHA:   "abc123",
			Environment: "prod",
			StartedAt:   start,
		}),
		WithHealthClock(func() time.Time { return now }),
	)

	rr := httptest.NewRecorder()
	handlers.Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, domain.HealthStatusOK, body["status"])
	require.Equal(t, "1.0.0", body["version"])
	require.Equal(t, "abc123", body["commitSha"])
	require.Equal(t, "prod", body["environment"])
	require.Equal(t, "30s", body["uptime"])
}

func TestHealthHandlersReadyzSuccess(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC)
	svc := &stubSystemService{
		report: services.SystemHealthReport{
			Status:      domain.HealthStatusOK,
			Version:     "1.0.0",
			CommitSHA:   "abc123",
			Environment: "prod",
			Uptime:      time.Minute,
			GeneratedAt: now,
			Checks: map[string]domain.SystemHealthCheck{
				"commerce": {Status: domain.HealthStatusOK, Latency: 10 * time.Millisecond, CheckedAt: now},
			},
		},
	}

	rr, body := readyz(t, NewHealthHandlers(
		WithHealthSystemService(svc),
		WithHealthClock(func() time.Time { return now }),
	))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, domain.HealthStatusOK, body.Status)
	require.Empty(t, body.Details)
	require.Equal(t, domain.HealthStatusOK, body.Checks["commerce"].Status)
}

func TestHealthHandlersReadyzDegradedStaysInRotation(t *testing.T) {
	svc := &stubSystemService{
		report: services.SystemHealthReport{
			Status: domain.HealthStatusDegraded,
			Checks: map[string]domain.SystemHealthCheck{
				"commerce":  {Status: domain.HealthStatusOK},
				"firestore": {Status: domain.HealthStatusDegraded, Detail: "unreachable", Error: "rpc <b>unavailable</b>"},
			},
		},
	}

	rr, body := readyz(t, NewHealthHandlers(WithHealthSystemService(svc), WithHealthErrorDetail(true)))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, domain.HealthStatusDegraded, body.Status)
	require.Equal(t, []string{"firestore: rpc unavailable"}, body.Details)
	require.Equal(t, "rpc unavailable", body.Checks["firestore"].Error)
}

func TestHealthHandlersReadyzWithholdsDependencyErrors(t *testing.T) {
	const secretBody = `commerce: list orders: status 401: {"message":"tenant acme-winery secret-key sk_live_123 rejected"}`
	svc := &stubSystemService{
		report: services.SystemHealthReport{
			Status: domain.HealthStatusError,
			Checks: map[string]domain.SystemHealthCheck{
				"commerce": {Status: domain.HealthStatusError, Detail: "unreachable", Error: secretBody},
			},
		},
	}

	rr, body := readyz(t, NewHealthHandlers(WithHealthSystemService(svc)))

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.NotContains(t, rr.Body.String(), "sk_live_123")
	require.NotContains(t, rr.Body.String(), "acme-winery")
	require.Empty(t, body.Checks["commerce"].Error)
	require.Equal(t, "unreachable", body.Checks["commerce"].Detail)
	require.Equal(t, []string{"commerce: unreachable"}, body.Details)
}

func TestHealthHandlersReadyzError(t *testing.T) {
	svc := &stubSystemService{
		report: services.SystemHealthReport{
			Status: domain.HealthStatusError,
			Checks: map[string]domain.SystemHealthCheck{
				"commerce": {Status: domain.HealthStatusError, Detail: "timeout", Error: "context deadline exceeded"},
			},
		},
	}

	rr, body := readyz(t, NewHealthHandlers(WithHealthSystemService(svc)))

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Equal(t, []string{"commerce: timeout"}, body.Details)
}

func TestHealthHandlersReadyzReportFailure(t *testing.T) {
	svc := &stubSystemService{err: errors.New("boom")}

	rr := httptest.NewRecorder()
	NewHealthHandlers(WithHealthSystemService(svc)).Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "health_unavailable", body["error"])
}

var _ services.SystemService = (*stubSystemService)(nil)
