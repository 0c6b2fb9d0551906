package handlers

import (
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/russellmoss/guest-count-check/internal/domain"
	"github.com/russellmoss/guest-count-check/internal/platform/httpx"
	"github.com/russellmoss/guest-count-check/internal/platform/requestctx"
	"github.com/russellmoss/guest-count-check/internal/services"
)

// HealthHandlers serves the liveness and readiness endpoints.
type HealthHandlers struct {
	system       services.SystemService
	build        services.BuildInfo
	clock        func() time.Time
	exposeDetail bool
}

// HealthOption customises HealthHandlers.
type HealthOption func(*HealthHandlers)

// WithHealthSystemService sets the service consulted by /readyz.
func WithHealthSystemService(svc services.SystemService) HealthOption {
	return func(h *HealthHandlers) {
		h.system = svc
	}
}

// WithHealthBuildInfo sets the metadata reported by /healthz.
func WithHealthBuildInfo(build services.BuildInfo) HealthOption {
	return func(h *HealthHandlers) {
		h.build = build
	}
}

// WithHealthClock injects a clock, primarily for tests.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// WithHealthErrorDetail attaches sanitized dependency errors to /readyz. Without it the
// response carries only the fixed check detail such as "unreachable" or "timeout".
func WithHealthErrorDetail(expose bool) HealthOption {
	return func(h *HealthHandlers) {
		h.exposeDetail = expose
	}
}

// NewHealthHandlers constructs the health handlers. Without a system service /readyz reports ok.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.build.StartedAt.IsZero() {
		h.build.StartedAt = h.clock()
	}
	return h
}

type healthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version,omitempty"`
	CommitSHA   string `json:"commitSha,omitempty"`
	Environment string `json:"environment,omitempty"`
	Uptime      string `json:"uptime"`
	Timestamp   string `json:"timestamp"`
}

type readinessCheck struct {
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
	CheckedAt string `json:"checkedAt,omitempty"`
}

type readinessResponse struct {
	healthResponse
	Checks  map[string]readinessCheck `json:"checks"`
	Details []string                  `json:"details,omitempty"`
}

// Healthz reports that the process is serving.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock().UTC()
	httpx.WriteJSON(w, http.StatusOK, healthResponse{
		Status:      domain.HealthStatusOK,
		Version:     h.build.Version,
		CommitSHA:   h.build.CommitSHA,
		Environment: h.build.Environment,
		Uptime:      now.Sub(h.build.StartedAt).Round(time.Second).String(),
		Timestamp:   now.Format(time.RFC3339),
	})
}

// Readyz runs the dependency checks. Only an error status answers 503; a degraded optional
// dependency keeps the instance in rotation.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.clock().UTC()
	if h.system == nil {
		h.Healthz(w, r)
		return
	}

	report, err := h.system.HealthReport(ctx)
	if err != nil {
		requestctx.Logger(ctx).Error("readiness report failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("health_unavailable", "unable to collect health report", http.StatusServiceUnavailable))
		return
	}

	resp := readinessResponse{
		healthResponse: healthResponse{
			Status:      report.Status,
			Version:     firstNonEmpty(report.Version, h.build.Version),
			CommitSHA:   firstNonEmpty(report.CommitSHA, h.build.CommitSHA),
			Environment: firstNonEmpty(report.Environment, h.build.Environment),
			Uptime:      report.Uptime.Round(time.Second).String(),
			Timestamp:   now.Format(time.RFC3339),
		},
		Checks: make(map[string]readinessCheck, len(report.Checks)),
	}

	names := make([]string, 0, len(report.Checks))
	for name := range report.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		check := report.Checks[name]
		rc := readinessCheck{
			Status:    check.Status,
			Detail:    check.Detail,
			LatencyMS: check.Latency.Milliseconds(),
		}
		if h.exposeDetail {
			rc.Error = httpx.SanitizeDetail(check.Error)
		}
		if !check.CheckedAt.IsZero() {
			rc.CheckedAt = check.CheckedAt.UTC().Format(time.RFC3339)
		}
		resp.Checks[name] = rc
		if check.Status == domain.HealthStatusOK {
			continue
		}
		if check.Error != "" {
			requestctx.Logger(ctx).Warn("dependency check failed",
				zap.String("dependency", name),
				zap.String("status", check.Status),
				zap.String("error", check.Error),
			)
		}
		if reason := firstNonEmpty(rc.Error, check.Detail); reason != "" {
			resp.Details = append(resp.Details, name+": "+reason)
		}
	}

	status := http.StatusOK
	if report.Status == domain.HealthStatusError {
		status = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, status, resp)
}
