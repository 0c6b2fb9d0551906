package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/russellmoss/guest-count-check/internal/metrics"
	"github.com/russellmoss/guest-count-check/internal/platform/auth"
	"github.com/russellmoss/guest-count-check/internal/platform/httpx"
	"github.com/russellmoss/guest-count-check/internal/platform/requestctx"
	"github.com/russellmoss/guest-count-check/internal/services"
)

// ExportIDHeader carries the id under which an export was logged.
const ExportIDHeader = "X-Export-ID"

// ExportHandlers serves the spreadsheet download.
type ExportHandlers struct {
	exports      services.ExportService
	limiter      rateLimiter
	metrics      services.ExportRecorder
	exposeDetail bool
}

// ExportOption customises ExportHandlers.
type ExportOption func(*ExportHandlers)

// WithExportRateLimit caps downloads per caller per minute. Zero disables the cap.
func WithExportRateLimit(perMinute int) ExportOption {
	return func(h *ExportHandlers) {
		h.limiter = newPerMinuteLimiter(perMinute, nil)
	}
}

// WithExportMetrics records rate-limited requests.
func WithExportMetrics(recorder services.ExportRecorder) ExportOption {
	return func(h *ExportHandlers) {
		h.metrics = recorder
	}
}

// WithExportErrorDetail attaches upstream error bodies to error responses.
func WithExportErrorDetail(expose bool) ExportOption {
	return func(h *ExportHandlers) {
		h.exposeDetail = expose
	}
}

// NewExportHandlers constructs ExportHandlers.
func NewExportHandlers(exports services.ExportService, opts ...ExportOption) *ExportHandlers {
	h := &ExportHandlers{exports: exports}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers GET /export.
func (h *ExportHandlers) Routes(r chi.Router) {
	r.Get("/export", h.download)
}

func (h *ExportHandlers) download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.limiter != nil {
		key := ""
		if identity, ok := auth.IdentityFromContext(ctx); ok {
			key = identity.Key()
		}
		if !h.limiter.Allow(key) {
			if h.metrics != nil {
				h.metrics.ExportRecorded(metrics.ExportLimited)
			}
			w.Header().Set("Retry-After", "60")
			httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many export requests, try again shortly", http.StatusTooManyRequests))
			return
		}
	}

	result, err := h.exports.Export(ctx, reportQuery(r.URL.Query()))
	if err != nil {
		writeServiceError(ctx, w, err, h.exposeDetail)
		return
	}

	book := result.Workbook
	header := w.Header()
	header.Set("Content-Type", book.ContentType)
	header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", book.Filename))
	header.Set("Content-Length", strconv.Itoa(book.Buffer.Len()))
	header.Set("Cache-Control", "no-store")
	header.Set(ExportIDHeader, result.ID)
	w.WriteHeader(http.StatusOK)
	if _, err := book.Buffer.WriteTo(w); err != nil {
		requestctx.Logger(ctx).Warn("export write interrupted", zap.String("export_id", result.ID), zap.Error(err))
	}
}
