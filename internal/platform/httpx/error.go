// Package httpx holds the JSON response helpers shared by every handler.
package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/microcosm-cc/bluemonday"

	"github.com/russellmoss/guest-count-check/internal/platform/requestctx"
)

const maxDetailBytes = 1 << 10

var detailPolicy = bluemonday.StrictPolicy()

// Error is the JSON error envelope returned by every endpoint.
type Error struct {
	Code      string
	Message   string
	Status    int
	Detail    string
	RequestID string
	TraceID   string
}

// NewError constructs an Error. A zero status becomes 500.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    sanitize(code, 80),
		Message: sanitize(message, 512),
		Status:  status,
	}
}

// WithDetail attaches diagnostic text such as an upstream response body. Markup is stripped and
// the result is capped at 1 KiB.
func (e Error) WithDetail(detail string) Error {
	e.Detail = SanitizeDetail(detail)
	return e
}

// WithRequestID overrides the request id taken from context.
func (e Error) WithRequestID(id string) Error {
	e.RequestID = sanitize(id, 80)
	return e
}

// SanitizeDetail strips HTML, collapses whitespace and truncates to 1 KiB on a rune boundary.
func SanitizeDetail(detail string) string {
	cleaned := strings.Join(strings.Fields(detailPolicy.Sanitize(detail)), " ")
	if len(cleaned) <= maxDetailBytes {
		return cleaned
	}
	cut := maxDetailBytes
	for cut > 0 && !utf8.RuneStart(cleaned[cut]) {
		cut--
	}
	return cleaned[:cut]
}

// WriteError writes err as JSON, filling request and trace ids from ctx.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	requestID := err.RequestID
	if requestID == "" {
		requestID = requestctx.RequestID(ctx)
	}
	if requestID == "" {
		requestID = middleware.GetReqID(ctx)
	}

	payload := map[string]any{
		"error":   err.Code,
		"message": err.Message,
		"status":  status,
	}
	if err.Detail != "" {
		payload["detail"] = err.Detail
	}
	if requestID = sanitize(requestID, 80); requestID != "" {
		payload["request_id"] = requestID
	}
	if traceID := sanitize(requestctx.TraceID(ctx), 64); traceID != "" {
		payload["trace_id"] = traceID
	}

	WriteJSON(w, status, payload)
}

// WriteJSON encodes body with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func sanitize(value string, limit int) string {
	value = strings.TrimSpace(strings.NewReplacer("\n", " ", "\r", " ").Replace(value))
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
