package observability

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/russellmoss/guest-count-check/internal/platform/requestctx"
)

func TestRequestLoggerMiddlewareLogsCompletion(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	var seenRequestID string
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(InjectLoggerMiddleware(zap.New(core)))
	router.Use(TraceMiddleware("gc-prod"))
	router.Use(RequestLoggerMiddleware())
	router.Get("/api/order/{id}", func(w http.ResponseWriter, r *http.Request) {
		seenRequestID = requestctx.RequestID(r.Context())
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/order/abc?token=s3cret&page=2", nil)
	req.Header.Set(cloudTraceHeader, "105445aa7843bc8bf206b12000100000/1;o=1")
	router.ServeHTTP(httptest.NewRecorder(), req)

	require.NotEmpty(t, seenRequestID, "request id on handler context")
	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level, "404 logs at warn")
	fields := entry.ContextMap()
	assert.Equal(t, "/api/order/{id}", fields["route"])
	assert.Equal(t, int64(http.StatusNotFound), fields["status"])
	assert.Equal(t, seenRequestID, fields["request_id"])
	query, _ := fields["query"].(string)
	assert.NotContains(t, query, "s3cret")
	assert.Contains(t, query, "page=2")
	assert.Equal(t, "105445aa7843bc8bf206b12000100000", fields["trace_id"])
	assert.Equal(t, "projects/gc-prod/traces/105445aa7843bc8bf206b12000100000", fields["logging.googleapis.com/trace"])
}

func TestRecoveryMiddlewareWritesEnvelope(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	handler := InjectLoggerMiddleware(zap.New(core))(RecoveryMiddleware()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal_error", body["error"])
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestParseCloudTraceContext(t *testing.T) {
	sc, ok := parseCloudTraceContext("105445aa7843bc8bf206b12000100000/000000000000000a;o=0")
	require.True(t, ok, "hex span id parses")
	assert.Equal(t, "000000000000000a", sc.SpanID().String())
	assert.False(t, sc.IsSampled())

	for _, header := range []string{"", "short/1", "105445aa7843bc8bf206b12000100000", "105445aa7843bc8bf206b12000100000/0"} {
		_, ok := parseCloudTraceContext(header)
		assert.False(t, ok, header)
	}
}

func TestSanitizeQuery(t *testing.T) {
	require.Equal(t, "ID_TOKEN=REDACTED&from=2024-01-01", SanitizeQuery(url.Values{"from": {"2024-01-01"}, "ID_TOKEN": {"abc"}}))
	require.Empty(t, SanitizeQuery(nil))
}
