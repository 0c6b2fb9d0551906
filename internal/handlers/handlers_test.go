package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/russellmoss/guest-count-check/internal/commerce"
	"github.com/russellmoss/guest-count-check/internal/guestcount"
	"github.com/russellmoss/guest-count-check/internal/platform/auth"
	"github.com/russellmoss/guest-count-check/internal/services"
)

type stubVerifier struct {
	token *firebaseauth.Token
	err   error
}

func (s stubVerifier) VerifyIDToken(context.Context, string) (*firebaseauth.Token, error) {
	return s.token, s.err
}

type testAPI struct {
	router chi.Router
	calls  *atomic.Int32
}

type apiOptions struct {
	authn        *auth.Authenticator
	exclusions   []guestcount.ExcludedProduct
	exposeDetail bool
	exportLimit  int
}

// newTestAPI wires the real client, fetcher and services against a fake upstream.
func newTestAPI(t *testing.T, upstream http.HandlerFunc, opts apiOptions) testAPI {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		upstream(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := commerce.NewClient(commerce.Config{
		BaseURL:   srv.URL,
		TenantID:  "tasting-room",
		AppID:     "app",
		SecretKey: "secret",
		Timeout:   5 * time.Second,
	})
	require.NoError(t, err)
	fetcher, err := commerce.NewFetcher(client, commerce.WithPageDelay(0))
	require.NoError(t, err)
	exclusions, err := guestcount.NewExclusionSet(opts.exclusions...)
	require.NoError(t, err)
	reports, err := services.NewReportService(services.ReportServiceDeps{Fetcher: fetcher, Orders: client, Exclusions: exclusions})
	require.NoError(t, err)
	exports, err := services.NewExportService(services.ExportServiceDeps{Reports: reports})
	require.NoError(t, err)
	connectivity, err := services.NewConnectionService(client)
	require.NoError(t, err)

	authn := opts.authn
	if authn == nil {
		authn = auth.NewAuthenticator(nil, auth.WithDisabled(true))
	}
	orders := NewOrderHandlers(reports, opts.exposeDetail)
	export := NewExportHandlers(exports, WithExportRateLimit(opts.exportLimit), WithExportErrorDetail(opts.exposeDetail))
	connection := NewConnectionHandlers(connectivity, opts.exposeDetail)

	router := NewRouter(
		WithAuthMiddleware(authn.RequireAuth),
		WithAPIRoutes(orders.Routes),
		WithExportRoutes(export.Routes),
		WithConnectionHandler(connection.TestConnection),
	)
	return testAPI{router: router, calls: &calls}
}

func (a testAPI) get(t *testing.T, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

const twoOrderPage = `{
	"total": 2,
	"orders": [
		{"id": "order1", "orderNumber": 1001, "orderPaidDate": "2024-01-10T17:00:00Z", "guestCount": 0,
		 "salesAssociate": {"name": "Dana"}, "total": 4872, "items": [{"productId": "flight", "title": "Flight"}]},
		{"id": "order2", "orderNumber": 1002, "orderPaidDate": "2024-01-11T17:00:00Z", "guestCount": 4,
		 "salesAssociate": {"name": "Lee"}, "total": 9900, "items": []}
	]
}`

func serveJSON(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}
