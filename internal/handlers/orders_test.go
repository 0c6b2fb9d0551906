package handlers

import (
	"errors"
	"net/http"
	"testing"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/require"

	"github.com/russellmoss/guest-count-check/internal/guestcount"
	"github.com/russellmoss/guest-count-check/internal/platform/auth"
)

func TestListOrdersReturnsOrdersMissingGuestCount(t *testing.T) {
	var paidDate string
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		paidDate = r.URL.Query().Get("orderPaidDate")
		serveJSON(twoOrderPage)(w, r)
	}, apiOptions{})

	rec := api.get(t, "/api/orders?from=2024-01-01&to=2024-01-31")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	require.Equal(t, float64(1), body["total"])
	orders, _ := body["orders"].([]any)
	require.Len(t, orders, 1)
	order := orders[0].(map[string]any)
	require.Equal(t, "order1", order["id"])
	require.Equal(t, "1001", order["orderNumber"])

	require.Equal(t, map[string]any{"from": "2024-01-01", "to": "2024-01-31"}, body["dateRange"])
	require.Equal(t, "btw:2024-01-01|2024-01-31", paidDate)
}

func TestListOrdersWithoutDatesMakesNoUpstreamCall(t *testing.T) {
	api := newTestAPI(t, serveJSON(twoOrderPage), apiOptions{})

	rec := api.get(t, "/api/orders")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "invalid_request", body["error"])
	require.NotEmpty(t, body["message"])

	require.Equal(t, http.StatusBadRequest, api.get(t, "/api/orders?from=yesterday-ish").Code, "invalid date")
	require.Equal(t, http.StatusBadRequest, api.get(t, "/api/orders?from=2024-02-01&to=2024-01-01").Code, "inverted range")
	require.Zero(t, api.calls.Load(), "no upstream calls")
}

func TestListOrdersClubMemberExclusion(t *testing.T) {
	page := `{"orders": [
		{"id": "club", "orderNumber": 1, "items": [{"productId": "6F1C2A9E-4B7D-4E1A-9C3F-0D8E5B2A7C41"}]},
		{"id": "walkin", "orderNumber": 2, "items": [{"productId": "flight"}]}
	]}`
	api := newTestAPI(t, serveJSON(page), apiOptions{exclusions: []guestcount.ExcludedProduct{
		{ID: "6f1c2a9e-4b7d-4e1a-9c3f-0d8e5b2a7c41", Category: guestcount.CategoryClubMember},
	}})

	body := decodeBody(t, api.get(t, "/api/orders?from=2024-01-01"))
	orders := body["orders"].([]any)
	require.Len(t, orders, 1)
	require.Equal(t, "walkin", orders[0].(map[string]any)["id"])
}

func TestListOrdersNoOrders(t *testing.T) {
	api := newTestAPI(t, serveJSON(`{"orders": [], "total": 0}`), apiOptions{})

	rec := api.get(t, "/api/orders?to=2024-01-31")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "no_orders", decodeBody(t, rec)["error"])
}

func TestListOrdersUpstreamFailureDetail(t *testing.T) {
	failing := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`<b>bad</b>   credentials`))
	}

	dev := newTestAPI(t, failing, apiOptions{exposeDetail: true})
	rec := dev.get(t, "/api/orders?from=2024-01-01")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "upstream_error", body["error"])
	require.Equal(t, "bad credentials", body["detail"])

	prod := newTestAPI(t, failing, apiOptions{})
	body = decodeBody(t, prod.get(t, "/api/orders?from=2024-01-01"))
	require.NotContains(t, body, "detail", "production responses carry no detail")
}

func TestListAssociates(t *testing.T) {
	page := `{"orders": [
		{"id": "a", "orderNumber": 1, "salesAssociate": {"name": "zoe"}},
		{"id": "b", "orderNumber": 2, "salesAssociate": {"name": "Dana"}},
		{"id": "c", "orderNumber": 3},
		{"id": "d", "orderNumber": 4, "salesAssociate": {"name": "Dana"}},
		{"id": "e", "orderNumber": 5, "guestCount": 2, "salesAssociate": {"name": "Lee"}}
	]}`
	api := newTestAPI(t, serveJSON(page), apiOptions{})

	body := decodeBody(t, api.get(t, "/api/associates?from=2024-01-01&to=2024-01-31"))
	require.Equal(t, []any{"Dana", "Unknown", "zoe"}, body["associates"])
	require.Equal(t, float64(3), body["total"])
}

func TestListOrdersRefinement(t *testing.T) {
	page := `{"orders": [
		{"id": "a", "orderNumber": "A-100", "salesAssociate": {"name": "Dana"}},
		{"id": "b", "orderNumber": "B-200", "salesAssociate": {"name": "Lee"}},
		{"id": "c", "orderNumber": "a-300"}
	]}`
	api := newTestAPI(t, serveJSON(page), apiOptions{})

	body := decodeBody(t, api.get(t, "/api/orders?from=2024-01-01&associates=Dana,Unknown&search=a-"))
	orders := body["orders"].([]any)
	require.Len(t, orders, 2)
	require.Equal(t, "a", orders[0].(map[string]any)["id"])
	require.Equal(t, "c", orders[1].(map[string]any)["id"])
}

func TestGetOrder(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/order/ord-9":
			_, _ = w.Write([]byte(`{"id":"ord-9","custom":{"x":1}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}, apiOptions{})

	rec := api.get(t, "/api/order/ord-9")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, `{"id":"ord-9","custom":{"x":1}}`, rec.Body.String())

	rec = api.get(t, "/api/order/missing")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "order_not_found", decodeBody(t, rec)["error"])
}

func TestAPIRequiresBearerToken(t *testing.T) {
	verifier := stubVerifier{token: &firebaseauth.Token{UID: "u1", Claims: map[string]interface{}{"email": "dana@winery.example", "email_verified": true}}}
	api := newTestAPI(t, serveJSON(twoOrderPage), apiOptions{
		authn: auth.NewAuthenticator(verifier, auth.WithAllowedEmailDomains("winery.example")),
	})

	require.Equal(t, http.StatusUnauthorized, api.get(t, "/api/orders?from=2024-01-01").Code)
	require.Equal(t, http.StatusUnauthorized, api.get(t, "/export?from=2024-01-01").Code)
	require.Zero(t, api.calls.Load(), "no upstream calls before authentication")
	require.Equal(t, http.StatusOK, api.get(t, "/api/orders?from=2024-01-01", "Authorization", "Bearer good").Code)

	rejected := newTestAPI(t, serveJSON(twoOrderPage), apiOptions{
		authn: auth.NewAuthenticator(stubVerifier{err: errors.New("expired")}),
	})
	require.Equal(t, http.StatusUnauthorized, rejected.get(t, "/api/orders?from=2024-01-01", "Authorization", "Bearer stale").Code)
}
