package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTokenVerifier struct {
	token    *firebaseauth.Token
	err      error
	received string
}

func (s *stubTokenVerifier) VerifyIDToken(_ context.Context, idToken string) (*firebaseauth.Token, error) {
	s.received = idToken
	if s.err != nil {
		return nil, s.err
	}
	return s.token, nil
}

func serve(t *testing.T, authn *Authenticator, header string) (*httptest.ResponseRecorder, *Identity) {
	t.Helper()
	var seen *Identity
	handler := authn.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		assert.True(t, ok, "identity in context")
		seen = identity
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, seen
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestRequireAuthAllowsValidToken(t *testing.T) {
	verifier := &stubTokenVerifier{token: &firebaseauth.Token{
		UID:    "uid-123",
		Claims: map[string]interface{}{"email": "Dana@Winery.example", "email_verified": true},
	}}
	authn := NewAuthenticator(verifier, WithAllowedEmailDomains("@winery.example"))

	rec, identity := serve(t, authn, "Bearer token-abc")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "token-abc", verifier.received)
	require.Equal(t, "uid-123", identity.UID)
	require.Equal(t, "winery.example", identity.EmailDomain())
	require.NotNil(t, identity.Token())
}

func TestRequireAuthMissingHeader(t *testing.T) {
	verifier := &stubTokenVerifier{}
	rec, _ := serve(t, NewAuthenticator(verifier), "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "unauthenticated", errorCode(t, rec))
	require.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
	require.Empty(t, verifier.received, "verifier is not called")

	rec, _ = serve(t, NewAuthenticator(verifier), "Basic abc")
	require.Equal(t, http.StatusUnauthorized, rec.Code, "non-bearer scheme")
}

func TestRequireAuthRejectsInvalidToken(t *testing.T) {
	verifier := &stubTokenVerifier{err: errors.New("signature mismatch")}
	rec, _ := serve(t, NewAuthenticator(verifier), "Bearer bad")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthForbidsOtherDomains(t *testing.T) {
	cases := map[string]map[string]interface{}{
		"other domain":  {"email": "someone@gmail.com", "email_verified": true},
		"unverified":    {"email": "dana@winery.example", "email_verified": false},
		"missing email": {},
	}
	for name, claims := range cases {
		t.Run(name, func(t *testing.T) {
			verifier := &stubTokenVerifier{token: &firebaseauth.Token{UID: "uid-9", Claims: claims}}
			rec, _ := serve(t, NewAuthenticator(verifier, WithAllowedEmailDomains("winery.example")), "Bearer ok")
			require.Equal(t, http.StatusForbidden, rec.Code)
			require.Equal(t, "forbidden", errorCode(t, rec))
		})
	}
}

func TestRequireAuthDisabledAttachesLocalIdentity(t *testing.T) {
	rec, identity := serve(t, NewAuthenticator(nil, WithDisabled(true)), "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, LocalIdentityUID, identity.UID)
}
