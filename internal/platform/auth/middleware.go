package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
	"go.uber.org/zap"

	"github.com/russellmoss/guest-count-check/internal/platform/httpx"
	"github.com/russellmoss/guest-count-check/internal/platform/observability"
	"github.com/russellmoss/guest-count-check/internal/platform/requestctx"
)

const defaultVerifyTimeout = 5 * time.Second

// LocalIdentityUID is attached to every request when authentication is disabled.
const LocalIdentityUID = "local-dev"

// TokenVerifier verifies Firebase ID tokens.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// Authenticator turns bearer tokens into an Identity on the request context.
type Authenticator struct {
	verifier       TokenVerifier
	allowedDomains map[string]struct{}
	disabled       bool
	timeout        time.Duration
}

// Option customises an Authenticator.
type Option func(*Authenticator)

// WithAllowedEmailDomains restricts access to identities whose email belongs to one of domains.
// An empty list allows every verified identity.
func WithAllowedEmailDomains(domains ...string) Option {
	return func(a *Authenticator) {
		for _, domain := range domains {
			domain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(domain), "@"))
			if domain != "" {
				a.allowedDomains[domain] = struct{}{}
			}
		}
	}
}

// WithDisabled skips token verification and attaches a fixed local identity. Only for local
// development.
func WithDisabled(disabled bool) Option {
	return func(a *Authenticator) {
		a.disabled = disabled
	}
}

// WithVerificationTimeout bounds each token verification.
func WithVerificationTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAuthenticator constructs an Authenticator over verifier.
func NewAuthenticator(verifier TokenVerifier, opts ...Option) *Authenticator {
	a := &Authenticator{
		verifier:       verifier,
		allowedDomains: make(map[string]struct{}),
		timeout:        defaultVerifyTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// RequireAuth rejects requests without a valid bearer token with 401, and identities outside
// the allowed email domains with 403.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if a != nil && a.disabled {
			identity := &Identity{UID: LocalIdentityUID, Email: LocalIdentityUID + "@localhost"}
			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
			return
		}

		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeAuthError(ctx, w, http.StatusUnauthorized, "unauthenticated", "authorization bearer token required")
			return
		}
		if a == nil || a.verifier == nil {
			writeAuthError(ctx, w, http.StatusUnauthorized, "unauthenticated", "authentication is not configured")
			return
		}

		verifyCtx, cancel := context.WithTimeout(ctx, a.timeout)
		decoded, err := a.verifier.VerifyIDToken(verifyCtx, token)
		cancel()
		if err != nil {
			requestctx.Logger(ctx).Info("id token rejected", zap.String("reason", verificationReason(err)))
			writeAuthError(ctx, w, http.StatusUnauthorized, "unauthenticated", "invalid or expired id token")
			return
		}

		identity := &Identity{
			UID:           decoded.UID,
			Email:         stringClaim(decoded.Claims, "email"),
			EmailVerified: boolClaim(decoded.Claims, "email_verified"),
			token:         decoded,
		}
		if !a.domainAllowed(identity) {
			writeAuthError(ctx, w, http.StatusForbidden, "forbidden", "account is not permitted to use this service")
			return
		}

		ctx = requestctx.WithFields(WithIdentity(ctx, identity), zap.String("uid", observability.SanitizeUserID(identity.UID)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) domainAllowed(identity *Identity) bool {
	if len(a.allowedDomains) == 0 {
		return true
	}
	if !identity.EmailVerified {
		return false
	}
	_, ok := a.allowedDomains[identity.EmailDomain()]
	return ok
}

func verificationReason(err error) string {
	switch {
	case firebaseauth.IsIDTokenExpired(err):
		return "expired"
	case firebaseauth.IsIDTokenRevoked(err):
		return "revoked"
	case firebaseauth.IsIDTokenInvalid(err):
		return "invalid"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "verification_failed"
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func stringClaim(claims map[string]interface{}, key string) string {
	v, _ := claims[key].(string)
	return strings.TrimSpace(v)
}

func boolClaim(claims map[string]interface{}, key string) bool {
	v, _ := claims[key].(bool)
	return v
}

func writeAuthError(ctx context.Context, w http.ResponseWriter, status int, code, message string) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="guest-count-check"`)
	}
	httpx.WriteError(ctx, w, httpx.NewError(code, message, status))
}
