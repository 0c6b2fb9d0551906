// Package auth verifies Firebase ID tokens on inbound requests.
package auth

import (
	"context"
	"strings"

	firebaseauth "firebase.google.com/go/v4/auth"
)

// Identity is the authenticated caller extracted from a Firebase ID token.
type Identity struct {
	UID           string
	Email         string
	EmailVerified bool

	token *firebaseauth.Token
}

// Token exposes the decoded ID token. Nil for the local development identity.
func (i *Identity) Token() *firebaseauth.Token {
	if i == nil {
		return nil
	}
	return i.token
}

// EmailDomain returns the lower-cased domain part of the email, or "".
func (i *Identity) EmailDomain() string {
	if i == nil {
		return ""
	}
	_, domain, ok := strings.Cut(i.Email, "@")
	if !ok {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(domain))
}

// Key identifies the caller for per-identity limits.
func (i *Identity) Key() string {
	if i == nil {
		return ""
	}
	if i.UID != "" {
		return i.UID
	}
	return strings.ToLower(i.Email)
}

type contextKey struct{}

// WithIdentity stores identity on ctx.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

// IdentityFromContext returns the identity stored by the middleware.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(contextKey{}).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}
