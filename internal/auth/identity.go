// Package auth resolves who is making a request: a static local owner, a
// shared bearer token, or an OAuth2 login turned into a signed session.
package auth

import (
	"context"
	"net/http"
)

// Identity is the authenticated user. Subject doubles as the bookmark owner ID.
type Identity struct {
	Subject string `json:"sub"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
}

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by the middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok && id.Subject != ""
}

// OwnerFrom returns the owner ID of the request, or "" when unauthenticated.
func OwnerFrom(r *http.Request) string {
	id, _ := FromContext(r.Context())
	return id.Subject
}
