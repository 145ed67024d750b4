package utils

import (
	"context"

	"github.com/tutorly/tutorly-backend/internal/identity"
)

type contextKey string

const ContextIdentityKey contextKey = "identity"

// IdentityFromContext returns the verified caller placed by the auth
// middleware.
func IdentityFromContext(ctx context.Context) (identity.Identity, bool) {
	id, ok := ctx.Value(ContextIdentityKey).(identity.Identity)
	return id, ok
}

// WithIdentity attaches the verified caller to the request context.
func WithIdentity(ctx context.Context, id identity.Identity) context.Context {
	return context.WithValue(ctx, ContextIdentityKey, id)
}
