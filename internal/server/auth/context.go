package auth

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type ctxKey struct{}

// WithIdentity stores the authenticated caller in ctx.
func WithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFromContext returns the caller stored by WithIdentity, or nil.
func IdentityFromContext(ctx context.Context) *models.Identity {
	id, ok := ctx.Value(ctxKey{}).(models.Identity)
	if !ok {
		return nil
	}
	return &id
}
