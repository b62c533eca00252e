package auth

import (
	"context"

	"github.com/insightlm/orchestrator/internal/model"
)

type contextKey struct{}

var principalKey contextKey

// WithPrincipal returns a context carrying the resolved principal.
func WithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the principal attached by the identity middleware.
func PrincipalFrom(ctx context.Context) (*model.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*model.Principal)
	return p, ok
}
