package authz

import (
	"context"

	"github.com/zonegate/zonegate/internal/policy"
)

// ctxKey is a private type for context keys to prevent collisions.
type ctxKey int

const (
	verdictKey ctxKey = iota // stores policy.Verdict
)

// WithVerdict attaches an authorization verdict to the context.
func WithVerdict(ctx context.Context, v policy.Verdict) context.Context {
	return context.WithValue(ctx, verdictKey, v)
}

// VerdictFromContext retrieves the authorization verdict from context.
// The second return is false if no verdict was attached.
func VerdictFromContext(ctx context.Context) (policy.Verdict, bool) {
	v, ok := ctx.Value(verdictKey).(policy.Verdict)
	return v, ok
}
