package compiler

import (
	"context"

	"github.com/google/uuid"
)

// ActivationContext partitions registered items into batches. Two items
// belong to the same batch exactly when they carry the same
// *ActivationContext; comparison is pointer identity.
type ActivationContext struct {
	id string
}

// NewActivationContext creates a fresh activation context.
func NewActivationContext() *ActivationContext {
	return &ActivationContext{id: uuid.NewString()}
}

// ID returns a diagnostic identifier for log lines. It plays no part in
// batch membership.
func (a *ActivationContext) ID() string {
	if a == nil {
		return ""
	}
	return a.id
}

type activationContextKey struct{}

// NewActivationScope derives a child context carrying a fresh activation
// context. Items registered under the returned context belong to the new
// batch.
func NewActivationScope(ctx context.Context) (context.Context, *ActivationContext) {
	actx := NewActivationContext()
	return context.WithValue(ctx, activationContextKey{}, actx), actx
}

// WithActivationContext derives a child context carrying an existing
// activation context. Child-object expansion uses it to re-enter the
// declaring item's batch.
func WithActivationContext(ctx context.Context, actx *ActivationContext) context.Context {
	return context.WithValue(ctx, activationContextKey{}, actx)
}

// ActivationContextFrom returns the activation context carried by ctx, or
// nil when none is present.
func ActivationContextFrom(ctx context.Context) *ActivationContext {
	actx, _ := ctx.Value(activationContextKey{}).(*ActivationContext)
	return actx
}
