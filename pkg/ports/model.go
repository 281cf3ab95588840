package ports

import (
	"context"

	"github.com/aretw0/lattice/pkg/domain"
)

// ModelEngine is the rendering engine that owns the authoritative model.
type ModelEngine interface {
	// Authoritative returns a fresh copy of the current undecorated model, or nil if none was set.
	Authoritative() *domain.Element

	// Replace swaps in a new authoritative model, decorating it before it becomes visible.
	// A zero revision is unversioned and always accepted.
	Replace(ctx context.Context, root *domain.Element, revision int64) error

	// Overlay applies fn to a copy of the published model and publishes the result.
	// The authoritative model is left untouched. If fn fails nothing is published.
	Overlay(ctx context.Context, fn func(root *domain.Element) error) error
}

// RootListener reacts to the published model root changing.
type RootListener interface {
	RootChanged(ctx context.Context, root *domain.Element)
}

// RootListenerFunc adapts a function to RootListener.
type RootListenerFunc func(ctx context.Context, root *domain.Element)

func (f RootListenerFunc) RootChanged(ctx context.Context, root *domain.Element) {
	f(ctx, root)
}
