package ports

import (
	"context"

	"github.com/aretw0/lattice/pkg/domain"
)

// ActionDispatcher delivers actions to their registered handlers.
// Features use it to fire actions without depending on the concrete dispatcher.
type ActionDispatcher interface {
	Dispatch(ctx context.Context, action domain.Action) error
	DispatchAll(ctx context.Context, actions []domain.Action) error
}
