package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/lattice/pkg/domain"
)

// LoggingHooks returns hooks that log lifecycle events at debug level,
// and handler failures at warn.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnDispatch: func(ctx context.Context, e *domain.DispatchEvent) {
			logger.DebugContext(ctx, "action_dispatched", "kind", e.Kind, "handlers", e.Handlers)
		},
		OnHandlerDone: func(ctx context.Context, e *domain.HandlerEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "handler_failed", "kind", e.Kind, "duration", e.Duration, "err", e.Err)
				return
			}
			logger.DebugContext(ctx, "handler_done", "kind", e.Kind, "duration", e.Duration)
		},
		OnRequestDone: func(ctx context.Context, e *domain.RequestEvent) {
			logger.DebugContext(ctx, "request_done",
				"kind", e.Kind,
				"request_id", e.RequestID,
				"outcome", e.Outcome,
				"duration", e.Duration,
			)
		},
		OnReplay: func(ctx context.Context, e *domain.ReplayEvent) {
			logger.DebugContext(ctx, "feedback_replayed",
				"effects", e.Effects,
				"skipped", e.Skipped,
				"failed", e.Failed,
				"duration", e.Duration,
			)
		},
	}
}

// Chain merges hooks so that every non-nil callback runs, in argument order.
func Chain(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range hooks {
		out.OnDispatch = chain(out.OnDispatch, h.OnDispatch)
		out.OnHandlerDone = chain(out.OnHandlerDone, h.OnHandlerDone)
		out.OnRequestDone = chain(out.OnRequestDone, h.OnRequestDone)
		out.OnUnsolicited = chain(out.OnUnsolicited, h.OnUnsolicited)
		out.OnReplay = chain(out.OnReplay, h.OnReplay)
	}
	return out
}

func chain[E any](first, next func(context.Context, E)) func(context.Context, E) {
	switch {
	case first == nil:
		return next
	case next == nil:
		return first
	}
	return func(ctx context.Context, e E) {
		first(ctx, e)
		next(ctx, e)
	}
}
