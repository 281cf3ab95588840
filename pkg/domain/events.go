package domain

import (
	"context"
	"time"
)

// RequestOutcome describes how a correlated request completed.
type RequestOutcome string

const (
	OutcomeResolved  RequestOutcome = "resolved"
	OutcomeTimeout   RequestOutcome = "timeout"
	OutcomeCancelled RequestOutcome = "cancelled"
)

// DispatchEvent describes one action leaving the dispatch queue.
type DispatchEvent struct {
	Kind     string `json:"kind"`
	Handlers int    `json:"handlers"`
}

// HandlerEvent describes the completion of one handler invocation.
type HandlerEvent struct {
	Kind     string        `json:"kind"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// RequestEvent describes the completion of a correlated request.
type RequestEvent struct {
	Kind      string         `json:"kind"`
	RequestID string         `json:"request_id"`
	Outcome   RequestOutcome `json:"outcome"`
	Duration  time.Duration  `json:"duration"`
}

// ReplayEvent describes one feedback replay.
type ReplayEvent struct {
	Effects  int           `json:"effects"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// LifecycleHooks defines callbacks for dispatcher and replay observability.
// Any callback may be nil.
type LifecycleHooks struct {
	OnDispatch    func(context.Context, *DispatchEvent)
	OnHandlerDone func(context.Context, *HandlerEvent)
	OnRequestDone func(context.Context, *RequestEvent)
	OnUnsolicited func(context.Context, ResponseAction)
	OnReplay      func(context.Context, *ReplayEvent)
}
