// Package dispatch implements the action dispatcher: the per-session bus that routes
// actions to handlers and correlates responses with the requests that produced them.
//
// Lifecycle:
//
//	d := dispatch.New(dispatch.WithLogger(logger))
//	_ = d.Start()
//	defer d.Close(ctx)
//
// Correlation is event driven. Every Request owns one pending entry and one timer;
// the first of response, timeout, cancellation or Close to remove the entry from the
// pending table completes the request, and the others become no-ops.
package dispatch
