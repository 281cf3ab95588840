/*
Package lattice is the feedback-aware action dispatch core of an interactive diagram client.

Every diagram session owns one dispatcher and one feedback registry. Actions (immutable,
kind-tagged messages) flow through the dispatcher to the handlers registered for their
kind, or to a remote peer over a transport. Requests are correlated with their responses
by ID and bounded by a timeout.

Tools and services never decorate the model directly. They register feedback (handles,
CSS classes, capability flags, cursors) with the feedback registry, and every time the
model is replaced the replay pipeline re-applies all registered feedback, highest
priority first, before the new model becomes visible.

# Usage

	s, err := lattice.New(lattice.WithLogger(logger))
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close(ctx)

	// Connect to the peer that owns the authoritative model.
	go s.Run(ctx, transport)
	root, err := s.LoadModel(ctx)

	// Contribute overlay that survives model replacement.
	_ = s.Selection().Select("node-1")

# Packages

  - pkg/domain: actions, envelopes, the model tree and the wire codec.
  - pkg/dispatch: the dispatcher, request/response correlation and transport pumping.
  - pkg/feedback: the feedback registry, the closed effect table and the replay pipeline.
  - pkg/coordinator: the seam between the model engine and the replay pipeline.
  - pkg/session: session wiring and the multi-session Manager.
  - pkg/adapters: memory, websocket, redis, stdio and http adapters.
*/
package lattice
