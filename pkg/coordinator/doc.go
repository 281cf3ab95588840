// Package coordinator implements the model update seam between a rendering engine
// and the feedback pipeline.
//
// The engine hands every incoming model to Decorate and publishes the result, then
// calls RootChanged so dependent services can react to the new root. Notifications
// are never interleaved with a replay.
package coordinator
