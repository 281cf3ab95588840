// Package tool contains diagram tools modelled as explicit state machines.
//
// A tool owns its transient state (pressed handle, drag origin, bounds in progress)
// and transitions only on discrete input events. While active it contributes
// overlay through the feedback registry; on deselection it resets and dispatches
// undo feedback so the overlay disappears at once.
package tool
