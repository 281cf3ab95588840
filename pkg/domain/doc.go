/*
Package domain contains the core types of the Lattice action dispatch core.

It defines the messages exchanged between actors (Actions, their Request and
Response refinements), the wire Envelope and its Codec, and the Element tree
that the rendering engine owns and feedback decorates. This package is kept
free of I/O, following Hexagonal Architecture principles.

# Key Entities

  - Action: an immutable message discriminated by Kind.
  - RequestAction / ResponseAction: actions correlated through requestId/responseId.
  - Envelope: an action plus the ID of the peer that sent it.
  - Codec: converts envelopes to and from JSON, decoding known kinds into typed actions.
  - Element: a node of the model tree, with authoritative data and overlay state.
*/
package domain
