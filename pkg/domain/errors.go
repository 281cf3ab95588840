package domain

import "errors"

// ErrRequestTimeout is returned when a request opted into strict timeouts and no response arrived in time.
var ErrRequestTimeout = errors.New("request timed out")

// ErrNotConnected is returned when an envelope is sent over a transport that is not connected.
var ErrNotConnected = errors.New("transport not connected")

// ErrMalformedEnvelope is returned when an inbound envelope cannot be decoded or lacks an action kind.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// ErrEnvelopeTooLarge is returned when an inbound envelope exceeds the configured size limit.
var ErrEnvelopeTooLarge = errors.New("envelope exceeds maximum allowed size")

// ErrUnexpectedResponse is returned when a correlated response does not have the expected type.
var ErrUnexpectedResponse = errors.New("unexpected response type")

// ErrDispatcherClosed is returned by operations on a dispatcher that has been shut down.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// ErrSessionNotFound is returned when a session ID is unknown to the manager.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionExists is returned when opening a session whose ID is already in use.
var ErrSessionExists = errors.New("session already exists")

// ErrInvalidEmitter is returned when a feedback emitter cannot be used as a registry key.
var ErrInvalidEmitter = errors.New("invalid feedback emitter")

// ErrInvalidPayload is returned when an action's payload violates its contract.
var ErrInvalidPayload = errors.New("invalid action payload")

// ErrUnknownEffect is returned when a feedback action kind has no effect constructor.
var ErrUnknownEffect = errors.New("unknown feedback effect")
