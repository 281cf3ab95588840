// Package websocket implements ports.Transport over gorilla/websocket.
//
// Each envelope travels as one JSON text frame in the domain.Codec wire format.
// The same Transport serves both ends: Dial on the client, Upgrade in an HTTP handler.
package websocket
