// Package transport defines the external-interface contract spec.md §1
// scopes out of the core's concern: dialect framing, session management,
// and reconnect policy belong to a concrete adapter, not the engine. This
// package pins down the contract every adapter must satisfy and ships a
// reference implementation over gorilla/websocket, which cmd/engine dials
// when a stream URL is configured, plus the in-memory Loopback. Grounded on
// original_source/hft/src/transport.h's Transport interface shape.
package transport

// ConnectedSentinel is the payload RegisterMessageCallback's handler
// receives once per successful reconnection after a drop (the initial
// connection made by the constructor delivers none), letting callers
// distinguish "the socket just came up" from an ordinary application
// message without a side-channel connection-state callback.
const ConnectedSentinel = "__CONNECTED__"

// MessageHandler processes one inbound frame (or the ConnectedSentinel).
type MessageHandler func(msg []byte)

// Transport is the contract a concrete exchange adapter implements. Write
// is non-blocking: a caller that can't be serviced immediately (e.g. a
// saturated send buffer) gets an error rather than blocking the hot path
// that called it.
type Transport interface {
	// Write sends msg and returns the number of bytes written, or an error
	// if the transport can't accept it right now.
	Write(msg []byte) (int, error)
	// RegisterMessageCallback installs the handler invoked for every inbound
	// frame, including ConnectedSentinel on reconnect. Only one handler is
	// retained; registering again replaces it.
	RegisterMessageCallback(handler MessageHandler)
	// Close releases the underlying connection.
	Close() error
}
