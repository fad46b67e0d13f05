// Package broker wires the core components to client-facing transports: a
// TCP acceptor and a WebSocket acceptor feed raw bytes into per-connection
// frame decoders, decoded frames are dispatched to a FrameHandler, and
// outbound frames flow through a bounded per-connection queue.
//
// The package deliberately stops at framing and dispatch. Session state,
// subscriptions, and delivery semantics live above the FrameHandler
// boundary.
package broker
