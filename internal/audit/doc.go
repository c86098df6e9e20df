// Package audit implements async event dispatching for authentication
// outcomes on the client.
//
// # Components
//
//   - [Sink] is the interface for event consumers (channel, JSON writer, no-op).
//   - [Dispatcher] is a buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event] is the structured record: timestamp, type, user, masked phone, flow, metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which
// events to emit; that belongs to the Engine and the flow functions.
//
// # What this package must NOT do
//
//   - Carry passwords, codes, or tokens in events.
//   - Import the root package or any sibling internal package.
package audit
