// Package bus implements the TORQBUS host session: typed send/receive of bus
// frames over a bridge connection, driven by a cooperative dispatch pump.
//
// # Dispatch Model
//
// A Session makes progress only while Spin runs. A background goroutine does
// nothing but move raw frames from the connection into an inbox; decoding,
// subscription handlers, response handlers, request timeouts and periodic
// publications all execute synchronously inside Spin, on the calling
// goroutine. There is exactly one mutator of session state, so handlers may
// mutate whatever the caller shares with them without synchronization.
//
// Consequently a Session is not safe for concurrent use: construct it, call
// its methods and pump it from a single goroutine.
//
// # Waiting
//
// Every wait in this repository has the same shape: pump the session,
// check a condition, repeat until the condition holds or a deadline passes.
// SpinUntil packages that shape.
//
// # Requests
//
// Request registers a pending call keyed by (destination, transfer id) and
// resolves it exactly once: with the response frame when one arrives, or
// with ErrRequestTimeout when the deadline passes first. There are no
// automatic retries at this layer or above it.
package bus
