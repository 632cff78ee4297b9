// Package testharness provides an in-memory TORQBUS for tests: a broadcast
// medium implementing transport.Conn, and scripted ESC node emulations that
// answer enumeration and parameter requests the way real firmware would,
// including the failure modes the workflow must survive or report.
//
// Each emulated node runs its own session pump on its own goroutine; the
// code under test pumps the host session exactly as it would against a real
// bridge.
package testharness
