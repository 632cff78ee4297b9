// Package log provides structured protocol event logging for TORQBUS tools.
//
// Components emit typed Events (frames, transfers, state changes, errors)
// through the Logger interface rather than writing text directly. Tools pick
// the sink: SlogAdapter for console output, FileLogger for a CBOR event log
// that can be replayed later, MultiLogger for both, NoopLogger for none.
package log
