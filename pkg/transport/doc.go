// Package transport provides the link between a host tool and a TORQBUS
// bridge: length-prefixed framing over a byte stream, and a TCP client that
// dials a bridge.
//
// A frame is a 4-byte big-endian length prefix followed by one CBOR-encoded
// bus frame (see package wire). The bridge forwards every bus transfer it
// sees and injects frames the host sends, so the host behaves like any other
// node on the multi-drop bus.
//
// The Conn interface is deliberately small; internal/testharness implements
// it in memory so the whole enumeration workflow can run in tests without a
// bridge.
package transport
