package log

import (
	"time"

	"github.com/torqbus-protocol/torqbus-go/pkg/wire"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID uniquely identifies the bus session (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// NodeID is the remote node involved, when there is one.
	NodeID wire.NodeID `cbor:"6,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Transfer    *TransferEvent    `cbor:"11,keyasint,omitempty"` // Wire layer (decoded)
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Coordinator/session state
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the framing layer (raw bytes).
	LayerTransport Layer = 0
	// LayerWire is the frame decoding layer.
	LayerWire Layer = 1
	// LayerSession is the dispatch/RPC layer.
	LayerSession Layer = 2
	// LayerEnumeration is the enumeration workflow layer.
	LayerEnumeration Layer = 3
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerSession:
		return "SESSION"
	case LayerEnumeration:
		return "ENUMERATION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event.
type Category uint8

const (
	// CategoryMessage is frame or transfer traffic.
	CategoryMessage Category = 0
	// CategoryState is a state transition.
	CategoryState Category = 1
	// CategoryError is an error condition.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw transport frame traffic.
type FrameEvent struct {
	// Size is the full frame size including the length prefix.
	Size int `cbor:"1,keyasint"`

	// Data is the frame payload, possibly truncated.
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates Data was cut to the logging limit.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// TransferEvent captures a decoded bus transfer.
type TransferEvent struct {
	// Kind is the frame kind.
	Kind wire.Kind `cbor:"1,keyasint"`

	// Type is the message type.
	Type wire.MessageType `cbor:"2,keyasint"`

	// Source is the sending node.
	Source wire.NodeID `cbor:"3,keyasint"`

	// Destination is the receiving node, 0 for broadcast.
	Destination wire.NodeID `cbor:"4,keyasint,omitempty"`

	// TransferID correlates requests and responses.
	TransferID uint8 `cbor:"5,keyasint,omitempty"`
}

// StateChangeEvent captures a state transition.
type StateChangeEvent struct {
	// Entity names what changed state (session, coordinator, round).
	Entity string `cbor:"1,keyasint"`

	// OldState is the state before the transition.
	OldState string `cbor:"2,keyasint"`

	// NewState is the state after the transition.
	NewState string `cbor:"3,keyasint"`

	// Reason optionally explains the transition.
	Reason string `cbor:"4,keyasint,omitempty"`
}

// ErrorEventData captures an error condition.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error text.
	Message string `cbor:"2,keyasint"`

	// Context optionally names the operation that failed.
	Context string `cbor:"3,keyasint,omitempty"`
}
