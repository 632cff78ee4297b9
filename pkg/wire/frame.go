package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// NodeID identifies a bus participant. IDs are assigned by the dynamic
// allocation protocol before any tool in this repository runs, and never
// change afterwards.
type NodeID uint8

// BroadcastNodeID is the destination of broadcast frames.
const BroadcastNodeID NodeID = 0

// Kind classifies a frame.
type Kind uint8

const (
	// KindBroadcast is an unsolicited frame visible to all nodes.
	KindBroadcast Kind = 1
	// KindRequest is a frame addressed to a single node expecting a response.
	KindRequest Kind = 2
	// KindResponse answers a request, carrying the request's transfer id.
	KindResponse Kind = 3
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindBroadcast:
		return "BROADCAST"
	case KindRequest:
		return "REQUEST"
	case KindResponse:
		return "RESPONSE"
	default:
		return fmt.Sprintf("KIND(%d)", uint8(k))
	}
}

// IsValid reports whether the kind is one of the defined values.
func (k Kind) IsValid() bool {
	return k >= KindBroadcast && k <= KindResponse
}

// MessageType identifies the payload schema of a frame.
type MessageType uint16

const (
	// TypeNodeStatus is the periodic liveness broadcast every node emits.
	TypeNodeStatus MessageType = 341
	// TypeESCStatus is the periodic status broadcast emitted by ESC nodes.
	TypeESCStatus MessageType = 1034
	// TypeEnumerationIndication is the unsolicited event an ESC in
	// enumeration mode emits upon a physical trigger.
	TypeEnumerationIndication MessageType = 380

	// TypeEnumerationBegin starts enumeration mode on a node.
	TypeEnumerationBegin MessageType = 15
	// TypeEnumerationStop ends enumeration mode on a node.
	TypeEnumerationStop MessageType = 16
	// TypeParamGetSet reads or writes a named configuration parameter.
	TypeParamGetSet MessageType = 11
	// TypeParamExecuteOpcode executes a parameter storage operation.
	TypeParamExecuteOpcode MessageType = 10
)

// String returns the message type name.
func (t MessageType) String() string {
	switch t {
	case TypeNodeStatus:
		return "NodeStatus"
	case TypeESCStatus:
		return "ESCStatus"
	case TypeEnumerationIndication:
		return "EnumerationIndication"
	case TypeEnumerationBegin:
		return "EnumerationBegin"
	case TypeEnumerationStop:
		return "EnumerationStop"
	case TypeParamGetSet:
		return "ParamGetSet"
	case TypeParamExecuteOpcode:
		return "ParamExecuteOpcode"
	default:
		return fmt.Sprintf("MessageType(%d)", uint16(t))
	}
}

// Frame is the bridge envelope around every bus transfer.
//
// CBOR encoding:
//
//	{
//	  1: kind,        // uint8: 1=broadcast, 2=request, 3=response
//	  2: type,        // uint16: message type id
//	  3: source,      // uint8: sending node id
//	  4: destination, // uint8: receiving node id, 0 for broadcast
//	  5: transferId,  // uint8: correlation id, 0 for broadcast
//	  6: payload      // type-specific CBOR
//	}
type Frame struct {
	Kind        Kind            `cbor:"1,keyasint"`
	Type        MessageType     `cbor:"2,keyasint"`
	Source      NodeID          `cbor:"3,keyasint"`
	Destination NodeID          `cbor:"4,keyasint,omitempty"`
	TransferID  uint8           `cbor:"5,keyasint,omitempty"`
	Payload     cbor.RawMessage `cbor:"6,keyasint,omitempty"`
}

// Validate checks frame envelope consistency.
func (f *Frame) Validate() error {
	if !f.Kind.IsValid() {
		return fmt.Errorf("invalid frame kind: %d", f.Kind)
	}
	if f.Kind == KindBroadcast && f.Destination != BroadcastNodeID {
		return fmt.Errorf("broadcast frame with destination %d", f.Destination)
	}
	if f.Kind != KindBroadcast && f.Destination == BroadcastNodeID {
		return fmt.Errorf("%s frame without destination", f.Kind)
	}
	return nil
}
