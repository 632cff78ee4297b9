package wire

import "fmt"

// NodeHealth reports the self-assessed health a node broadcasts.
type NodeHealth uint8

const (
	HealthOK       NodeHealth = 0
	HealthWarning  NodeHealth = 1
	HealthError    NodeHealth = 2
	HealthCritical NodeHealth = 3
)

// String returns the health name.
func (h NodeHealth) String() string {
	switch h {
	case HealthOK:
		return "OK"
	case HealthWarning:
		return "WARNING"
	case HealthError:
		return "ERROR"
	case HealthCritical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("HEALTH(%d)", uint8(h))
	}
}

// NodeStatus is the periodic liveness broadcast every online node emits.
//
// CBOR encoding:
//
//	{
//	  1: uptimeSec,  // uint32
//	  2: health      // uint8
//	}
type NodeStatus struct {
	UptimeSec uint32     `cbor:"1,keyasint"`
	Health    NodeHealth `cbor:"2,keyasint"`
}

// ESCStatus is the periodic status broadcast ESC nodes emit. Its presence is
// what marks a node as an ESC; the tool never inspects the telemetry fields.
//
// CBOR encoding:
//
//	{
//	  1: escIndex,   // uint8: currently configured logical index
//	  2: rpm,        // int32
//	  3: voltage,    // float32: volts
//	  4: current     // float32: amperes
//	}
type ESCStatus struct {
	ESCIndex uint8   `cbor:"1,keyasint"`
	RPM      int32   `cbor:"2,keyasint,omitempty"`
	Voltage  float32 `cbor:"3,keyasint,omitempty"`
	Current  float32 `cbor:"4,keyasint,omitempty"`
}

// EnumerationIndication is the unsolicited broadcast an ESC in enumeration
// mode emits when the operator performs the physical trigger. ParameterName
// names the parameter the device wants its logical index written to.
//
// CBOR encoding:
//
//	{
//	  1: parameterName  // text
//	}
type EnumerationIndication struct {
	ParameterName string `cbor:"1,keyasint"`
}

// EnumerationError is the status an ESC returns for enumeration requests.
type EnumerationError uint8

const (
	// EnumerationErrorOK indicates the request was accepted.
	EnumerationErrorOK EnumerationError = 0
	// EnumerationErrorInvalidMode indicates the node cannot enter or leave
	// enumeration mode in its current state (e.g. armed and spinning).
	EnumerationErrorInvalidMode EnumerationError = 1
	// EnumerationErrorRejected indicates the node refused the request.
	EnumerationErrorRejected EnumerationError = 2
)

// String returns the error name.
func (e EnumerationError) String() string {
	switch e {
	case EnumerationErrorOK:
		return "OK"
	case EnumerationErrorInvalidMode:
		return "INVALID_MODE"
	case EnumerationErrorRejected:
		return "REJECTED"
	default:
		return fmt.Sprintf("ENUM_ERROR(%d)", uint8(e))
	}
}

// IsOK reports whether the request was accepted.
func (e EnumerationError) IsOK() bool { return e == EnumerationErrorOK }

// EnumerationBeginRequest starts enumeration mode on the destination node.
// TimeoutSec advertises how long the node should stay in enumeration mode
// before silently dropping out on its own.
//
// CBOR encoding:
//
//	{
//	  1: timeoutSec  // uint16
//	}
type EnumerationBeginRequest struct {
	TimeoutSec uint16 `cbor:"1,keyasint"`
}

// EnumerationBeginResponse acknowledges an EnumerationBeginRequest.
//
// CBOR encoding:
//
//	{
//	  1: error  // uint8
//	}
type EnumerationBeginResponse struct {
	Error EnumerationError `cbor:"1,keyasint"`
}

// EnumerationStopRequest ends enumeration mode on the destination node.
// The request carries no fields; the empty struct keeps the payload an
// encodable CBOR map.
type EnumerationStopRequest struct{}

// EnumerationStopResponse acknowledges an EnumerationStopRequest.
//
// CBOR encoding:
//
//	{
//	  1: error  // uint8
//	}
type EnumerationStopResponse struct {
	Error EnumerationError `cbor:"1,keyasint"`
}

// ParamValue is a configuration parameter value. Only integer parameters
// exist on the enumeration path; Set reports whether a value is present,
// distinguishing a read (no value) from a write of zero.
//
// CBOR encoding:
//
//	{
//	  1: set,    // bool
//	  2: integer // int64
//	}
type ParamValue struct {
	Set     bool  `cbor:"1,keyasint"`
	Integer int64 `cbor:"2,keyasint,omitempty"`
}

// IntegerValue returns a ParamValue holding v.
func IntegerValue(v int64) ParamValue {
	return ParamValue{Set: true, Integer: v}
}

// ParamGetSetRequest reads (empty value) or writes (value set) the named
// parameter on the destination node.
//
// CBOR encoding:
//
//	{
//	  1: name,   // text
//	  2: value   // ParamValue
//	}
type ParamGetSetRequest struct {
	Name  string     `cbor:"1,keyasint"`
	Value ParamValue `cbor:"2,keyasint,omitempty"`
}

// ParamGetSetResponse echoes the parameter name and its value after the
// operation. On a write the echoed value is the value actually stored,
// which callers must compare against the requested one.
//
// CBOR encoding:
//
//	{
//	  1: name,   // text
//	  2: value   // ParamValue
//	}
type ParamGetSetResponse struct {
	Name  string     `cbor:"1,keyasint"`
	Value ParamValue `cbor:"2,keyasint,omitempty"`
}

// ParamOpcode selects a parameter storage operation.
type ParamOpcode uint8

const (
	// OpcodeSave persists all parameters to non-volatile storage.
	OpcodeSave ParamOpcode = 0
	// OpcodeErase restores all parameters to factory defaults.
	OpcodeErase ParamOpcode = 1
)

// String returns the opcode name.
func (o ParamOpcode) String() string {
	switch o {
	case OpcodeSave:
		return "SAVE"
	case OpcodeErase:
		return "ERASE"
	default:
		return fmt.Sprintf("OPCODE(%d)", uint8(o))
	}
}

// ParamExecuteOpcodeRequest executes a storage operation on the destination.
//
// CBOR encoding:
//
//	{
//	  1: opcode  // uint8
//	}
type ParamExecuteOpcodeRequest struct {
	Opcode ParamOpcode `cbor:"1,keyasint"`
}

// ParamExecuteOpcodeResponse acknowledges a ParamExecuteOpcodeRequest.
//
// CBOR encoding:
//
//	{
//	  1: ok  // bool
//	}
type ParamExecuteOpcodeResponse struct {
	OK bool `cbor:"1,keyasint"`
}

// RequestType returns the message type of a request payload, or false if the
// payload is not a known request type.
func RequestType(payload any) (MessageType, bool) {
	switch payload.(type) {
	case *EnumerationBeginRequest, EnumerationBeginRequest:
		return TypeEnumerationBegin, true
	case *EnumerationStopRequest, EnumerationStopRequest:
		return TypeEnumerationStop, true
	case *ParamGetSetRequest, ParamGetSetRequest:
		return TypeParamGetSet, true
	case *ParamExecuteOpcodeRequest, ParamExecuteOpcodeRequest:
		return TypeParamExecuteOpcode, true
	default:
		return 0, false
	}
}
