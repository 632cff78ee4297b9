package enumeration

import (
	"errors"
	"fmt"

	"github.com/torqbus-protocol/torqbus-go/pkg/bus"
	"github.com/torqbus-protocol/torqbus-go/pkg/wire"
)

// ErrRequestTimeout is the session's request-timeout sentinel, re-exported
// so callers can match it without importing the bus package.
var ErrRequestTimeout = bus.ErrRequestTimeout

// ErrRunDeadlineExceeded indicates the wall-clock budget for the whole
// enumeration run was exhausted.
var ErrRunDeadlineExceeded = errors.New("enumeration run deadline exceeded")

// RequestRejectedError indicates a peer answered a request with a
// non-success status. It carries the peer's status for diagnosis.
type RequestRejectedError struct {
	// Op names the rejected operation.
	Op string

	// Node is the rejecting peer.
	Node wire.NodeID

	// Status is the peer's status text.
	Status string
}

func (e *RequestRejectedError) Error() string {
	return fmt.Sprintf("%s rejected by node %d: %s", e.Op, e.Node, e.Status)
}

// ValueMismatchError indicates a parameter-set response did not echo what
// was requested. The device silently coerced or rejected the value; the
// stored configuration cannot be trusted.
type ValueMismatchError struct {
	// Node is the misbehaving peer.
	Node wire.NodeID

	// Param is the requested parameter name, EchoedParam the one returned.
	Param       string
	EchoedParam string

	// Want is the requested value, Got the echoed one.
	Want int64
	Got  int64
}

func (e *ValueMismatchError) Error() string {
	if e.Param != e.EchoedParam {
		return fmt.Sprintf("node %d echoed parameter %q, wrote %q", e.Node, e.EchoedParam, e.Param)
	}
	return fmt.Sprintf("node %d echoed %s=%d, wrote %d", e.Node, e.Param, e.Got, e.Want)
}
