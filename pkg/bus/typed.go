package bus

import (
	"time"

	"github.com/torqbus-protocol/torqbus-go/pkg/wire"
)

// Typed request helpers. Each registers a pending call whose handler decodes
// the response payload before invoking the caller's func; on timeout the
// caller's func receives a nil payload and ErrRequestTimeout.

// RequestEnumerationBegin asks target to enter enumeration mode for
// timeoutSec seconds.
func (s *Session) RequestEnumerationBegin(target wire.NodeID, timeoutSec uint16, deadline time.Time, fn func(*wire.EnumerationBeginResponse, error)) error {
	req := &wire.EnumerationBeginRequest{TimeoutSec: timeoutSec}
	return s.Request(target, req, deadline, func(frame *wire.Frame, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		var resp wire.EnumerationBeginResponse
		if err := wire.DecodePayload(frame, &resp); err != nil {
			fn(nil, err)
			return
		}
		fn(&resp, nil)
	})
}

// RequestEnumerationStop asks target to leave enumeration mode.
func (s *Session) RequestEnumerationStop(target wire.NodeID, deadline time.Time, fn func(*wire.EnumerationStopResponse, error)) error {
	return s.Request(target, &wire.EnumerationStopRequest{}, deadline, func(frame *wire.Frame, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		var resp wire.EnumerationStopResponse
		if err := wire.DecodePayload(frame, &resp); err != nil {
			fn(nil, err)
			return
		}
		fn(&resp, nil)
	})
}

// RequestParamSet writes the named integer parameter on target.
func (s *Session) RequestParamSet(target wire.NodeID, name string, value int64, deadline time.Time, fn func(*wire.ParamGetSetResponse, error)) error {
	req := &wire.ParamGetSetRequest{Name: name, Value: wire.IntegerValue(value)}
	return s.Request(target, req, deadline, func(frame *wire.Frame, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		var resp wire.ParamGetSetResponse
		if err := wire.DecodePayload(frame, &resp); err != nil {
			fn(nil, err)
			return
		}
		fn(&resp, nil)
	})
}

// RequestParamExecuteOpcode executes a parameter storage opcode on target.
func (s *Session) RequestParamExecuteOpcode(target wire.NodeID, opcode wire.ParamOpcode, deadline time.Time, fn func(*wire.ParamExecuteOpcodeResponse, error)) error {
	req := &wire.ParamExecuteOpcodeRequest{Opcode: opcode}
	return s.Request(target, req, deadline, func(frame *wire.Frame, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		var resp wire.ParamExecuteOpcodeResponse
		if err := wire.DecodePayload(frame, &resp); err != nil {
			fn(nil, err)
			return
		}
		fn(&resp, nil)
	})
}

// PublishNodeStatus registers the periodic NodeStatus broadcast every live
// node is expected to emit. startedAt anchors the advertised uptime.
func (s *Session) PublishNodeStatus(interval time.Duration, startedAt time.Time) {
	s.Periodic(interval, wire.TypeNodeStatus, func() any {
		return &wire.NodeStatus{
			UptimeSec: uint32(time.Since(startedAt) / time.Second),
			Health:    wire.HealthOK,
		}
	})
}
