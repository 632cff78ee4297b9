package testharness

import (
	"context"
	"sync"
	"time"

	"github.com/torqbus-protocol/torqbus-go/pkg/bus"
	"github.com/torqbus-protocol/torqbus-go/pkg/wire"
)

// Behavior scripts how an emulated ESC node reacts to the enumeration
// workflow. The zero value is a well-behaved node that never indicates.
type Behavior struct {
	// StatusInterval is how often NodeStatus and ESCStatus broadcasts fire.
	// Default 50ms.
	StatusInterval time.Duration

	// IndicateAfter, when non-zero, makes the node emit an
	// EnumerationIndication that long after entering enumeration mode,
	// emulating the operator's physical trigger.
	IndicateAfter time.Duration

	// IndicateEvery re-emits the indication at this interval while the node
	// keeps indicating (a spinning motor triggers repeatedly). Zero means
	// a single indication per enumeration mode entry.
	IndicateEvery time.Duration

	// IndicationParam is the parameter name carried in indications.
	// Default "esc_index".
	IndicationParam string

	// KeepIndicatingAfterStop emulates residual motor spin: the node keeps
	// emitting indications even after enumeration mode was stopped.
	KeepIndicatingAfterStop bool

	// BeginError is the status returned for EnumerationBegin requests.
	BeginError wire.EnumerationError

	// StopError is the status returned for EnumerationStop requests.
	StopError wire.EnumerationError

	// DropBeginResponse suppresses the EnumerationBegin response entirely.
	DropBeginResponse bool

	// DropStopResponse suppresses the EnumerationStop response entirely.
	DropStopResponse bool

	// DropParamResponse suppresses the ParamGetSet response entirely.
	DropParamResponse bool

	// DropSaveResponse suppresses the ParamExecuteOpcode response entirely.
	DropSaveResponse bool

	// ParamEchoValue, when non-nil, is echoed in ParamGetSet responses
	// instead of the written value, emulating firmware that silently
	// coerces the parameter.
	ParamEchoValue *int64

	// ParamEchoName, when non-empty, is echoed instead of the requested
	// parameter name.
	ParamEchoName string

	// SaveFails makes ParamExecuteOpcode respond with ok=false.
	SaveFails bool
}

// ESCNode is an emulated ESC on a test bus.
type ESCNode struct {
	ID       wire.NodeID
	Behavior Behavior

	session *bus.Session

	mu            sync.Mutex
	inEnumeration bool
	enteredAt     time.Time
	lastIndicated time.Time
	indicated     bool
	wasStopped    bool
	params        map[string]int64
	saveCount     int
}

// NewESCNode attaches an emulated ESC with the given node id to the bus.
// Call Run on its own goroutine to bring the node online.
func NewESCNode(b *Bus, id wire.NodeID, behavior Behavior) *ESCNode {
	if behavior.StatusInterval == 0 {
		behavior.StatusInterval = 50 * time.Millisecond
	}
	if behavior.IndicationParam == "" {
		behavior.IndicationParam = "esc_index"
	}

	n := &ESCNode{
		ID:       id,
		Behavior: behavior,
		session:  bus.NewSession(b.Connect(), id, nil),
		params:   map[string]int64{"esc_index": -1},
	}

	started := time.Now()
	n.session.PublishNodeStatus(behavior.StatusInterval, started)
	n.session.Periodic(behavior.StatusInterval, wire.TypeESCStatus, func() any {
		return &wire.ESCStatus{ESCIndex: uint8(max(n.Param("esc_index"), 0))}
	})

	n.session.Serve(wire.TypeEnumerationBegin, n.handleBegin)
	n.session.Serve(wire.TypeEnumerationStop, n.handleStop)
	n.session.Serve(wire.TypeParamGetSet, n.handleParamGetSet)
	n.session.Serve(wire.TypeParamExecuteOpcode, n.handleExecuteOpcode)

	return n
}

// Run pumps the node until the context is cancelled.
func (n *ESCNode) Run(ctx context.Context) {
	defer n.session.Close()
	for ctx.Err() == nil {
		_ = n.session.Spin(10 * time.Millisecond)
		n.maybeIndicate()
	}
}

// Param returns the node's current value of the named parameter
// (-1 if never written).
func (n *ESCNode) Param(name string) int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.params[name]
}

// SaveCount returns how many SAVE opcodes the node has executed.
func (n *ESCNode) SaveCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.saveCount
}

// InEnumeration reports whether the node is currently in enumeration mode.
func (n *ESCNode) InEnumeration() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.inEnumeration
}

func (n *ESCNode) handleBegin(t bus.Transfer) (any, error) {
	n.mu.Lock()
	if n.Behavior.BeginError.IsOK() {
		n.inEnumeration = true
		n.enteredAt = time.Now()
		n.indicated = false
		n.lastIndicated = time.Time{}
	}
	n.mu.Unlock()

	if n.Behavior.DropBeginResponse {
		return nil, nil
	}
	return &wire.EnumerationBeginResponse{Error: n.Behavior.BeginError}, nil
}

func (n *ESCNode) handleStop(t bus.Transfer) (any, error) {
	n.mu.Lock()
	if n.Behavior.StopError.IsOK() {
		n.inEnumeration = false
		n.wasStopped = true
	}
	n.mu.Unlock()

	if n.Behavior.DropStopResponse {
		return nil, nil
	}
	return &wire.EnumerationStopResponse{Error: n.Behavior.StopError}, nil
}

func (n *ESCNode) handleParamGetSet(t bus.Transfer) (any, error) {
	var req wire.ParamGetSetRequest
	if err := wire.DecodePayload(t.Frame, &req); err != nil {
		return nil, err
	}

	n.mu.Lock()
	if req.Value.Set {
		n.params[req.Name] = req.Value.Integer
	}
	stored := n.params[req.Name]
	n.mu.Unlock()

	if n.Behavior.DropParamResponse {
		return nil, nil
	}

	name := req.Name
	if n.Behavior.ParamEchoName != "" {
		name = n.Behavior.ParamEchoName
	}
	value := stored
	if n.Behavior.ParamEchoValue != nil {
		value = *n.Behavior.ParamEchoValue
	}
	return &wire.ParamGetSetResponse{Name: name, Value: wire.IntegerValue(value)}, nil
}

func (n *ESCNode) handleExecuteOpcode(t bus.Transfer) (any, error) {
	var req wire.ParamExecuteOpcodeRequest
	if err := wire.DecodePayload(t.Frame, &req); err != nil {
		return nil, err
	}

	if req.Opcode == wire.OpcodeSave && !n.Behavior.SaveFails {
		n.mu.Lock()
		n.saveCount++
		n.mu.Unlock()
	}

	if n.Behavior.DropSaveResponse {
		return nil, nil
	}
	return &wire.ParamExecuteOpcodeResponse{OK: !n.Behavior.SaveFails}, nil
}

// maybeIndicate emits scripted enumeration indications. Runs on the node's
// pump goroutine.
func (n *ESCNode) maybeIndicate() {
	if n.Behavior.IndicateAfter == 0 {
		return
	}

	n.mu.Lock()
	eligible := n.inEnumeration || (n.wasStopped && n.Behavior.KeepIndicatingAfterStop)
	if !eligible || n.enteredAt.IsZero() {
		n.mu.Unlock()
		return
	}
	now := time.Now()
	if now.Sub(n.enteredAt) < n.Behavior.IndicateAfter {
		n.mu.Unlock()
		return
	}
	if n.indicated {
		if n.Behavior.IndicateEvery == 0 || now.Sub(n.lastIndicated) < n.Behavior.IndicateEvery {
			n.mu.Unlock()
			return
		}
	}
	n.indicated = true
	n.lastIndicated = now
	param := n.Behavior.IndicationParam
	n.mu.Unlock()

	_ = n.session.Broadcast(wire.TypeEnumerationIndication, &wire.EnumerationIndication{
		ParameterName: param,
	})
}
