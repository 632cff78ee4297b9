package enumeration

import (
	"errors"
	"fmt"
	"time"

	"github.com/torqbus-protocol/torqbus-go/pkg/bus"
	"github.com/torqbus-protocol/torqbus-go/pkg/log"
	"github.com/torqbus-protocol/torqbus-go/pkg/wire"
)

// Default timing.
const (
	// DefaultRunTimeout is the wall-clock budget for a whole run, also
	// advertised to the nodes as their enumeration mode timeout.
	DefaultRunTimeout = 60 * time.Second

	// DefaultRequestTimeout bounds each individual request.
	DefaultRequestTimeout = 5 * time.Second
)

// State identifies where the coordinator is in a round. States exist for
// diagnostics; the machine advances through them strictly in order within a
// round.
type State string

const (
	StateIdle                   State = "Idle"
	StateBroadcastingBegin      State = "BroadcastingBegin"
	StateAwaitingBeginAcks      State = "AwaitingBeginAcks"
	StateListeningForIndication State = "ListeningForIndication"
	StateStoppingWinner         State = "StoppingWinner"
	StateAwaitingStopAck        State = "AwaitingStopAck"
	StateConfiguringIndex       State = "ConfiguringIndex"
	StateAwaitingParamAck       State = "AwaitingParamAck"
	StateSavingConfig           State = "SavingConfig"
	StateAwaitingSaveAck        State = "AwaitingSaveAck"
	StateDone                   State = "Done"
	StateFailed                 State = "Failed"
)

// Config configures a Coordinator.
type Config struct {
	// RunTimeout is the wall-clock budget for the whole run.
	// Default DefaultRunTimeout.
	RunTimeout time.Duration

	// RequestTimeout bounds each individual request.
	// Default DefaultRequestTimeout.
	RequestTimeout time.Duration

	// Logger receives structured state-change and error events.
	Logger log.Logger

	// Progress, when set, receives operator-facing narration lines: round
	// prompts, ignored indications, assignments. The operator needs these
	// to know when to turn the next motor.
	Progress func(msg string)
}

// Coordinator drives the enumeration protocol over a session. It is the
// only issuer of mutating requests on the session and must be run from the
// same goroutine that pumps it.
type Coordinator struct {
	sess   *bus.Session
	config Config

	state     State
	pending   map[wire.NodeID]struct{}
	order     []wire.NodeID
	nextIndex int
}

// NewCoordinator creates a coordinator over the session.
func NewCoordinator(sess *bus.Session, config Config) *Coordinator {
	if config.RunTimeout <= 0 {
		config.RunTimeout = DefaultRunTimeout
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultRequestTimeout
	}
	if config.Logger == nil {
		config.Logger = log.NoopLogger{}
	}
	return &Coordinator{
		sess:   sess,
		config: config,
		state:  StateIdle,
	}
}

// State returns the coordinator's current state.
func (c *Coordinator) State() State { return c.state }

// Run enumerates every candidate and returns the assignment order: the node
// at position i was assigned logical index i. On any failure the partial
// order is discarded and the returned error names the violated step.
func (c *Coordinator) Run(candidates []wire.NodeID) ([]wire.NodeID, error) {
	c.pending = make(map[wire.NodeID]struct{}, len(candidates))
	for _, id := range candidates {
		c.pending[id] = struct{}{}
	}
	c.order = nil
	c.nextIndex = 0

	runDeadline := time.Now().Add(c.config.RunTimeout)

	for len(c.pending) > 0 {
		if err := c.runRound(runDeadline); err != nil {
			c.setState(StateFailed, err.Error())
			return nil, err
		}
	}

	c.setState(StateDone, fmt.Sprintf("%d nodes assigned", len(c.order)))
	return c.order, nil
}

// runRound assigns exactly one index: begin on all pending nodes, one
// indication, stop the winner, write its index, save.
func (c *Coordinator) runRound(runDeadline time.Time) error {
	if err := c.beginAll(runDeadline); err != nil {
		return fmt.Errorf("begin enumeration: %w", err)
	}

	winner, param, err := c.awaitIndication(runDeadline)
	if err != nil {
		return fmt.Errorf("await indication: %w", err)
	}
	c.narrate(fmt.Sprintf("Indication received from node %d", winner))

	if err := c.stopWinner(winner, runDeadline); err != nil {
		return fmt.Errorf("stop enumeration on node %d: %w", winner, err)
	}

	if err := c.writeIndex(winner, param, runDeadline); err != nil {
		return fmt.Errorf("configure index on node %d: %w", winner, err)
	}

	if err := c.saveConfig(winner, runDeadline); err != nil {
		return fmt.Errorf("save configuration on node %d: %w", winner, err)
	}

	c.narrate(fmt.Sprintf("Node %d assigned ESC index %d", winner, c.nextIndex))
	c.order = append(c.order, winner)
	delete(c.pending, winner)
	c.nextIndex++
	return nil
}

// beginBarrier tracks the fan-out of begin requests. Response handlers write
// its fields; the pump loop reads them through settled.
type beginBarrier struct {
	want      int
	succeeded int
	failure   error
}

func (b *beginBarrier) resolve(node wire.NodeID, resp *wire.EnumerationBeginResponse, err error) {
	if b.failure != nil {
		return
	}
	switch {
	case err != nil:
		b.failure = fmt.Errorf("node %d: %w", node, err)
	case !resp.Error.IsOK():
		b.failure = &RequestRejectedError{Op: "enumeration begin", Node: node, Status: resp.Error.String()}
	default:
		b.succeeded++
	}
}

func (b *beginBarrier) settled() bool {
	return b.succeeded == b.want || b.failure != nil
}

// beginAll puts every pending node into enumeration mode and blocks until
// every one of them has acknowledged. All requests are outstanding at once;
// the round does not advance until the last acknowledgment, and any
// rejection or timeout fails the run.
func (c *Coordinator) beginAll(runDeadline time.Time) error {
	c.setState(StateBroadcastingBegin, "")

	timeoutSec := uint16(time.Until(runDeadline) / time.Second)
	barrier := &beginBarrier{want: len(c.pending)}

	for id := range c.pending {
		node := id
		c.narrate(fmt.Sprintf("Sending enumeration begin request to node %d", node))
		err := c.sess.RequestEnumerationBegin(node, timeoutSec, c.requestDeadline(runDeadline),
			func(resp *wire.EnumerationBeginResponse, err error) {
				barrier.resolve(node, resp, err)
			})
		if err != nil {
			return err
		}
	}

	c.setState(StateAwaitingBeginAcks, "")
	err := c.sess.SpinUntil(barrier.settled, runDeadline)
	if barrier.failure != nil {
		return barrier.failure
	}
	if errors.Is(err, bus.ErrDeadlineExceeded) {
		return ErrRunDeadlineExceeded
	}
	return err
}

// awaitIndication blocks until one indication arrives from a pending node.
// Indications from already-assigned nodes are narrated and ignored: pending
// membership is the sole admission filter, so a node re-firing from residual
// motor spin cannot hijack a later round. The subscription is cancelled the
// moment a winner is accepted, structurally capping each round at one.
func (c *Coordinator) awaitIndication(runDeadline time.Time) (wire.NodeID, string, error) {
	c.setState(StateListeningForIndication, "")
	c.narrate(fmt.Sprintf("=== PROVIDE ENUMERATION FEEDBACK ON ESC INDEX %d NOW ===", c.nextIndex))
	c.narrate("=== e.g. turn the motor, press the button, etc, depending on your equipment ===")

	watch := &indicationWatch{}

	var sub *bus.Subscription
	sub = c.sess.Subscribe(wire.TypeEnumerationIndication, func(t bus.Transfer) {
		if _, ok := c.pending[t.Source]; !ok {
			c.narrate(fmt.Sprintf("Indication from node %d ignored - already enumerated", t.Source))
			return
		}
		var ind wire.EnumerationIndication
		if err := wire.DecodePayload(t.Frame, &ind); err != nil {
			c.logError(fmt.Sprintf("bad indication from node %d: %v", t.Source, err))
			return
		}
		watch.accept(t.Source, ind.ParameterName)
		sub.Cancel()
	})
	defer sub.Cancel()

	err := c.sess.SpinUntil(watch.done, runDeadline)
	if errors.Is(err, bus.ErrDeadlineExceeded) {
		return 0, "", ErrRunDeadlineExceeded
	}
	if err != nil {
		return 0, "", err
	}
	return watch.winner, watch.param, nil
}

// indicationWatch holds the completion flags the indication subscription
// writes and the pump loop reads.
type indicationWatch struct {
	winner   wire.NodeID
	param    string
	accepted bool
}

func (w *indicationWatch) accept(winner wire.NodeID, param string) {
	w.winner = winner
	w.param = param
	w.accepted = true
}

func (w *indicationWatch) done() bool { return w.accepted }

// stopWinner ends enumeration mode on the winner only. The other pending
// nodes stay in enumeration mode, listening for the next round.
func (c *Coordinator) stopWinner(winner wire.NodeID, runDeadline time.Time) error {
	c.setState(StateStoppingWinner, "")
	c.narrate(fmt.Sprintf("Stopping enumeration on node %d", winner))

	call := &roundCall{}
	err := c.sess.RequestEnumerationStop(winner, c.requestDeadline(runDeadline),
		func(resp *wire.EnumerationStopResponse, err error) {
			switch {
			case err != nil:
				call.resolve(err)
			case !resp.Error.IsOK():
				call.resolve(&RequestRejectedError{Op: "enumeration stop", Node: winner, Status: resp.Error.String()})
			default:
				call.resolve(nil)
			}
		})
	if err != nil {
		return err
	}
	c.setState(StateAwaitingStopAck, "")
	return c.await(call, runDeadline)
}

// writeIndex writes the next free index into the parameter the indication
// named and verifies the echo: the device must return exactly the requested
// name and value, anything else means it silently coerced or rejected the
// write.
func (c *Coordinator) writeIndex(winner wire.NodeID, param string, runDeadline time.Time) error {
	c.setState(StateConfiguringIndex, "")
	value := int64(c.nextIndex)
	c.narrate(fmt.Sprintf("Setting config param %q to %d", param, value))

	call := &roundCall{}
	err := c.sess.RequestParamSet(winner, param, value, c.requestDeadline(runDeadline),
		func(resp *wire.ParamGetSetResponse, err error) {
			switch {
			case err != nil:
				call.resolve(err)
			case resp.Name != param || !resp.Value.Set || resp.Value.Integer != value:
				call.resolve(&ValueMismatchError{
					Node:        winner,
					Param:       param,
					EchoedParam: resp.Name,
					Want:        value,
					Got:         resp.Value.Integer,
				})
			default:
				call.resolve(nil)
			}
		})
	if err != nil {
		return err
	}
	c.setState(StateAwaitingParamAck, "")
	return c.await(call, runDeadline)
}

// saveConfig commits the winner's parameters so the assignment survives a
// power cycle.
func (c *Coordinator) saveConfig(winner wire.NodeID, runDeadline time.Time) error {
	c.setState(StateSavingConfig, "")

	call := &roundCall{}
	err := c.sess.RequestParamExecuteOpcode(winner, wire.OpcodeSave, c.requestDeadline(runDeadline),
		func(resp *wire.ParamExecuteOpcodeResponse, err error) {
			switch {
			case err != nil:
				call.resolve(err)
			case !resp.OK:
				call.resolve(&RequestRejectedError{Op: "param save", Node: winner, Status: "ok=false"})
			default:
				call.resolve(nil)
			}
		})
	if err != nil {
		return err
	}
	c.setState(StateAwaitingSaveAck, "")
	return c.await(call, runDeadline)
}

// roundCall holds one in-flight request's completion flags. The response
// handler writes them once; the pump loop reads them.
type roundCall struct {
	completed bool
	failure   error
}

func (r *roundCall) resolve(err error) {
	r.completed = true
	r.failure = err
}

func (r *roundCall) done() bool { return r.completed }

// await pumps until the call resolves.
func (c *Coordinator) await(call *roundCall, runDeadline time.Time) error {
	err := c.sess.SpinUntil(call.done, runDeadline)
	if call.failure != nil {
		return call.failure
	}
	if errors.Is(err, bus.ErrDeadlineExceeded) {
		return ErrRunDeadlineExceeded
	}
	return err
}

// requestDeadline bounds a single request without exceeding the run budget.
func (c *Coordinator) requestDeadline(runDeadline time.Time) time.Time {
	d := time.Now().Add(c.config.RequestTimeout)
	if d.After(runDeadline) {
		return runDeadline
	}
	return d
}

func (c *Coordinator) setState(next State, reason string) {
	old := c.state
	c.state = next
	c.config.Logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: c.sess.ID(),
		Layer:     log.LayerEnumeration,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   "coordinator",
			OldState: string(old),
			NewState: string(next),
			Reason:   reason,
		},
	})
}

func (c *Coordinator) narrate(msg string) {
	if c.config.Progress != nil {
		c.config.Progress(msg)
	}
}

func (c *Coordinator) logError(msg string) {
	c.config.Logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: c.sess.ID(),
		Layer:     log.LayerEnumeration,
		Category:  log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerEnumeration,
			Message: msg,
		},
	})
}
