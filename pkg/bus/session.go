package bus

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/torqbus-protocol/torqbus-go/pkg/log"
	"github.com/torqbus-protocol/torqbus-go/pkg/transport"
	"github.com/torqbus-protocol/torqbus-go/pkg/wire"
)

// Session errors.
var (
	// ErrRequestTimeout is the sentinel passed to a response handler whose
	// request never got an answer before its deadline.
	ErrRequestTimeout = errors.New("request timed out")

	// ErrDeadlineExceeded is returned by SpinUntil when the condition did
	// not hold before the deadline.
	ErrDeadlineExceeded = errors.New("deadline exceeded")

	// ErrSessionClosed indicates the session has been closed.
	ErrSessionClosed = errors.New("session is closed")

	// ErrDuplicateRequest indicates a request to a node that already has one
	// in flight with the same transfer id.
	ErrDuplicateRequest = errors.New("duplicate request in flight")
)

// spinSlice is the granularity at which SpinUntil re-checks its predicate.
const spinSlice = 50 * time.Millisecond

// Transfer describes a received bus transfer.
type Transfer struct {
	// Source is the sending node.
	Source wire.NodeID

	// Time is when the frame was dispatched.
	Time time.Time

	// Frame is the full decoded envelope.
	Frame *wire.Frame
}

// HandlerFunc handles a broadcast transfer.
type HandlerFunc func(Transfer)

// ResponseFunc handles the resolution of a pending request: exactly one of
// frame (the response) or err (ErrRequestTimeout) is set.
type ResponseFunc func(frame *wire.Frame, err error)

// RequestHandlerFunc serves an incoming request, returning the response
// payload to send back. Used by node emulations; the host tool itself only
// issues requests.
type RequestHandlerFunc func(t Transfer) (any, error)

type pendingKey struct {
	target     wire.NodeID
	transferID uint8
}

type pendingRequest struct {
	msgType  wire.MessageType
	deadline time.Time
	handler  ResponseFunc
}

type periodicTask struct {
	interval time.Duration
	next     time.Time
	msgType  wire.MessageType
	payload  func() any
}

// Session is a host-side bus session over one bridge connection.
type Session struct {
	conn   transport.Conn
	nodeID wire.NodeID
	logger log.Logger
	id     string

	inbox   chan []byte
	readErr chan error

	subs      map[wire.MessageType]map[int]HandlerFunc
	nextSubID int

	servers map[wire.MessageType]RequestHandlerFunc

	pending  map[pendingKey]*pendingRequest
	transfer map[wire.NodeID]uint8

	periodics []*periodicTask

	closed bool
}

// NewSession creates a session speaking as nodeID over conn and starts the
// connection reader. Pass a nil logger to disable logging.
func NewSession(conn transport.Conn, nodeID wire.NodeID, logger log.Logger) *Session {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	s := &Session{
		conn:     conn,
		nodeID:   nodeID,
		logger:   logger,
		id:       uuid.New().String(),
		inbox:    make(chan []byte, 64),
		readErr:  make(chan error, 1),
		subs:     make(map[wire.MessageType]map[int]HandlerFunc),
		servers:  make(map[wire.MessageType]RequestHandlerFunc),
		pending:  make(map[pendingKey]*pendingRequest),
		transfer: make(map[wire.NodeID]uint8),
	}
	go s.readLoop()
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// NodeID returns the node id the session speaks as.
func (s *Session) NodeID() wire.NodeID { return s.nodeID }

// readLoop moves raw frames from the connection into the inbox. It holds no
// session state; everything else happens inside Spin.
func (s *Session) readLoop() {
	for {
		data, err := s.conn.Receive(time.Second)
		if err != nil {
			if errors.Is(err, transport.ErrReceiveTimeout) {
				continue
			}
			if err == io.EOF || errors.Is(err, transport.ErrConnClosed) {
				s.readErr <- io.EOF
				return
			}
			s.readErr <- err
			return
		}
		s.inbox <- data
	}
}

// Close closes the session and its connection.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

// Spin pumps the session for the given duration: due periodic publications
// fire, expired requests resolve with ErrRequestTimeout, and every frame that
// arrives is dispatched to its handlers. Spin returns after the duration has
// elapsed, or earlier with an error if the connection failed.
func (s *Session) Spin(timeout time.Duration) error {
	if s.closed {
		return ErrSessionClosed
	}
	deadline := time.Now().Add(timeout)
	for {
		now := time.Now()
		s.firePeriodics(now)
		s.expirePending(now)

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		wait := remaining
		if next := s.nextPeriodicDue(); !next.IsZero() {
			if d := time.Until(next); d < wait {
				wait = d
			}
		}
		if next := s.nextPendingDeadline(); !next.IsZero() {
			if d := time.Until(next); d < wait {
				wait = d
			}
		}
		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case data := <-s.inbox:
			timer.Stop()
			s.dispatch(data)
		case err := <-s.readErr:
			timer.Stop()
			if err == io.EOF {
				return fmt.Errorf("bridge connection closed: %w", ErrSessionClosed)
			}
			return fmt.Errorf("bridge read failed: %w", err)
		case <-timer.C:
		}
	}
}

// SpinUntil pumps the session until pred returns true or the deadline
// passes, in which case it returns ErrDeadlineExceeded. The predicate is
// evaluated between pump slices, never concurrently with a handler.
func (s *Session) SpinUntil(pred func() bool, deadline time.Time) error {
	for {
		if pred() {
			return nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrDeadlineExceeded
		}
		slice := spinSlice
		if remaining < slice {
			slice = remaining
		}
		if err := s.Spin(slice); err != nil {
			return err
		}
	}
}

// dispatch decodes one raw frame and routes it.
func (s *Session) dispatch(data []byte) {
	frame, err := wire.DecodeFrame(data)
	if err != nil {
		s.logError(log.LayerWire, err.Error(), "decode")
		return
	}

	s.logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: s.id,
		Direction: log.DirectionIn,
		Layer:     log.LayerWire,
		Category:  log.CategoryMessage,
		NodeID:    frame.Source,
		Transfer: &log.TransferEvent{
			Kind:        frame.Kind,
			Type:        frame.Type,
			Source:      frame.Source,
			Destination: frame.Destination,
			TransferID:  frame.TransferID,
		},
	})

	switch frame.Kind {
	case wire.KindBroadcast:
		s.dispatchBroadcast(frame)
	case wire.KindResponse:
		s.dispatchResponse(frame)
	case wire.KindRequest:
		s.dispatchRequest(frame)
	}
}

func (s *Session) dispatchBroadcast(frame *wire.Frame) {
	handlers := s.subs[frame.Type]
	if len(handlers) == 0 {
		return
	}
	t := Transfer{Source: frame.Source, Time: time.Now(), Frame: frame}
	// Handlers may cancel subscriptions (their own included) while running;
	// snapshot the set first.
	snapshot := make([]HandlerFunc, 0, len(handlers))
	for _, h := range handlers {
		snapshot = append(snapshot, h)
	}
	for _, h := range snapshot {
		h(t)
	}
}

func (s *Session) dispatchResponse(frame *wire.Frame) {
	if frame.Destination != s.nodeID {
		return
	}
	key := pendingKey{target: frame.Source, transferID: frame.TransferID}
	req, ok := s.pending[key]
	if !ok || req.msgType != frame.Type {
		s.logError(log.LayerSession,
			fmt.Sprintf("unexpected %s response from node %d (transfer %d)",
				frame.Type, frame.Source, frame.TransferID), "response")
		return
	}
	delete(s.pending, key)
	req.handler(frame, nil)
}

func (s *Session) dispatchRequest(frame *wire.Frame) {
	if frame.Destination != s.nodeID {
		return
	}
	handler, ok := s.servers[frame.Type]
	if !ok {
		return
	}
	t := Transfer{Source: frame.Source, Time: time.Now(), Frame: frame}
	payload, err := handler(t)
	if err != nil || payload == nil {
		// A served request with no response payload is silently dropped;
		// the peer's timeout handling covers it.
		return
	}
	resp, err := wire.NewFrame(wire.KindResponse, frame.Type, s.nodeID, frame.Source, frame.TransferID, payload)
	if err != nil {
		s.logError(log.LayerSession, err.Error(), "serve")
		return
	}
	s.sendFrame(resp)
}

// Request sends a request frame to target and registers handler to be
// resolved exactly once: with the response, or with ErrRequestTimeout once
// deadline passes.
func (s *Session) Request(target wire.NodeID, payload any, deadline time.Time, handler ResponseFunc) error {
	if s.closed {
		return ErrSessionClosed
	}
	msgType, ok := wire.RequestType(payload)
	if !ok {
		return fmt.Errorf("%T is not a request payload", payload)
	}

	tid := s.transfer[target]
	s.transfer[target] = tid + 1

	key := pendingKey{target: target, transferID: tid}
	if _, exists := s.pending[key]; exists {
		return fmt.Errorf("%w: node %d transfer %d", ErrDuplicateRequest, target, tid)
	}

	frame, err := wire.NewFrame(wire.KindRequest, msgType, s.nodeID, target, tid, payload)
	if err != nil {
		return err
	}
	if err := s.sendFrame(frame); err != nil {
		return err
	}

	s.pending[key] = &pendingRequest{msgType: msgType, deadline: deadline, handler: handler}
	return nil
}

// Broadcast sends a broadcast frame.
func (s *Session) Broadcast(msgType wire.MessageType, payload any) error {
	if s.closed {
		return ErrSessionClosed
	}
	frame, err := wire.NewFrame(wire.KindBroadcast, msgType, s.nodeID, wire.BroadcastNodeID, 0, payload)
	if err != nil {
		return err
	}
	return s.sendFrame(frame)
}

// Periodic registers a broadcast publication fired from within Spin every
// interval. The payload func is evaluated at publication time.
func (s *Session) Periodic(interval time.Duration, msgType wire.MessageType, payload func() any) {
	s.periodics = append(s.periodics, &periodicTask{
		interval: interval,
		next:     time.Now(),
		msgType:  msgType,
		payload:  payload,
	})
}

// Serve registers a handler for incoming requests of the given type. The
// handler's returned payload is sent back as the response.
func (s *Session) Serve(msgType wire.MessageType, handler RequestHandlerFunc) {
	s.servers[msgType] = handler
}

func (s *Session) sendFrame(frame *wire.Frame) error {
	data, err := wire.EncodeFrame(frame)
	if err != nil {
		return err
	}
	if err := s.conn.Send(data); err != nil {
		return fmt.Errorf("failed to send %s frame: %w", frame.Type, err)
	}
	s.logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: s.id,
		Direction: log.DirectionOut,
		Layer:     log.LayerWire,
		Category:  log.CategoryMessage,
		NodeID:    frame.Destination,
		Transfer: &log.TransferEvent{
			Kind:        frame.Kind,
			Type:        frame.Type,
			Source:      frame.Source,
			Destination: frame.Destination,
			TransferID:  frame.TransferID,
		},
	})
	return nil
}

func (s *Session) firePeriodics(now time.Time) {
	for _, p := range s.periodics {
		if now.Before(p.next) {
			continue
		}
		p.next = now.Add(p.interval)
		if err := s.Broadcast(p.msgType, p.payload()); err != nil {
			s.logError(log.LayerSession, err.Error(), "periodic")
		}
	}
}

func (s *Session) nextPeriodicDue() time.Time {
	var next time.Time
	for _, p := range s.periodics {
		if next.IsZero() || p.next.Before(next) {
			next = p.next
		}
	}
	return next
}

func (s *Session) expirePending(now time.Time) {
	var expired []pendingKey
	for key, req := range s.pending {
		if now.After(req.deadline) {
			expired = append(expired, key)
		}
	}
	for _, key := range expired {
		req := s.pending[key]
		delete(s.pending, key)
		s.logError(log.LayerSession,
			fmt.Sprintf("%s request to node %d timed out", req.msgType, key.target), "request")
		req.handler(nil, ErrRequestTimeout)
	}
}

func (s *Session) nextPendingDeadline() time.Time {
	var next time.Time
	for _, req := range s.pending {
		if next.IsZero() || req.deadline.Before(next) {
			next = req.deadline
		}
	}
	return next
}

func (s *Session) logError(layer log.Layer, msg, context string) {
	s.logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: s.id,
		Layer:     layer,
		Category:  log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   layer,
			Message: msg,
			Context: context,
		},
	})
}
