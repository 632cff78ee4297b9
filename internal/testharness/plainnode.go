package testharness

import (
	"context"
	"time"

	"github.com/torqbus-protocol/torqbus-go/pkg/bus"
	"github.com/torqbus-protocol/torqbus-go/pkg/wire"
)

// PlainNode is an emulated non-ESC node: it announces itself with NodeStatus
// broadcasts but emits no ESCStatus, so role detection must leave it out.
type PlainNode struct {
	ID wire.NodeID

	session *bus.Session
}

// NewPlainNode attaches a non-ESC node to the bus.
func NewPlainNode(b *Bus, id wire.NodeID, statusInterval time.Duration) *PlainNode {
	if statusInterval == 0 {
		statusInterval = 50 * time.Millisecond
	}
	n := &PlainNode{
		ID:      id,
		session: bus.NewSession(b.Connect(), id, nil),
	}
	n.session.PublishNodeStatus(statusInterval, time.Now())
	return n
}

// Run pumps the node until the context is cancelled.
func (n *PlainNode) Run(ctx context.Context) {
	defer n.session.Close()
	for ctx.Err() == nil {
		_ = n.session.Spin(10 * time.Millisecond)
	}
}
