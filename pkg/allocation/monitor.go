package allocation

import (
	"github.com/torqbus-protocol/torqbus-go/pkg/bus"
	"github.com/torqbus-protocol/torqbus-go/pkg/wire"
)

// Monitor populates a Table from NodeStatus broadcasts on a session. It is
// the host-side stand-in for reading the allocator's own table: any node
// announcing itself is, by protocol, already allocated an id.
type Monitor struct {
	table *Table
	sub   *bus.Subscription
}

// NewMonitor subscribes to NodeStatus broadcasts on the session and appends
// first-seen sources to the table.
func NewMonitor(sess *bus.Session, table *Table) *Monitor {
	m := &Monitor{table: table}
	m.sub = sess.Subscribe(wire.TypeNodeStatus, func(t bus.Transfer) {
		table.Append(t.Time, t.Source)
	})
	return m
}

// Table returns the table the monitor appends to.
func (m *Monitor) Table() *Table { return m.table }

// Stop cancels the monitor's subscription. The table keeps its contents.
func (m *Monitor) Stop() {
	m.sub.Cancel()
}
