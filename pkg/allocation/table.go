// Package allocation exposes the dynamic node id allocator's table as the
// read-only collaborator the enumeration workflow consumes. The allocation
// protocol itself runs elsewhere (on the allocator node); this package only
// mirrors which node ids are known to be online, in first-seen order.
package allocation

import (
	"sync"
	"time"

	"github.com/torqbus-protocol/torqbus-go/pkg/wire"
)

// Entry records when a node id was first observed.
type Entry struct {
	FirstSeen time.Time
	NodeID    wire.NodeID
}

// Table is an append-only, monotonically growing record of online node ids.
// It is safe to read while a Monitor appends between pump slices.
type Table struct {
	mu      sync.RWMutex
	entries []Entry
	known   map[wire.NodeID]struct{}
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{known: make(map[wire.NodeID]struct{})}
}

// Append records a node id. Duplicate ids are ignored; the table only grows.
func (t *Table) Append(at time.Time, id wire.NodeID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.known[id]; ok {
		return
	}
	t.known[id] = struct{}{}
	t.entries = append(t.entries, Entry{FirstSeen: at, NodeID: id})
}

// Size returns the number of distinct node ids observed.
func (t *Table) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Entries returns the observed node ids in first-seen order.
func (t *Table) Entries() []wire.NodeID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]wire.NodeID, len(t.entries))
	for i, e := range t.entries {
		ids[i] = e.NodeID
	}
	return ids
}

// Contains reports whether the node id has been observed.
func (t *Table) Contains(id wire.NodeID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.known[id]
	return ok
}
