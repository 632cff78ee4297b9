package enumeration

import (
	"fmt"
	"time"

	"github.com/torqbus-protocol/torqbus-go/pkg/allocation"
	"github.com/torqbus-protocol/torqbus-go/pkg/bus"
)

// WaitForAllNodesOnline pumps the session until the allocation table stops
// growing: completion is inferred when two consecutive polls, pollInterval
// apart, observe the same size greater than one. Two coincidentally equal
// reads taken while nodes are still appearing would end the wait early;
// that heuristic limitation is inherited from the allocation protocol's
// lack of a completion signal and is accepted here.
func WaitForAllNodesOnline(sess *bus.Session, table *allocation.Table, pollInterval time.Duration, deadline time.Time) error {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	last := 0
	for {
		if time.Now().After(deadline) {
			return fmt.Errorf("waiting for nodes to come online: %w", bus.ErrDeadlineExceeded)
		}
		if err := sess.Spin(pollInterval); err != nil {
			return fmt.Errorf("waiting for nodes to come online: %w", err)
		}
		size := table.Size()
		if size == last && size > 1 {
			return nil
		}
		last = size
	}
}
