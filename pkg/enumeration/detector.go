package enumeration

import (
	"fmt"
	"sort"
	"time"

	"github.com/torqbus-protocol/torqbus-go/pkg/bus"
	"github.com/torqbus-protocol/torqbus-go/pkg/wire"
)

// DetectESCNodes determines by observation which online nodes are ESCs: it
// listens for ESCStatus broadcasts for the duration of the collection window
// and returns the distinct senders, sorted by node id.
//
// This is a single pass with no handshake. An ESC that stays silent for the
// whole window is missed; choose the window longer than the slowest ESC's
// status interval.
func DetectESCNodes(sess *bus.Session, window time.Duration) ([]wire.NodeID, error) {
	seen := make(map[wire.NodeID]struct{})

	sub := sess.Subscribe(wire.TypeESCStatus, func(t bus.Transfer) {
		seen[t.Source] = struct{}{}
	})
	defer sub.Cancel()

	if err := sess.Spin(window); err != nil {
		return nil, fmt.Errorf("collecting ESC status broadcasts: %w", err)
	}

	ids := make([]wire.NodeID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
