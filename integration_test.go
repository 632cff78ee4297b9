package torqbus_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torqbus-protocol/torqbus-go/internal/testharness"
	"github.com/torqbus-protocol/torqbus-go/pkg/allocation"
	"github.com/torqbus-protocol/torqbus-go/pkg/bus"
	"github.com/torqbus-protocol/torqbus-go/pkg/enumeration"
	"github.com/torqbus-protocol/torqbus-go/pkg/wire"
)

// TestE2E_EnumerationWorkflow runs the full host pipeline against emulated
// nodes on an in-memory bus: wait for the node set to settle, detect the
// ESCs among them, then enumerate and verify the saved indices.
func TestE2E_EnumerationWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	harness := testharness.NewBus()

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	runNode := func(run func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(ctx)
		}()
	}
	defer wg.Wait()
	defer cancel()

	// Two ESCs and one non-ESC node share the bus with the host.
	esc5 := testharness.NewESCNode(harness, 5, testharness.Behavior{
		IndicateAfter: 700 * time.Millisecond,
	})
	esc6 := testharness.NewESCNode(harness, 6, testharness.Behavior{
		IndicateAfter: 150 * time.Millisecond,
	})
	plain := testharness.NewPlainNode(harness, 9, 50*time.Millisecond)
	runNode(esc5.Run)
	runNode(esc6.Run)
	runNode(plain.Run)

	host := bus.NewSession(harness.Connect(), 10, nil)
	defer host.Close()
	host.PublishNodeStatus(50*time.Millisecond, time.Now())

	// Step 1: the allocation table settles at three observed nodes.
	table := allocation.NewTable()
	allocation.NewMonitor(host, table)

	deadline := time.Now().Add(5 * time.Second)
	require.NoError(t, enumeration.WaitForAllNodesOnline(host, table, 200*time.Millisecond, deadline))
	assert.Equal(t, 3, table.Size())

	// Step 2: only the two ESCs broadcast ESC status.
	escs, err := enumeration.DetectESCNodes(host, 300*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, []wire.NodeID{5, 6}, escs)

	// Step 3: node 6 indicates first, so it wins index 0.
	coord := enumeration.NewCoordinator(host, enumeration.Config{
		RunTimeout:     10 * time.Second,
		RequestTimeout: 2 * time.Second,
	})
	order, err := coord.Run(escs)
	require.NoError(t, err)
	assert.Equal(t, []wire.NodeID{6, 5}, order)
	assert.Equal(t, enumeration.StateDone, coord.State())

	assert.Equal(t, int64(0), esc6.Param("esc_index"))
	assert.Equal(t, int64(1), esc5.Param("esc_index"))
	assert.Equal(t, 1, esc5.SaveCount())
	assert.Equal(t, 1, esc6.SaveCount())
}
