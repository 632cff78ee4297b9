package enumeration_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torqbus-protocol/torqbus-go/internal/testharness"
	"github.com/torqbus-protocol/torqbus-go/pkg/enumeration"
	"github.com/torqbus-protocol/torqbus-go/pkg/wire"
)

func (f *fixture) addPlainNode(id wire.NodeID) {
	f.t.Helper()
	node := testharness.NewPlainNode(f.bus, id, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		node.Run(ctx)
	}()
	f.t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
}

func TestDetectESCNodesObservesOnlyESCs(t *testing.T) {
	f := newFixture(t)

	f.addESC(23, testharness.Behavior{})
	f.addESC(5, testharness.Behavior{})
	f.addPlainNode(30) // broadcasts NodeStatus but no ESCStatus

	ids, err := enumeration.DetectESCNodes(f.host, 400*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []wire.NodeID{5, 23}, ids, "sorted, ESCs only")
}

func TestDetectESCNodesEmptyWindow(t *testing.T) {
	f := newFixture(t)

	f.addPlainNode(30)

	ids, err := enumeration.DetectESCNodes(f.host, 200*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, ids, "a node that never broadcasts ESC status is never included")
}
