package enumeration_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torqbus-protocol/torqbus-go/internal/testharness"
	"github.com/torqbus-protocol/torqbus-go/pkg/bus"
	"github.com/torqbus-protocol/torqbus-go/pkg/enumeration"
	"github.com/torqbus-protocol/torqbus-go/pkg/wire"
)

// fixture wires a host session and a set of emulated ESC nodes onto one
// in-memory bus. Nodes pump themselves on background goroutines; the code
// under test pumps the host session on the test goroutine.
type fixture struct {
	t     *testing.T
	bus   *testharness.Bus
	host  *bus.Session
	nodes map[wire.NodeID]*testharness.ESCNode

	progress   []string
	progressMu sync.Mutex
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := testharness.NewBus()
	f := &fixture{
		t:     t,
		bus:   b,
		host:  bus.NewSession(b.Connect(), 10, nil),
		nodes: make(map[wire.NodeID]*testharness.ESCNode),
	}
	t.Cleanup(func() { f.host.Close() })
	return f
}

func (f *fixture) addESC(id wire.NodeID, behavior testharness.Behavior) *testharness.ESCNode {
	f.t.Helper()
	node := testharness.NewESCNode(f.bus, id, behavior)
	f.nodes[id] = node

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
	return node
}

func (f *fixture) coordinator(config enumeration.Config) *enumeration.Coordinator {
	config.Progress = func(msg string) {
		f.progressMu.Lock()
		f.progress = append(f.progress, msg)
		f.progressMu.Unlock()
	}
	return enumeration.NewCoordinator(f.host, config)
}

func (f *fixture) narrated(substr string) bool {
	f.progressMu.Lock()
	defer f.progressMu.Unlock()
	for _, msg := range f.progress {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

func TestRunAssignsIndicesInOperatorOrder(t *testing.T) {
	f := newFixture(t)

	// The operator acts on node 6 first, then node 5.
	node5 := f.addESC(5, testharness.Behavior{
		IndicateAfter: 600 * time.Millisecond,
		IndicateEvery: 400 * time.Millisecond,
	})
	node6 := f.addESC(6, testharness.Behavior{
		IndicateAfter: 100 * time.Millisecond,
		IndicateEvery: 400 * time.Millisecond,
	})

	coord := f.coordinator(enumeration.Config{RunTimeout: 10 * time.Second})
	order, err := coord.Run([]wire.NodeID{5, 6})
	require.NoError(t, err)

	require.Equal(t, []wire.NodeID{6, 5}, order)
	assert.Equal(t, enumeration.StateDone, coord.State())

	// Index i went to order[i], persisted on the node.
	assert.Equal(t, int64(0), node6.Param("esc_index"))
	assert.Equal(t, int64(1), node5.Param("esc_index"))
	assert.Equal(t, 1, node6.SaveCount())
	assert.Equal(t, 1, node5.SaveCount())

	// Only winners get stopped; by the end everyone has been a winner.
	assert.False(t, node5.InEnumeration())
	assert.False(t, node6.InEnumeration())
}

func TestRunIgnoresIndicationsFromAssignedNodes(t *testing.T) {
	f := newFixture(t)

	// Node 5 wins the first round and keeps firing afterwards (residual
	// motor spin); it must not hijack node 6's round.
	node5 := f.addESC(5, testharness.Behavior{
		IndicateAfter:           100 * time.Millisecond,
		IndicateEvery:           150 * time.Millisecond,
		KeepIndicatingAfterStop: true,
	})
	node6 := f.addESC(6, testharness.Behavior{
		IndicateAfter: 900 * time.Millisecond,
		IndicateEvery: 400 * time.Millisecond,
	})

	coord := f.coordinator(enumeration.Config{RunTimeout: 10 * time.Second})
	order, err := coord.Run([]wire.NodeID{5, 6})
	require.NoError(t, err)

	require.Equal(t, []wire.NodeID{5, 6}, order)
	assert.Equal(t, int64(0), node5.Param("esc_index"))
	assert.Equal(t, int64(1), node6.Param("esc_index"))
	assert.True(t, f.narrated("ignored - already enumerated"),
		"spurious indications should be narrated as ignored")
}

func TestRunSingleCandidateDoubleIndication(t *testing.T) {
	f := newFixture(t)

	node5 := f.addESC(5, testharness.Behavior{
		IndicateAfter:           50 * time.Millisecond,
		IndicateEvery:           60 * time.Millisecond,
		KeepIndicatingAfterStop: true,
	})

	coord := f.coordinator(enumeration.Config{RunTimeout: 5 * time.Second})
	order, err := coord.Run([]wire.NodeID{5})
	require.NoError(t, err)

	require.Equal(t, []wire.NodeID{5}, order)
	assert.Equal(t, int64(0), node5.Param("esc_index"))
	assert.Equal(t, 1, node5.SaveCount(), "the second indication must not trigger a second round")
}

func TestRunEmptyCandidateSet(t *testing.T) {
	f := newFixture(t)

	coord := f.coordinator(enumeration.Config{RunTimeout: time.Second})
	order, err := coord.Run(nil)
	require.NoError(t, err)
	assert.Empty(t, order)
	assert.Equal(t, enumeration.StateDone, coord.State())
}

func TestRunFailsWhenBeginRejected(t *testing.T) {
	f := newFixture(t)

	node5 := f.addESC(5, testharness.Behavior{
		BeginError: wire.EnumerationErrorRejected,
	})

	coord := f.coordinator(enumeration.Config{RunTimeout: 5 * time.Second})
	order, err := coord.Run([]wire.NodeID{5})
	require.Error(t, err)
	assert.Nil(t, order)
	assert.Equal(t, enumeration.StateFailed, coord.State())

	var rejected *enumeration.RequestRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, wire.NodeID(5), rejected.Node)
	assert.Contains(t, err.Error(), "begin enumeration")

	// No further mutating requests after the rejection.
	assert.Equal(t, int64(-1), node5.Param("esc_index"))
	assert.Equal(t, 0, node5.SaveCount())
}

func TestRunFailsWhenBeginTimesOut(t *testing.T) {
	f := newFixture(t)

	f.addESC(5, testharness.Behavior{
		DropBeginResponse: true,
	})

	coord := f.coordinator(enumeration.Config{
		RunTimeout:     5 * time.Second,
		RequestTimeout: 300 * time.Millisecond,
	})
	order, err := coord.Run([]wire.NodeID{5})
	require.Error(t, err)
	assert.Nil(t, order)
	require.ErrorIs(t, err, enumeration.ErrRequestTimeout)
	assert.Contains(t, err.Error(), "begin enumeration")
}

func TestRunFailsOnValueMismatch(t *testing.T) {
	f := newFixture(t)

	badEcho := int64(7)
	node5 := f.addESC(5, testharness.Behavior{
		IndicateAfter:  100 * time.Millisecond,
		ParamEchoValue: &badEcho,
	})

	coord := f.coordinator(enumeration.Config{RunTimeout: 5 * time.Second})
	order, err := coord.Run([]wire.NodeID{5})
	require.Error(t, err)
	assert.Nil(t, order)

	var mismatch *enumeration.ValueMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, wire.NodeID(5), mismatch.Node)
	assert.Equal(t, int64(0), mismatch.Want)
	assert.Equal(t, int64(7), mismatch.Got)

	// The run must stop before committing the bad value.
	assert.Equal(t, 0, node5.SaveCount())
}

func TestRunFailsOnParamNameMismatch(t *testing.T) {
	f := newFixture(t)

	node5 := f.addESC(5, testharness.Behavior{
		IndicateAfter: 100 * time.Millisecond,
		ParamEchoName: "wrong_param",
	})

	coord := f.coordinator(enumeration.Config{RunTimeout: 5 * time.Second})
	order, err := coord.Run([]wire.NodeID{5})
	require.Error(t, err)
	assert.Nil(t, order)

	var mismatch *enumeration.ValueMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "esc_index", mismatch.Param)
	assert.Equal(t, "wrong_param", mismatch.EchoedParam)

	// A misnamed echo must not be committed.
	assert.Equal(t, 0, node5.SaveCount())
}

func TestRunFailsWhenStopTimesOut(t *testing.T) {
	f := newFixture(t)

	node5 := f.addESC(5, testharness.Behavior{
		IndicateAfter:    100 * time.Millisecond,
		DropStopResponse: true,
	})

	coord := f.coordinator(enumeration.Config{
		RunTimeout:     5 * time.Second,
		RequestTimeout: 300 * time.Millisecond,
	})
	order, err := coord.Run([]wire.NodeID{5})
	require.Error(t, err)
	assert.Nil(t, order)
	require.ErrorIs(t, err, enumeration.ErrRequestTimeout)
	assert.Contains(t, err.Error(), "stop enumeration")

	// Configure and save never happened.
	assert.Equal(t, int64(-1), node5.Param("esc_index"))
	assert.Equal(t, 0, node5.SaveCount())
}

func TestRunFailsWhenParamSetTimesOut(t *testing.T) {
	f := newFixture(t)

	node5 := f.addESC(5, testharness.Behavior{
		IndicateAfter:     100 * time.Millisecond,
		DropParamResponse: true,
	})

	coord := f.coordinator(enumeration.Config{
		RunTimeout:     5 * time.Second,
		RequestTimeout: 300 * time.Millisecond,
	})
	order, err := coord.Run([]wire.NodeID{5})
	require.Error(t, err)
	assert.Nil(t, order)
	require.ErrorIs(t, err, enumeration.ErrRequestTimeout)
	assert.Contains(t, err.Error(), "configure index")

	// An unacknowledged write must not be committed.
	assert.Equal(t, 0, node5.SaveCount())
}

func TestRunFailsWhenSaveTimesOut(t *testing.T) {
	f := newFixture(t)

	f.addESC(5, testharness.Behavior{
		IndicateAfter:    100 * time.Millisecond,
		DropSaveResponse: true,
	})

	coord := f.coordinator(enumeration.Config{
		RunTimeout:     5 * time.Second,
		RequestTimeout: 300 * time.Millisecond,
	})
	order, err := coord.Run([]wire.NodeID{5})
	require.Error(t, err)
	assert.Nil(t, order)
	require.ErrorIs(t, err, enumeration.ErrRequestTimeout)
	assert.Contains(t, err.Error(), "save configuration")
	assert.Equal(t, enumeration.StateFailed, coord.State())
}

func TestRunFailsWhenStopRejected(t *testing.T) {
	f := newFixture(t)

	node5 := f.addESC(5, testharness.Behavior{
		IndicateAfter: 100 * time.Millisecond,
		StopError:     wire.EnumerationErrorInvalidMode,
	})

	coord := f.coordinator(enumeration.Config{RunTimeout: 5 * time.Second})
	_, err := coord.Run([]wire.NodeID{5})
	require.Error(t, err)

	var rejected *enumeration.RequestRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "enumeration stop", rejected.Op)

	// Configure and save never happened.
	assert.Equal(t, int64(-1), node5.Param("esc_index"))
	assert.Equal(t, 0, node5.SaveCount())
}

func TestRunFailsWhenSaveFails(t *testing.T) {
	f := newFixture(t)

	f.addESC(5, testharness.Behavior{
		IndicateAfter: 100 * time.Millisecond,
		SaveFails:     true,
	})

	coord := f.coordinator(enumeration.Config{RunTimeout: 5 * time.Second})
	order, err := coord.Run([]wire.NodeID{5})
	require.Error(t, err)
	assert.Nil(t, order)

	var rejected *enumeration.RequestRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "param save", rejected.Op)
	assert.Contains(t, err.Error(), "save configuration")
}

func TestRunFailsOnRunDeadline(t *testing.T) {
	f := newFixture(t)

	// Node acknowledges begin, but the operator never acts.
	f.addESC(5, testharness.Behavior{})

	coord := f.coordinator(enumeration.Config{RunTimeout: 600 * time.Millisecond})
	order, err := coord.Run([]wire.NodeID{5})
	require.Error(t, err)
	assert.Nil(t, order)
	require.ErrorIs(t, err, enumeration.ErrRunDeadlineExceeded)
	assert.Equal(t, enumeration.StateFailed, coord.State())
}
