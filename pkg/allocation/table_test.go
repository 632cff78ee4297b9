package allocation

import (
	"testing"
	"time"

	"github.com/torqbus-protocol/torqbus-go/pkg/wire"
)

func TestTableAppendIsMonotonicAndDeduplicated(t *testing.T) {
	table := NewTable()
	now := time.Now()

	table.Append(now, 5)
	table.Append(now.Add(time.Second), 6)
	table.Append(now.Add(2*time.Second), 5) // duplicate: ignored
	table.Append(now.Add(3*time.Second), 7)

	if table.Size() != 3 {
		t.Fatalf("Size = %d, want 3", table.Size())
	}

	want := []wire.NodeID{5, 6, 7}
	got := table.Entries()
	if len(got) != len(want) {
		t.Fatalf("Entries = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Entries[%d] = %d, want %d", i, got[i], want[i])
		}
	}

	if !table.Contains(6) {
		t.Error("Contains(6) = false, want true")
	}
	if table.Contains(99) {
		t.Error("Contains(99) = true, want false")
	}
}
