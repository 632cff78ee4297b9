package log

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/torqbus-protocol/torqbus-go/pkg/wire"
)

func TestEventRoundTrip(t *testing.T) {
	event := Event{
		Timestamp: time.Now().Truncate(time.Microsecond),
		SessionID: "1b671a64-40d5-491e-99b0-da01ff1f3341",
		Direction: DirectionIn,
		Layer:     LayerWire,
		Category:  CategoryMessage,
		NodeID:    23,
		Transfer: &TransferEvent{
			Kind:       wire.KindBroadcast,
			Type:       wire.TypeESCStatus,
			Source:     23,
			TransferID: 0,
		},
	}

	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.SessionID != event.SessionID {
		t.Errorf("session_id = %q, want %q", decoded.SessionID, event.SessionID)
	}
	if decoded.NodeID != 23 {
		t.Errorf("node_id = %d, want 23", decoded.NodeID)
	}
	if decoded.Transfer == nil || decoded.Transfer.Type != wire.TypeESCStatus {
		t.Errorf("transfer = %+v, want ESCStatus", decoded.Transfer)
	}
}

func TestFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.cbor")

	fl, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	fl.Log(Event{
		Timestamp: time.Now(),
		SessionID: "s",
		Layer:     LayerEnumeration,
		Category:  CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   "coordinator",
			OldState: "Idle",
			NewState: "BroadcastingBegin",
		},
	})

	if err := fl.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Logging after close is a no-op, not a panic.
	fl.Log(Event{})
	if err := fl.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("log file is empty")
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}
	if decoded.StateChange == nil || decoded.StateChange.NewState != "BroadcastingBegin" {
		t.Errorf("state change = %+v", decoded.StateChange)
	}
}

type captureLogger struct {
	events []Event
}

func (c *captureLogger) Log(e Event) { c.events = append(c.events, e) }

func TestMultiLogger(t *testing.T) {
	a := &captureLogger{}
	b := &captureLogger{}

	ml := NewMultiLogger(a, b, NoopLogger{})
	ml.Log(Event{SessionID: "s"})

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("events = %d/%d, want 1/1", len(a.events), len(b.events))
	}
}
