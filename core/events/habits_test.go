package events

import (
	"math/big"
	"strings"
	"testing"
)

func TestHabitsWithdrawnEvent(t *testing.T) {
	var user [20]byte
	user[19] = 0x01
	evt := HabitsWithdrawn{
		User:   user,
		Dates:  []int64{86400, 172800},
		Amount: big.NewInt(14),
	}.Event()
	if evt.Type != TypeHabitsWithdrawn {
		t.Fatalf("unexpected type: %s", evt.Type)
	}
	if evt.Attributes["amount"] != "14" {
		t.Fatalf("unexpected amount attr: %s", evt.Attributes["amount"])
	}
	if evt.Attributes["dates"] != "86400,172800" {
		t.Fatalf("unexpected dates attr: %s", evt.Attributes["dates"])
	}
	if !strings.HasPrefix(evt.Attributes["user"], "0x") || !strings.HasSuffix(evt.Attributes["user"], "01") {
		t.Fatalf("unexpected user attr: %s", evt.Attributes["user"])
	}
}

func TestHabitsWithdrawnZeroAmount(t *testing.T) {
	evt := HabitsWithdrawn{}.Event()
	if evt.Attributes["amount"] != "0" {
		t.Fatalf("expected zero amount, got %s", evt.Attributes["amount"])
	}
	if evt.Attributes["dates"] != "" {
		t.Fatalf("expected no dates, got %s", evt.Attributes["dates"])
	}
}

func TestBufferDrain(t *testing.T) {
	buf := &Buffer{}
	buf.Emit(HabitsCheckedIn{Date: 1})
	buf.Emit(nil)
	buf.Emit(HabitsCheckedIn{Date: 2})
	if buf.Len() != 2 {
		t.Fatalf("expected two buffered events, got %d", buf.Len())
	}
	drained := buf.Drain()
	if len(drained) != 2 || buf.Len() != 0 {
		t.Fatalf("drain mismatch: %d remaining %d", len(drained), buf.Len())
	}
}

type recordingEmitter struct {
	seen []string
}

func (r *recordingEmitter) Emit(evt Event) { r.seen = append(r.seen, evt.EventType()) }

func TestMultiFansOut(t *testing.T) {
	a, b := &recordingEmitter{}, &recordingEmitter{}
	Multi{a, nil, b}.Emit(HabitsAdminUpdated{Enabled: true})
	if len(a.seen) != 1 || len(b.seen) != 1 {
		t.Fatalf("expected both emitters to observe the event")
	}
	if a.seen[0] != TypeHabitsAdminUpdated {
		t.Fatalf("unexpected type %s", a.seen[0])
	}
}
