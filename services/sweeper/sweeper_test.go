package sweeper

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"habitledger/core"
	"habitledger/native/habits"
	"habitledger/storage"
)

type stubLedger struct {
	calls int32
	err   error
}

func (s *stubLedger) SweepOperationFees(_ context.Context, caller [20]byte) (*habits.Settlement, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return nil, s.err
	}
	return &habits.Settlement{Recipient: caller, Dates: []int64{}, Amount: big.NewInt(7)}, nil
}

func owner() [20]byte {
	var out [20]byte
	out[19] = 0xAA
	return out
}

func TestNewValidates(t *testing.T) {
	if _, err := New(nil, Config{Owner: owner(), Interval: time.Hour}); err == nil {
		t.Fatalf("expected ledger error")
	}
	if _, err := New(&stubLedger{}, Config{Owner: owner(), Interval: time.Second}); err == nil {
		t.Fatalf("expected interval error")
	}
	if _, err := New(&stubLedger{}, Config{Interval: time.Hour}); err == nil {
		t.Fatalf("expected owner error")
	}
}

func TestSweepOnceAccumulates(t *testing.T) {
	stub := &stubLedger{}
	s, err := New(stub, Config{Owner: owner(), Interval: time.Hour})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := s.SweepOnce(context.Background()); err != nil {
			t.Fatalf("sweep: %v", err)
		}
	}
	last, at, total := s.Status()
	if last == nil || at.IsZero() {
		t.Fatalf("expected last settlement")
	}
	if total.Cmp(big.NewInt(14)) != 0 {
		t.Fatalf("total = %s", total)
	}

	stub.err = errors.New("boom")
	if _, err := s.SweepOnce(context.Background()); err == nil {
		t.Fatalf("expected sweep error")
	}
	if _, _, total = s.Status(); total.Cmp(big.NewInt(14)) != 0 {
		t.Fatalf("failed sweep changed total: %s", total)
	}
}

func TestSweepOnceAgainstLedger(t *testing.T) {
	const today int64 = 1_700_006_400
	now := today + 60
	ledger, err := core.NewLedger(storage.NewMemDB(), core.WithNowFunc(func() int64 { return now }))
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	ctx := context.Background()
	if err := ledger.Init(ctx, owner()); err != nil {
		t.Fatalf("init: %v", err)
	}
	var user [20]byte
	user[19] = 0x01
	start := today + habits.DayLength
	if _, err := ledger.Register(ctx, user, start, ledger.Params().BatchDeposit()); err != nil {
		t.Fatalf("register: %v", err)
	}
	now = start + 3*habits.DayLength

	s, err := New(ledger, Config{Owner: owner(), Interval: time.Hour})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	settlement, err := s.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	// Two matured dates nobody checked in for.
	want := new(big.Int).Mul(habits.DefaultPerDayFee, big.NewInt(2))
	if settlement.Amount.Cmp(want) != 0 || len(settlement.Dates) != 2 {
		t.Fatalf("unexpected settlement %+v", settlement)
	}
	again, err := s.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if again.Amount.Sign() != 0 {
		t.Fatalf("second sweep collected %s", again.Amount)
	}
}

func TestStartStop(t *testing.T) {
	s, err := New(&stubLedger{}, Config{Owner: owner(), Interval: time.Minute})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(); err == nil {
		t.Fatalf("expected double start error")
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}
