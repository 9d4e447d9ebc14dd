package state

import (
	"math/big"
	"testing"

	"habitledger/storage"
)

func TestHabitsKeyFormats(t *testing.T) {
	var user [20]byte
	user[19] = 0x01

	entryKey := habitsEntryKey(user, 86400)
	expected := append(append([]byte("habits/entry/"), user[:]...), 0, 0, 0, 0, 0, 1, 0x51, 0x80)
	if string(entryKey) != string(expected) {
		t.Fatalf("unexpected entry key: %x", entryKey)
	}
	if string(habitsPoolKey(0)) != "habits/pool/\x00\x00\x00\x00\x00\x00\x00\x00" {
		t.Fatalf("unexpected pool key: %x", habitsPoolKey(0))
	}
	if string(habitsChainKey(user)) == string(habitsChainNodeKey(user, 0)[:len(habitsChainKey(user))]) {
		t.Fatalf("chain and chain node keys must not share a prefix")
	}
}

func TestManagerOverlayCommit(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	mgr := NewManager(db)
	if err := mgr.KVPut([]byte("k"), uint64(7)); err != nil {
		t.Fatalf("put: %v", err)
	}
	var got uint64
	ok, err := mgr.KVGet([]byte("k"), &got)
	if err != nil || !ok || got != 7 {
		t.Fatalf("overlay read = %d ok=%v err=%v", got, ok, err)
	}
	if db.Len() != 0 {
		t.Fatalf("writes must stay buffered until commit")
	}

	fresh := NewManager(db)
	if ok, _ := fresh.KVGet([]byte("k"), &got); ok {
		t.Fatalf("uncommitted value visible to another manager")
	}

	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if mgr.Dirty() != 0 {
		t.Fatalf("commit must clear the overlay")
	}
	got = 0
	ok, err = fresh.KVGet([]byte("k"), &got)
	if err != nil || !ok || got != 7 {
		t.Fatalf("committed read = %d ok=%v err=%v", got, ok, err)
	}
}

func TestManagerDiscard(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	mgr := NewManager(db)
	if err := mgr.KVPut([]byte("k"), uint64(1)); err != nil {
		t.Fatalf("put: %v", err)
	}
	mgr.Discard()
	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if db.Len() != 0 {
		t.Fatalf("discarded writes reached the database")
	}
}

func TestManagerKVGetListEmpty(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	var list []uint64
	if err := mgr.KVGetList([]byte("missing"), &list); err != nil {
		t.Fatalf("get list: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Fatalf("expected empty list, got %v", list)
	}
	if _, err := mgr.KVGet(nil, nil); err == nil {
		t.Fatalf("expected empty key error")
	}
}

func TestManagerBigIntRoundTrip(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	amount, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	if err := mgr.KVPut([]byte("amount"), amount); err != nil {
		t.Fatalf("put: %v", err)
	}
	out := new(big.Int)
	if ok, err := mgr.KVGet([]byte("amount"), out); err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if out.Cmp(amount) != 0 {
		t.Fatalf("round trip = %s", out)
	}
}
