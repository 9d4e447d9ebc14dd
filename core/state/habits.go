package state

import (
	"fmt"
	"math/big"
	"sort"

	"habitledger/native/habits"
)

type storedHabitsEntry struct {
	Status  uint8
	Deposit *big.Int
}

type storedHabitsChain struct {
	Length   uint64
	LastDate uint64
}

type storedHabitsPool struct {
	Date                  uint64
	Registered            uint64
	Completed             uint64
	OperationFeeWithdrawn bool
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// HabitsOwnerGet returns the ledger owner recorded at genesis.
func (m *Manager) HabitsOwnerGet() ([20]byte, bool, error) {
	var owner [20]byte
	var raw []byte
	ok, err := m.KVGet(habitsOwnerKey, &raw)
	if err != nil || !ok {
		return owner, false, err
	}
	if len(raw) != len(owner) {
		return owner, false, fmt.Errorf("habits: malformed owner record")
	}
	copy(owner[:], raw)
	return owner, true, nil
}

// HabitsOwnerPut records the ledger owner.
func (m *Manager) HabitsOwnerPut(owner [20]byte) error {
	return m.KVPut(habitsOwnerKey, owner[:])
}

// HabitsAdminGet reports whether addr holds explicit admin rights.
func (m *Manager) HabitsAdminGet(addr [20]byte) (bool, error) {
	var enabled bool
	ok, err := m.KVGet(habitsAdminKey(addr), &enabled)
	if err != nil || !ok {
		return false, err
	}
	return enabled, nil
}

// HabitsAdminPut grants or revokes explicit admin rights.
func (m *Manager) HabitsAdminPut(addr [20]byte, enabled bool) error {
	return m.KVPut(habitsAdminKey(addr), enabled)
}

// HabitsEntryGet loads the entry for (user, date).
func (m *Manager) HabitsEntryGet(user [20]byte, date int64) (*habits.Entry, bool, error) {
	var stored storedHabitsEntry
	ok, err := m.KVGet(habitsEntryKey(user, date), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	status := habits.EntryStatus(stored.Status)
	if !status.Valid() {
		return nil, false, fmt.Errorf("habits: invalid entry status %d", stored.Status)
	}
	return &habits.Entry{Status: status, Deposit: bigOrZero(stored.Deposit)}, true, nil
}

// HabitsEntryPut persists the entry for (user, date).
func (m *Manager) HabitsEntryPut(user [20]byte, date int64, entry *habits.Entry) error {
	if entry == nil {
		return fmt.Errorf("habits: entry must not be nil")
	}
	return m.KVPut(habitsEntryKey(user, date), &storedHabitsEntry{
		Status:  uint8(entry.Status),
		Deposit: bigOrZero(entry.Deposit),
	})
}

// HabitsChainGet returns the chain cursor for user. Users without a chain get
// an empty cursor.
func (m *Manager) HabitsChainGet(user [20]byte) (*habits.Chain, error) {
	var stored storedHabitsChain
	ok, err := m.KVGet(habitsChainKey(user), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &habits.Chain{}, nil
	}
	return &habits.Chain{Length: stored.Length, LastDate: int64(stored.LastDate)}, nil
}

// HabitsChainPut persists the chain cursor for user.
func (m *Manager) HabitsChainPut(user [20]byte, chain *habits.Chain) error {
	if chain == nil {
		return fmt.Errorf("habits: chain must not be nil")
	}
	return m.KVPut(habitsChainKey(user), &storedHabitsChain{
		Length:   chain.Length,
		LastDate: uint64(chain.LastDate),
	})
}

// HabitsChainNodeGet returns the date stored at index in user's chain.
func (m *Manager) HabitsChainNodeGet(user [20]byte, index uint64) (int64, error) {
	var date uint64
	ok, err := m.KVGet(habitsChainNodeKey(user, index), &date)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("habits: chain node %d missing", index)
	}
	return int64(date), nil
}

// HabitsChainNodePut stores the date at index in user's chain.
func (m *Manager) HabitsChainNodePut(user [20]byte, index uint64, date int64) error {
	return m.KVPut(habitsChainNodeKey(user, index), uint64(date))
}

// HabitsPoolGet loads the pool for date.
func (m *Manager) HabitsPoolGet(date int64) (*habits.Pool, bool, error) {
	var stored storedHabitsPool
	ok, err := m.KVGet(habitsPoolKey(date), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &habits.Pool{
		Date:                  int64(stored.Date),
		Registered:            stored.Registered,
		Completed:             stored.Completed,
		OperationFeeWithdrawn: stored.OperationFeeWithdrawn,
	}, true, nil
}

// HabitsPoolPut persists a pool. The first write for a date also records the
// date in the sorted pool index.
func (m *Manager) HabitsPoolPut(pool *habits.Pool) error {
	if pool == nil {
		return fmt.Errorf("habits: pool must not be nil")
	}
	if pool.Completed > pool.Registered {
		return fmt.Errorf("habits: pool completed count exceeds registrations")
	}
	key := habitsPoolKey(pool.Date)
	exists, err := m.KVGet(key, nil)
	if err != nil {
		return err
	}
	if !exists {
		if err := m.habitsIndexPoolDate(pool.Date); err != nil {
			return err
		}
	}
	return m.KVPut(key, &storedHabitsPool{
		Date:                  uint64(pool.Date),
		Registered:            pool.Registered,
		Completed:             pool.Completed,
		OperationFeeWithdrawn: pool.OperationFeeWithdrawn,
	})
}

func (m *Manager) habitsIndexPoolDate(date int64) error {
	var stored []uint64
	if err := m.KVGetList(habitsPoolIndexKey, &stored); err != nil {
		return err
	}
	pos := sort.Search(len(stored), func(i int) bool { return int64(stored[i]) >= date })
	if pos < len(stored) && int64(stored[pos]) == date {
		return nil
	}
	stored = append(stored, 0)
	copy(stored[pos+1:], stored[pos:])
	stored[pos] = uint64(date)
	return m.KVPut(habitsPoolIndexKey, stored)
}

// HabitsPoolDates returns every date with a pool in ascending order.
func (m *Manager) HabitsPoolDates() ([]int64, error) {
	var stored []uint64
	if err := m.KVGetList(habitsPoolIndexKey, &stored); err != nil {
		return nil, err
	}
	dates := make([]int64, len(stored))
	for i, v := range stored {
		dates[i] = int64(v)
	}
	return dates, nil
}

// HabitsParticipantGet returns the participant registered at index for date.
func (m *Manager) HabitsParticipantGet(date int64, index uint64) ([20]byte, error) {
	var user [20]byte
	var raw []byte
	ok, err := m.KVGet(habitsParticipantKey(date, index), &raw)
	if err != nil {
		return user, err
	}
	if !ok || len(raw) != len(user) {
		return user, fmt.Errorf("habits: participant %d for %d missing", index, date)
	}
	copy(user[:], raw)
	return user, nil
}

// HabitsParticipantPut records the participant registered at index for date.
func (m *Manager) HabitsParticipantPut(date int64, index uint64, user [20]byte) error {
	return m.KVPut(habitsParticipantKey(date, index), user[:])
}

func (m *Manager) habitsAmount(key []byte) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.KVGet(key, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

// HabitsVaultBalance returns the amount currently held in escrow.
func (m *Manager) HabitsVaultBalance() (*big.Int, error) {
	return m.habitsAmount(habitsVaultBalanceKey)
}

// HabitsDeposited returns the cumulative amount addr paid into the vault.
func (m *Manager) HabitsDeposited(addr [20]byte) (*big.Int, error) {
	return m.habitsAmount(habitsDepositedKey(addr))
}

// HabitsReleased returns the cumulative amount released from the vault to addr.
func (m *Manager) HabitsReleased(addr [20]byte) (*big.Int, error) {
	return m.habitsAmount(habitsReleasedKey(addr))
}

// HabitsVaultCredit escrows amount received from addr.
func (m *Manager) HabitsVaultCredit(from [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("habits: credit amount must not be negative")
	}
	balance, err := m.HabitsVaultBalance()
	if err != nil {
		return err
	}
	deposited, err := m.HabitsDeposited(from)
	if err != nil {
		return err
	}
	if err := m.KVPut(habitsVaultBalanceKey, balance.Add(balance, amount)); err != nil {
		return err
	}
	return m.KVPut(habitsDepositedKey(from), deposited.Add(deposited, amount))
}

// HabitsVaultDebit releases amount from escrow to addr.
func (m *Manager) HabitsVaultDebit(to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("habits: debit amount must not be negative")
	}
	balance, err := m.HabitsVaultBalance()
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return habits.ErrVaultUnderfunded
	}
	released, err := m.HabitsReleased(to)
	if err != nil {
		return err
	}
	if err := m.KVPut(habitsVaultBalanceKey, balance.Sub(balance, amount)); err != nil {
		return err
	}
	return m.KVPut(habitsReleasedKey(to), released.Add(released, amount))
}
