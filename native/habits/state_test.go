package habits

import (
	"errors"
	"math/big"
	"sort"
)

type entryKey struct {
	user [20]byte
	date int64
}

type nodeKey struct {
	user  [20]byte
	index uint64
}

type participantKey struct {
	date  int64
	index uint64
}

type mockState struct {
	owner        [20]byte
	ownerSet     bool
	admins       map[[20]byte]bool
	entries      map[entryKey]*Entry
	chains       map[[20]byte]*Chain
	nodes        map[nodeKey]int64
	pools        map[int64]*Pool
	participants map[participantKey][20]byte
	vault        *big.Int
	released     map[[20]byte]*big.Int
}

func newMockState() *mockState {
	return &mockState{
		admins:       make(map[[20]byte]bool),
		entries:      make(map[entryKey]*Entry),
		chains:       make(map[[20]byte]*Chain),
		nodes:        make(map[nodeKey]int64),
		pools:        make(map[int64]*Pool),
		participants: make(map[participantKey][20]byte),
		vault:        big.NewInt(0),
		released:     make(map[[20]byte]*big.Int),
	}
}

func (m *mockState) HabitsOwnerGet() ([20]byte, bool, error) { return m.owner, m.ownerSet, nil }

func (m *mockState) HabitsOwnerPut(owner [20]byte) error {
	m.owner = owner
	m.ownerSet = true
	return nil
}

func (m *mockState) HabitsAdminGet(addr [20]byte) (bool, error) { return m.admins[addr], nil }

func (m *mockState) HabitsAdminPut(addr [20]byte, enabled bool) error {
	if enabled {
		m.admins[addr] = true
	} else {
		delete(m.admins, addr)
	}
	return nil
}

func (m *mockState) HabitsEntryGet(user [20]byte, date int64) (*Entry, bool, error) {
	entry, ok := m.entries[entryKey{user, date}]
	if !ok {
		return nil, false, nil
	}
	return entry.Clone(), true, nil
}

func (m *mockState) HabitsEntryPut(user [20]byte, date int64, entry *Entry) error {
	m.entries[entryKey{user, date}] = entry.Clone()
	return nil
}

func (m *mockState) HabitsChainGet(user [20]byte) (*Chain, error) {
	chain, ok := m.chains[user]
	if !ok {
		return &Chain{}, nil
	}
	clone := *chain
	return &clone, nil
}

func (m *mockState) HabitsChainPut(user [20]byte, chain *Chain) error {
	clone := *chain
	m.chains[user] = &clone
	return nil
}

func (m *mockState) HabitsChainNodeGet(user [20]byte, index uint64) (int64, error) {
	date, ok := m.nodes[nodeKey{user, index}]
	if !ok {
		return 0, errors.New("mock: chain node missing")
	}
	return date, nil
}

func (m *mockState) HabitsChainNodePut(user [20]byte, index uint64, date int64) error {
	m.nodes[nodeKey{user, index}] = date
	return nil
}

func (m *mockState) HabitsPoolGet(date int64) (*Pool, bool, error) {
	pool, ok := m.pools[date]
	if !ok {
		return nil, false, nil
	}
	return pool.Clone(), true, nil
}

func (m *mockState) HabitsPoolPut(pool *Pool) error {
	m.pools[pool.Date] = pool.Clone()
	return nil
}

func (m *mockState) HabitsPoolDates() ([]int64, error) {
	dates := make([]int64, 0, len(m.pools))
	for date := range m.pools {
		dates = append(dates, date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i] < dates[j] })
	return dates, nil
}

func (m *mockState) HabitsParticipantGet(date int64, index uint64) ([20]byte, error) {
	user, ok := m.participants[participantKey{date, index}]
	if !ok {
		return [20]byte{}, errors.New("mock: participant missing")
	}
	return user, nil
}

func (m *mockState) HabitsParticipantPut(date int64, index uint64, user [20]byte) error {
	m.participants[participantKey{date, index}] = user
	return nil
}

func (m *mockState) HabitsVaultCredit(_ [20]byte, amount *big.Int) error {
	m.vault.Add(m.vault, amount)
	return nil
}

func (m *mockState) HabitsVaultDebit(to [20]byte, amount *big.Int) error {
	if m.vault.Cmp(amount) < 0 {
		return ErrVaultUnderfunded
	}
	m.vault.Sub(m.vault, amount)
	current, ok := m.released[to]
	if !ok {
		current = big.NewInt(0)
	}
	m.released[to] = new(big.Int).Add(current, amount)
	return nil
}

// seedEntry writes an entry directly, extending the user's chain and the
// date's pool the way a registration would.
func (m *mockState) seedEntry(user [20]byte, date int64, status EntryStatus, fee *big.Int) {
	chain, _ := m.HabitsChainGet(user)
	m.nodes[nodeKey{user, chain.Length}] = date
	chain.Length++
	chain.LastDate = date
	m.chains[user] = chain
	m.entries[entryKey{user, date}] = &Entry{Status: status, Deposit: new(big.Int).Set(fee)}
	pool, ok := m.pools[date]
	if !ok {
		pool = &Pool{Date: date}
		m.pools[date] = pool
	}
	m.participants[participantKey{date, pool.Registered}] = user
	pool.Registered++
	if status >= StatusCompleted {
		pool.Completed++
	}
	m.vault.Add(m.vault, fee)
}
