package state

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"habitledger/native/habits"
	"habitledger/storage"
)

func habitsAddr(b byte) [20]byte {
	var out [20]byte
	out[0] = b
	return out
}

func TestHabitsEntryAndChain(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	user := habitsAddr(1)

	_, ok, err := mgr.HabitsEntryGet(user, 86400)
	require.NoError(t, err)
	require.False(t, ok)

	entry := &habits.Entry{Status: habits.StatusRegistered, Deposit: big.NewInt(5)}
	require.NoError(t, mgr.HabitsEntryPut(user, 86400, entry))
	got, ok, err := mgr.HabitsEntryGet(user, 86400)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, habits.StatusRegistered, got.Status)
	require.Equal(t, int64(5), got.Deposit.Int64())

	chain, err := mgr.HabitsChainGet(user)
	require.NoError(t, err)
	require.True(t, chain.Empty())

	require.NoError(t, mgr.HabitsChainNodePut(user, 0, 86400))
	require.NoError(t, mgr.HabitsChainPut(user, &habits.Chain{Length: 1, LastDate: 86400}))
	chain, err = mgr.HabitsChainGet(user)
	require.NoError(t, err)
	require.Equal(t, uint64(1), chain.Length)
	require.Equal(t, int64(86400), chain.LastDate)

	date, err := mgr.HabitsChainNodeGet(user, 0)
	require.NoError(t, err)
	require.Equal(t, int64(86400), date)
	_, err = mgr.HabitsChainNodeGet(user, 1)
	require.Error(t, err)
}

func TestHabitsPoolIndexSorted(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	for _, date := range []int64{3 * 86400, 86400, 2 * 86400, 86400} {
		pool, ok, err := mgr.HabitsPoolGet(date)
		require.NoError(t, err)
		if !ok {
			pool = &habits.Pool{Date: date}
		}
		pool.Registered++
		require.NoError(t, mgr.HabitsPoolPut(pool))
	}
	dates, err := mgr.HabitsPoolDates()
	require.NoError(t, err)
	require.Equal(t, []int64{86400, 2 * 86400, 3 * 86400}, dates)

	pool, ok, err := mgr.HabitsPoolGet(86400)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(2), pool.Registered)

	pool.Completed = 3
	require.Error(t, mgr.HabitsPoolPut(pool))
}

func TestHabitsParticipantsAndAdmins(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	a, b := habitsAddr(1), habitsAddr(2)
	require.NoError(t, mgr.HabitsParticipantPut(86400, 0, a))
	require.NoError(t, mgr.HabitsParticipantPut(86400, 1, b))
	got, err := mgr.HabitsParticipantGet(86400, 1)
	require.NoError(t, err)
	require.Equal(t, b, got)
	_, err = mgr.HabitsParticipantGet(86400, 2)
	require.Error(t, err)

	_, ok, err := mgr.HabitsOwnerGet()
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mgr.HabitsOwnerPut(a))
	owner, ok, err := mgr.HabitsOwnerGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, a, owner)

	require.NoError(t, mgr.HabitsAdminPut(b, true))
	enabled, err := mgr.HabitsAdminGet(b)
	require.NoError(t, err)
	require.True(t, enabled)
	require.NoError(t, mgr.HabitsAdminPut(b, false))
	enabled, err = mgr.HabitsAdminGet(b)
	require.NoError(t, err)
	require.False(t, enabled)
}

func TestHabitsVault(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	a, b := habitsAddr(1), habitsAddr(2)
	require.NoError(t, mgr.HabitsVaultCredit(a, big.NewInt(100)))
	require.NoError(t, mgr.HabitsVaultDebit(b, big.NewInt(40)))

	balance, err := mgr.HabitsVaultBalance()
	require.NoError(t, err)
	require.Equal(t, int64(60), balance.Int64())
	deposited, err := mgr.HabitsDeposited(a)
	require.NoError(t, err)
	require.Equal(t, int64(100), deposited.Int64())
	released, err := mgr.HabitsReleased(b)
	require.NoError(t, err)
	require.Equal(t, int64(40), released.Int64())

	err = mgr.HabitsVaultDebit(b, big.NewInt(61))
	require.True(t, errors.Is(err, habits.ErrVaultUnderfunded))
}

func TestHabitsEngineOnManager(t *testing.T) {
	db := storage.NewMemDB()
	now := int64(1_700_006_400)
	owner, user := habitsAddr(0xAA), habitsAddr(1)

	mgr := NewManager(db)
	engine := habits.NewEngine()
	engine.SetState(mgr)
	engine.SetNowFunc(func() int64 { return now })
	require.NoError(t, engine.InitOwner(owner))
	_, err := engine.Register(user, now+86400, habits.DefaultParams().BatchDeposit())
	require.NoError(t, err)
	require.NoError(t, mgr.Commit())

	reopened := NewManager(db)
	engine.SetState(reopened)
	dates, err := engine.DatesForUser(user, user)
	require.NoError(t, err)
	require.Len(t, dates, habits.DefaultBatchSize)
	poolDates, err := reopened.HabitsPoolDates()
	require.NoError(t, err)
	require.Equal(t, dates, poolDates)
	users, err := engine.UsersForDate(owner, dates[0])
	require.NoError(t, err)
	require.Equal(t, [][20]byte{user}, users)
}
