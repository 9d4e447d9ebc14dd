package core

import (
	"context"
	"math/big"

	"habitledger/core/state"
	"habitledger/native/habits"
)

// VaultSummary reports the escrow balance and an account's cumulative flows.
type VaultSummary struct {
	Balance   *big.Int
	Deposited *big.Int
	Released  *big.Int
}

// Owner returns the ledger owner.
func (l *Ledger) Owner(ctx context.Context) ([20]byte, error) {
	var owner [20]byte
	err := l.run(ctx, "owner", false, func(engine *habits.Engine, _ *state.Manager) error {
		var err error
		owner, err = engine.Owner()
		return err
	})
	return owner, err
}

// IsAdmin reports whether addr holds admin rights.
func (l *Ledger) IsAdmin(ctx context.Context, addr [20]byte) (bool, error) {
	var admin bool
	err := l.run(ctx, "is_admin", false, func(engine *habits.Engine, _ *state.Manager) error {
		var err error
		admin, err = engine.IsAdmin(addr)
		return err
	})
	return admin, err
}

// ExpectedStartDate returns the start date the next registration by user must use.
func (l *Ledger) ExpectedStartDate(ctx context.Context, user [20]byte) (int64, error) {
	var date int64
	err := l.run(ctx, "start_date", false, func(engine *habits.Engine, _ *state.Manager) error {
		var err error
		date, err = engine.ExpectedStartDate(user)
		return err
	})
	return date, err
}

// LastRegisteredDate returns user's furthest registered date, or zero.
func (l *Ledger) LastRegisteredDate(ctx context.Context, user [20]byte) (int64, error) {
	var date int64
	err := l.run(ctx, "last_registered_date", false, func(engine *habits.Engine, _ *state.Manager) error {
		var err error
		date, err = engine.LastRegisteredDate(user)
		return err
	})
	return date, err
}

// Withdrawable returns the dates and total a withdrawal by caller would settle now.
func (l *Ledger) Withdrawable(ctx context.Context, caller [20]byte) ([]int64, *big.Int, error) {
	var (
		dates  []int64
		amount *big.Int
	)
	err := l.run(ctx, "withdrawable", false, func(engine *habits.Engine, _ *state.Manager) error {
		var err error
		dates, amount, err = engine.Withdrawable(caller)
		return err
	})
	return dates, amount, err
}

// ContestStatus returns the public pool view for date.
func (l *Ledger) ContestStatus(ctx context.Context, date int64) (*habits.ContestStatus, error) {
	var status *habits.ContestStatus
	err := l.run(ctx, "contest_status", false, func(engine *habits.Engine, _ *state.Manager) error {
		var err error
		status, err = engine.ContestStatus(date)
		return err
	})
	return status, err
}

// ContestStatusAdmin returns the unrestricted pool view for admins.
func (l *Ledger) ContestStatusAdmin(ctx context.Context, caller [20]byte, date int64) (*habits.ContestStatusAdmin, error) {
	var status *habits.ContestStatusAdmin
	err := l.run(ctx, "contest_status_admin", false, func(engine *habits.Engine, _ *state.Manager) error {
		var err error
		status, err = engine.ContestStatusAdmin(caller, date)
		return err
	})
	return status, err
}

// DatesForUser returns user's chain when caller may view it.
func (l *Ledger) DatesForUser(ctx context.Context, caller, user [20]byte) ([]int64, error) {
	var dates []int64
	err := l.run(ctx, "dates_for_user", false, func(engine *habits.Engine, _ *state.Manager) error {
		var err error
		dates, err = engine.DatesForUser(caller, user)
		return err
	})
	return dates, err
}

// UsersForDate returns the participants of date for admins.
func (l *Ledger) UsersForDate(ctx context.Context, caller [20]byte, date int64) ([][20]byte, error) {
	var users [][20]byte
	err := l.run(ctx, "users_for_date", false, func(engine *habits.Engine, _ *state.Manager) error {
		var err error
		users, err = engine.UsersForDate(caller, date)
		return err
	})
	return users, err
}

// EntryStatus returns user's status for date when caller may view it.
func (l *Ledger) EntryStatus(ctx context.Context, caller, user [20]byte, date int64) (habits.EntryStatus, error) {
	status := habits.StatusNone
	err := l.run(ctx, "entry_status", false, func(engine *habits.Engine, _ *state.Manager) error {
		var err error
		status, err = engine.EntryStatus(caller, user, date)
		return err
	})
	return status, err
}

// UserEntryStatuses returns the caller's chain with statuses.
func (l *Ledger) UserEntryStatuses(ctx context.Context, caller [20]byte) ([]habits.DatedStatus, error) {
	var statuses []habits.DatedStatus
	err := l.run(ctx, "user_entry_statuses", false, func(engine *habits.Engine, _ *state.Manager) error {
		var err error
		statuses, err = engine.UserEntryStatuses(caller)
		return err
	})
	return statuses, err
}

// WithdrawableOperationFees returns the sweepable dates and total for admins.
func (l *Ledger) WithdrawableOperationFees(ctx context.Context, caller [20]byte) ([]int64, *big.Int, error) {
	var (
		dates []int64
		total *big.Int
	)
	err := l.run(ctx, "withdrawable_operation_fees", false, func(engine *habits.Engine, _ *state.Manager) error {
		var err error
		dates, total, err = engine.WithdrawableOperationFees(caller)
		return err
	})
	return dates, total, err
}

// Vault returns the escrow balance and addr's cumulative deposits and releases.
func (l *Ledger) Vault(ctx context.Context, addr [20]byte) (*VaultSummary, error) {
	summary := &VaultSummary{}
	err := l.run(ctx, "vault", false, func(_ *habits.Engine, mgr *state.Manager) error {
		var err error
		if summary.Balance, err = mgr.HabitsVaultBalance(); err != nil {
			return err
		}
		if summary.Deposited, err = mgr.HabitsDeposited(addr); err != nil {
			return err
		}
		summary.Released, err = mgr.HabitsReleased(addr)
		return err
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// Pools returns every pool in ascending date order. It is an operator view
// and performs no authorization.
func (l *Ledger) Pools(ctx context.Context) ([]*habits.Pool, error) {
	var pools []*habits.Pool
	err := l.run(ctx, "pools", false, func(_ *habits.Engine, mgr *state.Manager) error {
		dates, err := mgr.HabitsPoolDates()
		if err != nil {
			return err
		}
		pools = make([]*habits.Pool, 0, len(dates))
		for _, date := range dates {
			pool, ok, err := mgr.HabitsPoolGet(date)
			if err != nil {
				return err
			}
			if ok {
				pools = append(pools, pool)
			}
		}
		return nil
	})
	return pools, err
}
