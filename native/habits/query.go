package habits

import "math/big"

// WithdrawableDates lists the caller's dates that a withdrawal would settle
// right now, in ascending order.
func (e *Engine) WithdrawableDates(caller [20]byte) ([]int64, error) {
	dates, _, err := e.Withdrawable(caller)
	return dates, err
}

// WithdrawableAmount returns the total a withdrawal of every eligible date
// would pay right now.
func (e *Engine) WithdrawableAmount(caller [20]byte) (*big.Int, error) {
	_, total, err := e.Withdrawable(caller)
	return total, err
}

// Withdrawable returns the eligible dates together with their total, both
// evaluated against a single reading of the clock.
func (e *Engine) Withdrawable(caller [20]byte) ([]int64, *big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, nil, err
	}
	chain, err := e.chainDates(caller)
	if err != nil {
		return nil, nil, err
	}
	now := e.now()
	total := big.NewInt(0)
	dates := make([]int64, 0)
	for _, date := range chain {
		if !IsMature(date, now) {
			break
		}
		amount, _, ok, err := e.payout(caller, date, now)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			continue
		}
		total.Add(total, amount)
		dates = append(dates, date)
	}
	return dates, total, nil
}

// ContestStatus returns the public view of a date's pool. Completion and bonus
// figures are withheld (-1) until the date matures.
func (e *Engine) ContestStatus(date int64) (*ContestStatus, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	pool, ok, err := e.state.HabitsPoolGet(date)
	if err != nil {
		return nil, err
	}
	if !ok {
		pool = &Pool{Date: date}
	}
	status := &ContestStatus{Registered: int64(pool.Registered)}
	if !IsMature(date, e.now()) {
		status.Completed = -1
		status.Bonus = big.NewInt(-1)
		return status, nil
	}
	status.Completed = int64(pool.Completed)
	status.Bonus = BonusPerCompleter(pool, e.perDayFee())
	return status, nil
}

// ContestStatusAdmin returns the unrestricted pool view for admins and a zero
// view for everyone else.
func (e *Engine) ContestStatusAdmin(caller [20]byte, date int64) (*ContestStatusAdmin, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	admin, err := e.IsAdmin(caller)
	if err != nil {
		return nil, err
	}
	if !admin {
		return &ContestStatusAdmin{}, nil
	}
	pool, ok, err := e.state.HabitsPoolGet(date)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &ContestStatusAdmin{}, nil
	}
	return &ContestStatusAdmin{
		Registered:            pool.Registered,
		Completed:             pool.Completed,
		OperationFeeWithdrawn: pool.OperationFeeWithdrawn,
	}, nil
}

// DatesForUser returns user's chain when caller is user or an admin.
func (e *Engine) DatesForUser(caller, user [20]byte) ([]int64, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	allowed, err := e.canView(caller, user)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return []int64{}, nil
	}
	return e.chainDates(user)
}

// UsersForDate returns the participants of date in registration order. Only
// admins see the list.
func (e *Engine) UsersForDate(caller [20]byte, date int64) ([][20]byte, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	admin, err := e.IsAdmin(caller)
	if err != nil {
		return nil, err
	}
	if !admin {
		return [][20]byte{}, nil
	}
	pool, ok, err := e.state.HabitsPoolGet(date)
	if err != nil {
		return nil, err
	}
	if !ok {
		return [][20]byte{}, nil
	}
	users := make([][20]byte, 0, pool.Registered)
	for i := uint64(0); i < pool.Registered; i++ {
		user, err := e.state.HabitsParticipantGet(date, i)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// EntryStatus returns the status of user's entry for date, or StatusNone when
// caller may not view it.
func (e *Engine) EntryStatus(caller, user [20]byte, date int64) (EntryStatus, error) {
	if err := e.ready(); err != nil {
		return StatusNone, err
	}
	allowed, err := e.canView(caller, user)
	if err != nil || !allowed {
		return StatusNone, err
	}
	entry, ok, err := e.state.HabitsEntryGet(user, date)
	if err != nil || !ok {
		return StatusNone, err
	}
	return entry.Status, nil
}

// UserEntryStatuses returns the caller's chain paired with entry statuses.
func (e *Engine) UserEntryStatuses(caller [20]byte) ([]DatedStatus, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	dates, err := e.chainDates(caller)
	if err != nil {
		return nil, err
	}
	out := make([]DatedStatus, 0, len(dates))
	for _, date := range dates {
		status := StatusNone
		entry, ok, err := e.state.HabitsEntryGet(caller, date)
		if err != nil {
			return nil, err
		}
		if ok {
			status = entry.Status
		}
		out = append(out, DatedStatus{Date: date, Status: status})
	}
	return out, nil
}
