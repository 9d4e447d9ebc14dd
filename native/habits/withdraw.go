package habits

import (
	"math/big"

	"habitledger/core/events"
)

// payout returns what user would receive for date right now. The boolean is
// false when the date is not settleable.
func (e *Engine) payout(user [20]byte, date, now int64) (*big.Int, *Entry, bool, error) {
	if !IsMature(date, now) {
		return nil, nil, false, nil
	}
	entry, ok, err := e.state.HabitsEntryGet(user, date)
	if err != nil || !ok || entry.Status != StatusCompleted {
		return nil, nil, false, err
	}
	pool, ok, err := e.state.HabitsPoolGet(date)
	if err != nil {
		return nil, nil, false, err
	}
	if !ok {
		return nil, nil, false, errPoolMissing
	}
	amount := new(big.Int).Set(entry.Deposit)
	amount.Add(amount, BonusPerCompleter(pool, e.perDayFee()))
	return amount, entry, true, nil
}

// Withdraw settles every mature, completed date in dates and releases the
// deposits plus bonuses to the caller. Ineligible dates contribute nothing, so
// the call never fails on its input. Exactly one notification is emitted.
func (e *Engine) Withdraw(caller [20]byte, dates []int64) (*Settlement, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	now := e.now()
	total := big.NewInt(0)
	settled := make([]int64, 0, len(dates))
	for _, date := range dates {
		amount, entry, ok, err := e.payout(caller, date, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if err := advance(entry, StatusWithdrawn); err != nil {
			return nil, err
		}
		if err := e.state.HabitsEntryPut(caller, date, entry); err != nil {
			return nil, err
		}
		total.Add(total, amount)
		settled = append(settled, date)
	}
	if total.Sign() > 0 {
		if err := e.state.HabitsVaultDebit(caller, total); err != nil {
			return nil, err
		}
	}
	e.emit(events.HabitsWithdrawn{User: caller, Dates: settled, Amount: new(big.Int).Set(total)})
	return &Settlement{Recipient: caller, Dates: settled, Amount: total}, nil
}

// WithdrawOperationFees sweeps the operator's cut of every mature date in
// dates that has not been swept before. Only the owner may call it.
func (e *Engine) WithdrawOperationFees(caller [20]byte, dates []int64) (*Settlement, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	owner, err := e.isOwner(caller)
	if err != nil {
		return nil, err
	}
	if !owner {
		return nil, ErrNotAuthorized
	}
	now := e.now()
	fee := e.perDayFee()
	total := big.NewInt(0)
	settled := make([]int64, 0, len(dates))
	for _, date := range dates {
		if !IsMature(date, now) {
			continue
		}
		pool, ok, err := e.state.HabitsPoolGet(date)
		if err != nil {
			return nil, err
		}
		if !ok || pool.OperationFeeWithdrawn {
			continue
		}
		total.Add(total, OperationFee(pool, fee))
		pool.OperationFeeWithdrawn = true
		if err := e.state.HabitsPoolPut(pool); err != nil {
			return nil, err
		}
		settled = append(settled, date)
	}
	if total.Sign() > 0 {
		if err := e.state.HabitsVaultDebit(caller, total); err != nil {
			return nil, err
		}
	}
	e.emit(events.HabitsOperationFeesWithdrawn{Operator: caller, Dates: settled, Amount: new(big.Int).Set(total)})
	return &Settlement{Recipient: caller, Dates: settled, Amount: total}, nil
}

// WithdrawableOperationFees lists the mature, unswept dates carrying a non-zero
// operator fee together with their total. Non-admin callers get an empty result.
func (e *Engine) WithdrawableOperationFees(caller [20]byte) ([]int64, *big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, nil, err
	}
	total := big.NewInt(0)
	admin, err := e.IsAdmin(caller)
	if err != nil {
		return nil, nil, err
	}
	if !admin {
		return []int64{}, total, nil
	}
	all, err := e.state.HabitsPoolDates()
	if err != nil {
		return nil, nil, err
	}
	now := e.now()
	fee := e.perDayFee()
	dates := make([]int64, 0)
	for _, date := range all {
		if !IsMature(date, now) {
			// Pool dates are sorted; nothing later can be mature.
			break
		}
		pool, ok, err := e.state.HabitsPoolGet(date)
		if err != nil {
			return nil, nil, err
		}
		if !ok || pool.OperationFeeWithdrawn {
			continue
		}
		opFee := OperationFee(pool, fee)
		if opFee.Sign() == 0 {
			continue
		}
		total.Add(total, opFee)
		dates = append(dates, date)
	}
	return dates, total, nil
}
