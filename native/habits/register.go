package habits

import (
	"math/big"

	"habitledger/core/events"
)

// ExpectedStartDate returns the only start date a new registration by user
// may request: the day after the chain's last date, or tomorrow for newcomers
// and for participants whose chain has lapsed.
func (e *Engine) ExpectedStartDate(user [20]byte) (int64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	chain, err := e.state.HabitsChainGet(user)
	if err != nil {
		return 0, err
	}
	return expectedStart(chain, e.now()), nil
}

// LastRegisteredDate returns the furthest date user registered for, or zero.
func (e *Engine) LastRegisteredDate(user [20]byte) (int64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	chain, err := e.state.HabitsChainGet(user)
	if err != nil {
		return 0, err
	}
	if chain.Empty() {
		return 0, nil
	}
	return chain.LastDate, nil
}

// expectedStart never yields today or an earlier date, so a batch cannot
// reach a pool whose counters are already frozen.
func expectedStart(chain *Chain, now int64) int64 {
	tomorrow := NextDate(now)
	if chain.Empty() {
		return tomorrow
	}
	if next := chain.LastDate + DayLength; next > tomorrow {
		return next
	}
	return tomorrow
}

// Register commits the caller to one batch of consecutive dates beginning at
// start and escrows the paid amount.
func (e *Engine) Register(caller [20]byte, start int64, paid *big.Int) (*Registration, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	now := e.now()
	chain, err := e.state.HabitsChainGet(caller)
	if err != nil {
		return nil, err
	}
	if start != expectedStart(chain, now) {
		return nil, ErrInvalidStartDate
	}
	if DateFloor(start)-DateFloor(now) > e.params.MaxLookaheadDays*DayLength {
		return nil, ErrLookaheadExceeded
	}
	if paid == nil || paid.Cmp(e.params.BatchDeposit()) != 0 {
		return nil, ErrIncorrectDeposit
	}

	fee := e.perDayFee()
	dates := make([]int64, 0, e.params.BatchSize)
	for i := 0; i < e.params.BatchSize; i++ {
		date := start + int64(i)*DayLength
		entry := &Entry{Status: StatusNone, Deposit: new(big.Int).Set(fee)}
		if err := advance(entry, StatusRegistered); err != nil {
			return nil, err
		}
		if err := e.state.HabitsEntryPut(caller, date, entry); err != nil {
			return nil, err
		}
		if err := e.state.HabitsChainNodePut(caller, chain.Length, date); err != nil {
			return nil, err
		}
		chain.Length++
		chain.LastDate = date

		pool, ok, err := e.state.HabitsPoolGet(date)
		if err != nil {
			return nil, err
		}
		if !ok {
			pool = &Pool{Date: date}
		}
		if err := e.state.HabitsParticipantPut(date, pool.Registered, caller); err != nil {
			return nil, err
		}
		pool.Registered++
		if err := e.state.HabitsPoolPut(pool); err != nil {
			return nil, err
		}
		dates = append(dates, date)
	}
	if err := e.state.HabitsChainPut(caller, chain); err != nil {
		return nil, err
	}
	if err := e.state.HabitsVaultCredit(caller, paid); err != nil {
		return nil, err
	}

	reg := &Registration{
		User:      caller,
		StartDate: start,
		EndDate:   chain.LastDate,
		Dates:     dates,
		Amount:    new(big.Int).Set(paid),
	}
	e.emit(events.HabitsRegistered{
		User:      caller,
		StartDate: reg.StartDate,
		EndDate:   reg.EndDate,
		Days:      len(dates),
		Amount:    new(big.Int).Set(paid),
	})
	return reg, nil
}
