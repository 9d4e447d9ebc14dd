package habits

import "habitledger/core/events"

// CheckIn marks the caller's entry for today as completed. It returns the date
// that was checked in.
func (e *Engine) CheckIn(caller [20]byte) (int64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	today := DateFloor(e.now())
	entry, ok, err := e.state.HabitsEntryGet(caller, today)
	if err != nil {
		return 0, err
	}
	if !ok || entry.Status != StatusRegistered {
		return 0, ErrNotRegistered
	}
	pool, ok, err := e.state.HabitsPoolGet(today)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errPoolMissing
	}
	if err := advance(entry, StatusCompleted); err != nil {
		return 0, err
	}
	if err := e.state.HabitsEntryPut(caller, today, entry); err != nil {
		return 0, err
	}
	pool.Completed++
	if err := e.state.HabitsPoolPut(pool); err != nil {
		return 0, err
	}
	e.emit(events.HabitsCheckedIn{User: caller, Date: today})
	return today, nil
}
