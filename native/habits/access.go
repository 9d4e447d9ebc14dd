package habits

import "habitledger/core/events"

// InitOwner records the ledger owner. It succeeds once; repeating it with the
// same owner is a no-op.
func (e *Engine) InitOwner(owner [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	current, ok, err := e.state.HabitsOwnerGet()
	if err != nil {
		return err
	}
	if ok {
		if current == owner {
			return nil
		}
		return ErrOwnerExists
	}
	return e.state.HabitsOwnerPut(owner)
}

// Owner returns the ledger owner.
func (e *Engine) Owner() ([20]byte, error) {
	if err := e.ready(); err != nil {
		return [20]byte{}, err
	}
	owner, ok, err := e.state.HabitsOwnerGet()
	if err != nil {
		return [20]byte{}, err
	}
	if !ok {
		return [20]byte{}, ErrOwnerNotSet
	}
	return owner, nil
}

func (e *Engine) isOwner(addr [20]byte) (bool, error) {
	owner, ok, err := e.state.HabitsOwnerGet()
	if err != nil || !ok {
		return false, err
	}
	return owner == addr, nil
}

// IsAdmin reports whether addr may use the admin views. The owner is always an
// admin.
func (e *Engine) IsAdmin(addr [20]byte) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	owner, err := e.isOwner(addr)
	if err != nil || owner {
		return owner, err
	}
	return e.state.HabitsAdminGet(addr)
}

// AddAdmin grants admin rights. Only the owner may call it.
func (e *Engine) AddAdmin(caller, addr [20]byte) error {
	return e.setAdmin(caller, addr, true)
}

// RemoveAdmin revokes admin rights. Only the owner may call it; the owner's
// implicit rights are unaffected.
func (e *Engine) RemoveAdmin(caller, addr [20]byte) error {
	return e.setAdmin(caller, addr, false)
}

func (e *Engine) setAdmin(caller, addr [20]byte, enabled bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	owner, err := e.isOwner(caller)
	if err != nil {
		return err
	}
	if !owner {
		return ErrNotAuthorized
	}
	if err := e.state.HabitsAdminPut(addr, enabled); err != nil {
		return err
	}
	e.emit(events.HabitsAdminUpdated{Owner: caller, Admin: addr, Enabled: enabled})
	return nil
}

// canView reports whether caller may read the details of target.
func (e *Engine) canView(caller, target [20]byte) (bool, error) {
	if caller == target {
		return true, nil
	}
	return e.IsAdmin(caller)
}
