package habits

import "errors"

var (
	ErrNilState          = errors.New("habits engine: state not configured")
	ErrInvalidStartDate  = errors.New("habits engine: start date does not follow the last registered date")
	ErrLookaheadExceeded = errors.New("habits engine: start date too far in the future")
	ErrIncorrectDeposit  = errors.New("habits engine: deposit must equal the batch fee exactly")
	ErrNotRegistered     = errors.New("habits engine: no registered entry for today")
	ErrNotAuthorized     = errors.New("habits engine: caller not authorized")
	ErrVaultUnderfunded  = errors.New("habits engine: vault underfunded")
	ErrOwnerExists       = errors.New("habits engine: owner already initialised")
	ErrOwnerNotSet       = errors.New("habits engine: owner not initialised")

	errInvalidTransition = errors.New("habits engine: invalid status transition")
	errPoolMissing       = errors.New("habits engine: pool missing for registered entry")
)
