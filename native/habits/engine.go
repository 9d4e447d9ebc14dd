package habits

import (
	"math/big"
	"time"

	"habitledger/core/events"
)

type engineState interface {
	HabitsOwnerGet() ([20]byte, bool, error)
	HabitsOwnerPut(owner [20]byte) error
	HabitsAdminGet(addr [20]byte) (bool, error)
	HabitsAdminPut(addr [20]byte, enabled bool) error
	HabitsEntryGet(user [20]byte, date int64) (*Entry, bool, error)
	HabitsEntryPut(user [20]byte, date int64, entry *Entry) error
	HabitsChainGet(user [20]byte) (*Chain, error)
	HabitsChainPut(user [20]byte, chain *Chain) error
	HabitsChainNodeGet(user [20]byte, index uint64) (int64, error)
	HabitsChainNodePut(user [20]byte, index uint64, date int64) error
	HabitsPoolGet(date int64) (*Pool, bool, error)
	HabitsPoolPut(pool *Pool) error
	HabitsPoolDates() ([]int64, error)
	HabitsParticipantGet(date int64, index uint64) ([20]byte, error)
	HabitsParticipantPut(date int64, index uint64, user [20]byte) error
	HabitsVaultCredit(from [20]byte, amount *big.Int) error
	HabitsVaultDebit(to [20]byte, amount *big.Int) error
}

// Engine implements the habit ledger state machine: batch registration,
// same-day check-in, tolerant withdrawal and the operator fee sweep.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
	params  Params
}

// NewEngine constructs a habits engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn: func() int64 {
			return time.Now().Unix()
		},
		params: DefaultParams(),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetParams replaces the ledger economics after validating them.
func (e *Engine) SetParams(params Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	e.params = params.clone()
	return nil
}

// Params returns a copy of the active economics.
func (e *Engine) Params() Params { return e.params.clone() }

func (e *Engine) emit(evt events.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) perDayFee() *big.Int {
	if e.params.PerDayFee == nil {
		return new(big.Int).Set(DefaultPerDayFee)
	}
	return new(big.Int).Set(e.params.PerDayFee)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	return nil
}

// advance moves entry to next, rejecting anything but a single step forward.
func advance(entry *Entry, next EntryStatus) error {
	if entry == nil || !entry.Status.CanAdvance(next) {
		return errInvalidTransition
	}
	entry.Status = next
	return nil
}

// chainDates walks a participant's chain in ascending order.
func (e *Engine) chainDates(user [20]byte) ([]int64, error) {
	chain, err := e.state.HabitsChainGet(user)
	if err != nil {
		return nil, err
	}
	if chain.Empty() {
		return []int64{}, nil
	}
	dates := make([]int64, 0, chain.Length)
	for i := uint64(0); i < chain.Length; i++ {
		date, err := e.state.HabitsChainNodeGet(user, i)
		if err != nil {
			return nil, err
		}
		dates = append(dates, date)
	}
	return dates, nil
}
