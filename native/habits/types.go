package habits

import (
	"fmt"
	"math/big"
)

// EntryStatus tracks a participant's commitment for a single date.
type EntryStatus uint8

const (
	StatusNone EntryStatus = iota
	StatusRegistered
	StatusCompleted
	StatusWithdrawn
)

// Valid reports whether the status value is within the supported range.
func (s EntryStatus) Valid() bool {
	switch s {
	case StatusNone, StatusRegistered, StatusCompleted, StatusWithdrawn:
		return true
	default:
		return false
	}
}

func (s EntryStatus) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusRegistered:
		return "registered"
	case StatusCompleted:
		return "completed"
	case StatusWithdrawn:
		return "withdrawn"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// CanAdvance reports whether an entry may move from s to next. Statuses only
// ever move one step forward and withdrawn is terminal.
func (s EntryStatus) CanAdvance(next EntryStatus) bool {
	return next.Valid() && next == s+1
}

// Entry is a participant's deposit for one date.
type Entry struct {
	Status  EntryStatus
	Deposit *big.Int
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Deposit != nil {
		clone.Deposit = new(big.Int).Set(e.Deposit)
	} else {
		clone.Deposit = big.NewInt(0)
	}
	return &clone
}

// Chain is the cursor of a participant's append-only date chain. The dates
// themselves live in an arena keyed by (user, index) so that enumeration
// costs are proportional to Length rather than to calendar span.
type Chain struct {
	Length   uint64
	LastDate int64
}

// Empty reports whether the participant never registered.
func (c *Chain) Empty() bool { return c == nil || c.Length == 0 }

// Pool aggregates every entry registered for one date.
type Pool struct {
	Date                  int64
	Registered            uint64
	Completed             uint64
	OperationFeeWithdrawn bool
}

// Clone returns a copy of the pool.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// ContestStatus is the public view of a pool. Completed and Bonus are -1 until
// the date matures.
type ContestStatus struct {
	Registered int64
	Completed  int64
	Bonus      *big.Int
}

// ContestStatusAdmin is the unrestricted view of a pool.
type ContestStatusAdmin struct {
	Registered            uint64
	Completed             uint64
	OperationFeeWithdrawn bool
}

// DatedStatus pairs a chain date with its entry status.
type DatedStatus struct {
	Date   int64
	Status EntryStatus
}

// Registration summarises a successful batch registration.
type Registration struct {
	User      [20]byte
	StartDate int64
	EndDate   int64
	Dates     []int64
	Amount    *big.Int
}

// Settlement summarises a withdrawal or fee sweep. Dates lists only the dates
// that contributed to Amount.
type Settlement struct {
	Recipient [20]byte
	Dates     []int64
	Amount    *big.Int
}

// Params captures the tunable economics of the ledger.
type Params struct {
	PerDayFee        *big.Int
	BatchSize        int
	MaxLookaheadDays int64
}

// DefaultPerDayFee is 0.005 of a unit with 18 decimals.
var DefaultPerDayFee = big.NewInt(5_000_000_000_000_000)

const (
	DefaultBatchSize        = 10
	DefaultMaxLookaheadDays = 90
)

// DefaultParams returns the production economics.
func DefaultParams() Params {
	return Params{
		PerDayFee:        new(big.Int).Set(DefaultPerDayFee),
		BatchSize:        DefaultBatchSize,
		MaxLookaheadDays: DefaultMaxLookaheadDays,
	}
}

// Validate ensures every parameter is positive.
func (p Params) Validate() error {
	if p.PerDayFee == nil || p.PerDayFee.Sign() <= 0 {
		return fmt.Errorf("habits params: per-day fee must be positive")
	}
	if p.BatchSize <= 0 {
		return fmt.Errorf("habits params: batch size must be positive")
	}
	if p.MaxLookaheadDays <= 0 {
		return fmt.Errorf("habits params: max lookahead must be positive")
	}
	return nil
}

// BatchDeposit returns the exact amount required to register one batch.
func (p Params) BatchDeposit() *big.Int {
	if p.PerDayFee == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(p.PerDayFee, big.NewInt(int64(p.BatchSize)))
}

func (p Params) clone() Params {
	out := p
	if p.PerDayFee != nil {
		out.PerDayFee = new(big.Int).Set(p.PerDayFee)
	}
	return out
}
