package events

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"habitledger/core/types"
)

const (
	TypeHabitsRegistered             = "habits.registered"
	TypeHabitsCheckedIn              = "habits.checked_in"
	TypeHabitsWithdrawn              = "habits.withdrawn"
	TypeHabitsOperationFeesWithdrawn = "habits.operation_fees_withdrawn"
	TypeHabitsAdminUpdated           = "habits.admin.updated"
)

// HabitsRegistered is emitted once per successful batch registration.
type HabitsRegistered struct {
	User      [20]byte
	StartDate int64
	EndDate   int64
	Days      int
	Amount    *big.Int
}

func (HabitsRegistered) EventType() string { return TypeHabitsRegistered }

func (e HabitsRegistered) Event() *types.Event {
	return &types.Event{
		Type: TypeHabitsRegistered,
		Attributes: map[string]string{
			"user":      hexAddress(e.User),
			"startDate": intToString(e.StartDate),
			"endDate":   intToString(e.EndDate),
			"days":      strconv.Itoa(e.Days),
			"amount":    formatAmount(e.Amount),
		},
	}
}

// HabitsCheckedIn is emitted when a participant completes today's entry.
type HabitsCheckedIn struct {
	User [20]byte
	Date int64
}

func (HabitsCheckedIn) EventType() string { return TypeHabitsCheckedIn }

func (e HabitsCheckedIn) Event() *types.Event {
	return &types.Event{
		Type: TypeHabitsCheckedIn,
		Attributes: map[string]string{
			"user": hexAddress(e.User),
			"date": intToString(e.Date),
		},
	}
}

// HabitsWithdrawn carries the settled total of a participant withdrawal. It is
// emitted for every withdrawal call, including calls that settle nothing.
type HabitsWithdrawn struct {
	User   [20]byte
	Dates  []int64
	Amount *big.Int
}

func (HabitsWithdrawn) EventType() string { return TypeHabitsWithdrawn }

func (e HabitsWithdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeHabitsWithdrawn,
		Attributes: map[string]string{
			"user":   hexAddress(e.User),
			"dates":  joinDates(e.Dates),
			"amount": formatAmount(e.Amount),
		},
	}
}

// HabitsOperationFeesWithdrawn carries the settled total of an operator sweep.
type HabitsOperationFeesWithdrawn struct {
	Operator [20]byte
	Dates    []int64
	Amount   *big.Int
}

func (HabitsOperationFeesWithdrawn) EventType() string { return TypeHabitsOperationFeesWithdrawn }

func (e HabitsOperationFeesWithdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeHabitsOperationFeesWithdrawn,
		Attributes: map[string]string{
			"operator": hexAddress(e.Operator),
			"dates":    joinDates(e.Dates),
			"amount":   formatAmount(e.Amount),
		},
	}
}

// HabitsAdminUpdated is emitted when the owner grants or revokes admin rights.
type HabitsAdminUpdated struct {
	Owner   [20]byte
	Admin   [20]byte
	Enabled bool
}

func (HabitsAdminUpdated) EventType() string { return TypeHabitsAdminUpdated }

func (e HabitsAdminUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeHabitsAdminUpdated,
		Attributes: map[string]string{
			"owner":   hexAddress(e.Owner),
			"admin":   hexAddress(e.Admin),
			"enabled": strconv.FormatBool(e.Enabled),
		},
	}
}

func hexAddress(addr [20]byte) string {
	return common.BytesToAddress(addr[:]).Hex()
}

func formatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}

func intToString(v int64) string {
	return strconv.FormatInt(v, 10)
}

// joinDates renders the settled dates as a comma separated list.
func joinDates(dates []int64) string {
	if len(dates) == 0 {
		return ""
	}
	parts := make([]string, 0, len(dates))
	for _, d := range dates {
		parts = append(parts, intToString(d))
	}
	return strings.Join(parts, ",")
}
