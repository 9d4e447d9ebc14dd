package rpc

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"habitledger/core"
	"habitledger/native/habits"
)

// RegisterRequest is accepted by POST /v1/register. Amount is a base-10 wei
// string and must equal the batch deposit.
type RegisterRequest struct {
	StartDate int64  `json:"startDate"`
	Amount    string `json:"amount"`
}

// DatesRequest is accepted by the withdrawal endpoints.
type DatesRequest struct {
	Dates []int64 `json:"dates"`
}

// FeeWithdrawRequest is accepted by POST /v1/admin/fees/withdraw. When All is
// set the server collects every withdrawable date itself.
type FeeWithdrawRequest struct {
	Dates []int64 `json:"dates"`
	All   bool    `json:"all"`
}

// AdminRequest is accepted by POST /v1/admin/admins.
type AdminRequest struct {
	Address string `json:"address"`
}

type RegistrationResult struct {
	User      string  `json:"user"`
	StartDate int64   `json:"startDate"`
	EndDate   int64   `json:"endDate"`
	Dates     []int64 `json:"dates"`
	Amount    string  `json:"amount"`
}

type SettlementResult struct {
	Recipient string  `json:"recipient"`
	Dates     []int64 `json:"dates"`
	Amount    string  `json:"amount"`
}

type CheckInResult struct {
	User string `json:"user"`
	Date int64  `json:"date"`
}

type StartDateResult struct {
	StartDate          int64 `json:"startDate"`
	LastRegisteredDate int64 `json:"lastRegisteredDate"`
}

type WithdrawableResult struct {
	Dates  []int64 `json:"dates"`
	Amount string  `json:"amount"`
}

type EntryResult struct {
	Date   int64  `json:"date"`
	Status string `json:"status"`
}

type ContestStatusResult struct {
	Date       int64  `json:"date"`
	Registered int64  `json:"registered"`
	Completed  int64  `json:"completed"`
	Bonus      string `json:"bonus"`
}

type ContestStatusAdminResult struct {
	Date                  int64  `json:"date"`
	Registered            uint64 `json:"registered"`
	Completed             uint64 `json:"completed"`
	OperationFeeWithdrawn bool   `json:"operationFeeWithdrawn"`
}

type UsersResult struct {
	Date  int64    `json:"date"`
	Users []string `json:"users"`
}

type UserDatesResult struct {
	User  string  `json:"user"`
	Dates []int64 `json:"dates"`
}

type EntryStatusResult struct {
	User   string `json:"user"`
	Date   int64  `json:"date"`
	Status string `json:"status"`
}

type VaultResult struct {
	Address   string `json:"address"`
	Balance   string `json:"balance"`
	Deposited string `json:"deposited"`
	Released  string `json:"released"`
}

// SweeperResult is returned by GET /v1/admin/sweeper. LastRunAt is zero until
// the first sweep completes.
type SweeperResult struct {
	Enabled    bool    `json:"enabled"`
	LastRunAt  int64   `json:"lastRunAt"`
	LastDates  []int64 `json:"lastDates"`
	LastAmount string  `json:"lastAmount"`
	TotalSwept string  `json:"totalSwept"`
}

type ParamsResult struct {
	PerDayFee        string `json:"perDayFee"`
	BatchSize        int    `json:"batchSize"`
	BatchDeposit     string `json:"batchDeposit"`
	MaxLookaheadDays int64  `json:"maxLookaheadDays"`
	DayLength        int64  `json:"dayLength"`
	Now              int64  `json:"now"`
}

type AdminResult struct {
	Address string `json:"address"`
	Admin   bool   `json:"admin"`
}

func formatAddress(addr [20]byte) string {
	return common.BytesToAddress(addr[:]).Hex()
}

func parseAddress(value string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimSpace(value)
	if !common.IsHexAddress(trimmed) {
		return out, fmt.Errorf("invalid address %q", value)
	}
	copy(out[:], common.HexToAddress(trimmed).Bytes())
	return out, nil
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}

func formatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}

func nonNilDates(dates []int64) []int64 {
	if dates == nil {
		return []int64{}
	}
	return dates
}

func registrationResult(reg *habits.Registration) RegistrationResult {
	return RegistrationResult{
		User:      formatAddress(reg.User),
		StartDate: reg.StartDate,
		EndDate:   reg.EndDate,
		Dates:     nonNilDates(reg.Dates),
		Amount:    formatAmount(reg.Amount),
	}
}

func settlementResult(s *habits.Settlement) SettlementResult {
	return SettlementResult{
		Recipient: formatAddress(s.Recipient),
		Dates:     nonNilDates(s.Dates),
		Amount:    formatAmount(s.Amount),
	}
}

func vaultResult(addr [20]byte, v *core.VaultSummary) VaultResult {
	return VaultResult{
		Address:   formatAddress(addr),
		Balance:   formatAmount(v.Balance),
		Deposited: formatAmount(v.Deposited),
		Released:  formatAmount(v.Released),
	}
}

func paramsResult(p habits.Params, now int64) ParamsResult {
	return ParamsResult{
		PerDayFee:        formatAmount(p.PerDayFee),
		BatchSize:        p.BatchSize,
		BatchDeposit:     formatAmount(p.BatchDeposit()),
		MaxLookaheadDays: p.MaxLookaheadDays,
		DayLength:        habits.DayLength,
		Now:              now,
	}
}
