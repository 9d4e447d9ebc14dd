package exports

import (
	"math/big"
	"strconv"
	"time"

	"habitledger/native/habits"
)

// PoolRow is the settlement view of one date exported to operators. Figures
// that depend on completion are only populated once the date is mature.
type PoolRow struct {
	Date                  int64  `json:"date"`
	Day                   string `json:"day"`
	Registered            uint64 `json:"registered"`
	Completed             uint64 `json:"completed"`
	Mature                bool   `json:"mature"`
	Forfeited             string `json:"forfeited"`
	Bonus                 string `json:"bonus"`
	OperationFee          string `json:"operationFee"`
	OperationFeeWithdrawn bool   `json:"operationFeeWithdrawn"`
}

// Rows renders pools in export order.
func Rows(pools []*habits.Pool, perDayFee *big.Int, now int64) []PoolRow {
	rows := make([]PoolRow, 0, len(pools))
	for _, pool := range pools {
		if pool == nil {
			continue
		}
		row := PoolRow{
			Date:                  pool.Date,
			Day:                   time.Unix(pool.Date, 0).UTC().Format(time.DateOnly),
			Registered:            pool.Registered,
			Completed:             pool.Completed,
			Mature:                habits.IsMature(pool.Date, now),
			Forfeited:             "0",
			Bonus:                 "0",
			OperationFee:          "0",
			OperationFeeWithdrawn: pool.OperationFeeWithdrawn,
		}
		if row.Mature {
			row.Forfeited = habits.Forfeited(pool, perDayFee).String()
			row.Bonus = habits.BonusPerCompleter(pool, perDayFee).String()
			row.OperationFee = habits.OperationFee(pool, perDayFee).String()
		}
		rows = append(rows, row)
	}
	return rows
}

func (r PoolRow) record() []string {
	return []string{
		strconv.FormatInt(r.Date, 10),
		r.Day,
		strconv.FormatUint(r.Registered, 10),
		strconv.FormatUint(r.Completed, 10),
		strconv.FormatBool(r.Mature),
		r.Forfeited,
		r.Bonus,
		r.OperationFee,
		strconv.FormatBool(r.OperationFeeWithdrawn),
	}
}
