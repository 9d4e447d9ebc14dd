package exports

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"math/big"

	"habitledger/native/habits"
)

var poolsHeader = []string{"date", "day", "registered", "completed", "mature", "forfeited", "bonus", "operation_fee", "operation_fee_withdrawn"}

// PoolsCSV builds a CSV export of the supplied pools and returns the
// serialised data alongside a SHA-256 checksum of the payload.
func PoolsCSV(pools []*habits.Pool, perDayFee *big.Int, now int64) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)
	if err := writer.Write(poolsHeader); err != nil {
		return nil, "", err
	}
	for _, row := range Rows(pools, perDayFee, now) {
		if err := writer.Write(row.record()); err != nil {
			return nil, "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}
	data := buffer.Bytes()
	checksum := sha256.Sum256(data)
	return data, hex.EncodeToString(checksum[:]), nil
}
