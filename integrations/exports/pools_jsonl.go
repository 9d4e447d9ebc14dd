package exports

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math/big"

	"habitledger/native/habits"
)

// PoolsJSONL builds a JSON Lines export of the supplied pools and returns the
// serialised payload alongside a checksum.
func PoolsJSONL(pools []*habits.Pool, perDayFee *big.Int, now int64) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	for _, row := range Rows(pools, perDayFee, now) {
		if err := encoder.Encode(row); err != nil {
			return nil, "", err
		}
	}
	data := buffer.Bytes()
	checksum := sha256.Sum256(data)
	return data, hex.EncodeToString(checksum[:]), nil
}
