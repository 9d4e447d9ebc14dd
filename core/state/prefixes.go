package state

import "encoding/binary"

var (
	habitsOwnerKey          = []byte("habits/owner")
	habitsAdminPrefix       = []byte("habits/admin/")
	habitsEntryPrefix       = []byte("habits/entry/")
	habitsChainPrefix       = []byte("habits/chain/")
	habitsChainNodePrefix   = []byte("habits/chain-node/")
	habitsPoolPrefix        = []byte("habits/pool/")
	habitsPoolIndexKey      = []byte("habits/pool-index")
	habitsParticipantPrefix = []byte("habits/participant/")
	habitsVaultBalanceKey   = []byte("habits/vault/balance")
	habitsDepositedPrefix   = []byte("habits/vault/deposited/")
	habitsReleasedPrefix    = []byte("habits/vault/released/")
)

func concatKey(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, part := range parts {
		size += len(part)
	}
	key := make([]byte, 0, size)
	key = append(key, prefix...)
	for _, part := range parts {
		key = append(key, part...)
	}
	return key
}

func uint64Bytes(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}

func dateBytes(date int64) []byte { return uint64Bytes(uint64(date)) }

func habitsAdminKey(addr [20]byte) []byte { return concatKey(habitsAdminPrefix, addr[:]) }

func habitsEntryKey(user [20]byte, date int64) []byte {
	return concatKey(habitsEntryPrefix, user[:], dateBytes(date))
}

func habitsChainKey(user [20]byte) []byte { return concatKey(habitsChainPrefix, user[:]) }

func habitsChainNodeKey(user [20]byte, index uint64) []byte {
	return concatKey(habitsChainNodePrefix, user[:], uint64Bytes(index))
}

func habitsPoolKey(date int64) []byte { return concatKey(habitsPoolPrefix, dateBytes(date)) }

func habitsParticipantKey(date int64, index uint64) []byte {
	return concatKey(habitsParticipantPrefix, dateBytes(date), uint64Bytes(index))
}

func habitsDepositedKey(addr [20]byte) []byte { return concatKey(habitsDepositedPrefix, addr[:]) }

func habitsReleasedKey(addr [20]byte) []byte { return concatKey(habitsReleasedPrefix, addr[:]) }
