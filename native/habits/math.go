package habits

import "math/big"

const (
	bonusShareNumerator   = 9
	bonusShareDenominator = 10
)

// Forfeited returns the deposits left behind by participants who registered
// for the pool's date but never checked in.
func Forfeited(pool *Pool, perDayFee *big.Int) *big.Int {
	if pool == nil || perDayFee == nil || pool.Registered <= pool.Completed {
		return big.NewInt(0)
	}
	missed := new(big.Int).SetUint64(pool.Registered - pool.Completed)
	return missed.Mul(missed, perDayFee)
}

// BonusPerCompleter returns the share of forfeited deposits paid to each
// participant who completed the date. Pools without completers pay no bonus.
func BonusPerCompleter(pool *Pool, perDayFee *big.Int) *big.Int {
	if pool == nil || pool.Completed == 0 {
		return big.NewInt(0)
	}
	bonus := Forfeited(pool, perDayFee)
	bonus.Mul(bonus, big.NewInt(bonusShareNumerator))
	bonus.Quo(bonus, big.NewInt(bonusShareDenominator))
	return bonus.Quo(bonus, new(big.Int).SetUint64(pool.Completed))
}

// OperationFee returns the operator's cut of the pool: the forfeited deposits
// minus every bonus paid out. It absorbs the integer division remainder and
// the whole forfeited amount when nobody completed.
func OperationFee(pool *Pool, perDayFee *big.Int) *big.Int {
	forfeited := Forfeited(pool, perDayFee)
	if pool == nil || pool.Completed == 0 {
		return forfeited
	}
	paid := BonusPerCompleter(pool, perDayFee)
	paid.Mul(paid, new(big.Int).SetUint64(pool.Completed))
	return forfeited.Sub(forfeited, paid)
}
