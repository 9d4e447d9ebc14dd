package habits

import (
	"math/big"
	"testing"
)

func TestConservationAcrossPools(t *testing.T) {
	fees := []*big.Int{big.NewInt(1), big.NewInt(7), new(big.Int).Set(DefaultPerDayFee)}
	for _, fee := range fees {
		for r := uint64(0); r <= 25; r++ {
			for c := uint64(0); c <= r; c++ {
				pool := &Pool{Registered: r, Completed: c}
				paid := new(big.Int).Mul(BonusPerCompleter(pool, fee), new(big.Int).SetUint64(c))
				paid.Add(paid, OperationFee(pool, fee))
				want := new(big.Int).Mul(new(big.Int).SetUint64(r-c), fee)
				if paid.Cmp(want) != 0 {
					t.Fatalf("fee %s R=%d C=%d: distributed %s, forfeited %s", fee, r, c, paid, want)
				}
				if OperationFee(pool, fee).Sign() < 0 {
					t.Fatalf("negative operation fee for R=%d C=%d", r, c)
				}
			}
		}
	}
}

func TestBonusScenarios(t *testing.T) {
	fee := new(big.Int).Set(DefaultPerDayFee)

	oneOfThree := &Pool{Registered: 3, Completed: 1}
	if got := BonusPerCompleter(oneOfThree, fee); got.String() != "9000000000000000" {
		t.Fatalf("bonus = %s", got)
	}
	if got := OperationFee(oneOfThree, fee); got.String() != "1000000000000000" {
		t.Fatalf("operation fee = %s", got)
	}

	noneOfThree := &Pool{Registered: 3, Completed: 0}
	if got := BonusPerCompleter(noneOfThree, fee); got.Sign() != 0 {
		t.Fatalf("bonus without completers = %s", got)
	}
	if got := OperationFee(noneOfThree, fee); got.String() != "15000000000000000" {
		t.Fatalf("operation fee without completers = %s", got)
	}

	empty := &Pool{}
	if BonusPerCompleter(empty, fee).Sign() != 0 || OperationFee(empty, fee).Sign() != 0 {
		t.Fatalf("empty pool must pay nothing")
	}
}

func TestOperationFeeAbsorbsRemainder(t *testing.T) {
	// forfeited = 4, 90% = 3.6 -> 3 over 3 completers = 1 each, fee = 1
	pool := &Pool{Registered: 7, Completed: 3}
	fee := big.NewInt(1)
	if got := BonusPerCompleter(pool, fee); got.Int64() != 1 {
		t.Fatalf("bonus = %s", got)
	}
	if got := OperationFee(pool, fee); got.Int64() != 1 {
		t.Fatalf("operation fee = %s", got)
	}
}
