package interest

import (
	"math/big"
	"testing"
)

func TestRayMulIdentity(t *testing.T) {
	cases := []string{
		"0",
		"1",
		"1000000000000000000000000000",
		"1050000000000000000000000000",
		"123456789123456789123456789123456789",
	}
	for _, c := range cases {
		x, _ := new(big.Int).SetString(c, 10)
		got := RayMul(RAY, x)
		if got.Cmp(x) != 0 {
			t.Fatalf("RayMul(RAY, %s) = %s, want identity", c, got)
		}
	}
}

func TestRayMulRoundsHalfUp(t *testing.T) {
	// 1 * 0.5 RAY = 0.5, rounds up to 1.
	got := RayMul(big.NewInt(1), HalfRAY)
	if got.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("RayMul(1, HalfRAY) = %s, want 1", got)
	}
}

func TestCompoundedInterestZeroElapsed(t *testing.T) {
	rate, _ := new(big.Int).SetString("20000000000000000000000000", 10) // 2% APR
	got := CompoundedInterest(rate, 0)
	if got.Cmp(RAY) != 0 {
		t.Fatalf("zero elapsed time should be identity, got %s", got)
	}
}

func TestCompoundedInterestMatchesSeries(t *testing.T) {
	rate, _ := new(big.Int).SetString("50000000000000000000000000", 10) // 5% APR
	elapsed := uint64(3600)

	exp := new(big.Int).SetUint64(elapsed)
	rps := new(big.Int).Quo(rate, big.NewInt(SecondsPerYear))
	p2 := RayMul(rps, rps)
	p3 := RayMul(p2, rps)

	want := new(big.Int).Add(RAY, new(big.Int).Mul(rps, exp))
	second := new(big.Int).Mul(exp, big.NewInt(int64(elapsed-1)))
	second.Mul(second, p2)
	second.Quo(second, big.NewInt(2))
	third := new(big.Int).Mul(exp, big.NewInt(int64(elapsed-1)))
	third.Mul(third, big.NewInt(int64(elapsed-2)))
	third.Mul(third, p3)
	third.Quo(third, big.NewInt(6))
	want.Add(want, second)
	want.Add(want, third)

	got := CompoundedInterest(rate, elapsed)
	if got.Cmp(want) != 0 {
		t.Fatalf("compounded interest mismatch: got %s want %s", got, want)
	}
	if got.Cmp(RAY) <= 0 {
		t.Fatalf("compounded interest should exceed RAY for positive rate")
	}
}

func TestLinearInterest(t *testing.T) {
	if got := LinearInterest(big.NewInt(0), 1000); got.Cmp(RAY) != 0 {
		t.Fatalf("zero rate should be identity, got %s", got)
	}

	// A rate of SecondsPerYear RAY accrues exactly one RAY per second.
	rate := new(big.Int).Mul(RAY, big.NewInt(SecondsPerYear))
	got := LinearInterest(rate, 1)
	want := new(big.Int).Add(RAY, RAY)
	if got.Cmp(want) != 0 {
		t.Fatalf("linear interest = %s, want %s", got, want)
	}
}

func TestPercentMulDivRoundTrip(t *testing.T) {
	amount := big.NewInt(1000000)
	bonus := big.NewInt(10500) // 105% liquidation bonus

	up := PercentMul(amount, bonus)
	if up.Cmp(big.NewInt(1050000)) != 0 {
		t.Fatalf("PercentMul = %s, want 1050000", up)
	}
	down := PercentDiv(up, bonus)
	if down.Cmp(amount) != 0 {
		t.Fatalf("PercentDiv round trip = %s, want %s", down, amount)
	}
}
