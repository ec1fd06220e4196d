// Package interest implements the fixed-point arithmetic used by the lending
// protocol: RAY-scale (1e27) index math and basis-point percentages.
package interest

import "math/big"

var (
	// RAY is the 1e27 fixed-point unit used for indices and scaled balances.
	RAY = mustBig("1000000000000000000000000000")
	// HalfRAY is RAY/2, the rounding term of RayMul.
	HalfRAY = mustBig("500000000000000000000000000")
	// Factor is the 1e18 health-factor unit.
	Factor = mustBig("1000000000000000000")
	// HalfFactor is the 50% close factor expressed in Factor units.
	HalfFactor = mustBig("500000000000000000")
	// PercentBase is the basis-point denominator for LTV, liquidation
	// threshold, and liquidation bonus.
	PercentBase = big.NewInt(10000)
	// BorrowFree is the reserved health factor for accounts with no debt.
	BorrowFree = big.NewInt(-1)
)

// SecondsPerYear is the accrual-period denominator used by the protocol's
// rate math.
const SecondsPerYear = 30758400

func mustBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("interest: bad constant " + s)
	}
	return v
}

// RayMul multiplies two RAY-scale values, rounding half up.
func RayMul(a, b *big.Int) *big.Int {
	out := new(big.Int).Mul(a, b)
	out.Add(out, HalfRAY)
	return out.Quo(out, RAY)
}

// PercentMul applies a basis-point percentage to an amount.
func PercentMul(amount, percent *big.Int) *big.Int {
	out := new(big.Int).Mul(amount, percent)
	return out.Quo(out, PercentBase)
}

// PercentDiv divides an amount by a basis-point percentage.
func PercentDiv(amount, percent *big.Int) *big.Int {
	out := new(big.Int).Mul(amount, PercentBase)
	return out.Quo(out, percent)
}

// Pow10 returns 10^n as a big integer.
func Pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// LinearInterest accrues a per-year rate linearly over elapsed seconds:
// rate * elapsed / SecondsPerYear + RAY.
func LinearInterest(rate *big.Int, elapsed uint64) *big.Int {
	out := new(big.Int).Mul(rate, new(big.Int).SetUint64(elapsed))
	out.Quo(out, big.NewInt(SecondsPerYear))
	return out.Add(out, RAY)
}

// CompoundedInterest approximates e^(rate*elapsed) in RAY fixed point with a
// third-order Taylor expansion. Zero elapsed time yields exactly RAY.
func CompoundedInterest(rate *big.Int, elapsed uint64) *big.Int {
	if elapsed == 0 {
		return new(big.Int).Set(RAY)
	}

	exp := new(big.Int).SetUint64(elapsed)
	expMinusOne := new(big.Int).Sub(exp, big.NewInt(1))
	expMinusTwo := big.NewInt(0)
	if elapsed > 2 {
		expMinusTwo = new(big.Int).Sub(exp, big.NewInt(2))
	}

	ratePerSecond := new(big.Int).Quo(rate, big.NewInt(SecondsPerYear))
	basePowerTwo := RayMul(ratePerSecond, ratePerSecond)
	basePowerThree := RayMul(basePowerTwo, ratePerSecond)

	secondTerm := new(big.Int).Mul(exp, expMinusOne)
	secondTerm.Mul(secondTerm, basePowerTwo)
	secondTerm.Quo(secondTerm, big.NewInt(2))

	thirdTerm := new(big.Int).Mul(exp, expMinusOne)
	thirdTerm.Mul(thirdTerm, expMinusTwo)
	thirdTerm.Mul(thirdTerm, basePowerThree)
	thirdTerm.Quo(thirdTerm, big.NewInt(6))

	out := new(big.Int).Mul(ratePerSecond, exp)
	out.Add(out, RAY)
	out.Add(out, secondTerm)
	return out.Add(out, thirdTerm)
}
