package chain

import (
	"errors"
	"math/big"
)

var (
	ErrMathOverflow        = errors.New("math overflow")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Amounts carry 128-bit signed integer semantics. math/big never wraps,
// so every arithmetic helper range-checks its result against i128 bounds.
var (
	maxI128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minI128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
)

// RateScale is the fixed-point denominator for exchange rates (6 decimals,
// 1_000_000 = 1:1).
const RateScale = 1_000_000

// BpsDenominator converts basis points to a fraction (10000 bps = 100%).
const BpsDenominator = 10_000

func fitsI128(v *big.Int) bool {
	return v.Cmp(minI128) >= 0 && v.Cmp(maxI128) <= 0
}

// CheckedAdd returns a+b or ErrMathOverflow if the result leaves i128 range.
func CheckedAdd(a, b *big.Int) (*big.Int, error) {
	sum := new(big.Int).Add(a, b)
	if !fitsI128(sum) {
		return nil, ErrMathOverflow
	}
	return sum, nil
}

// CheckedMul returns a*b or ErrMathOverflow if the result leaves i128 range.
func CheckedMul(a, b *big.Int) (*big.Int, error) {
	prod := new(big.Int).Mul(a, b)
	if !fitsI128(prod) {
		return nil, ErrMathOverflow
	}
	return prod, nil
}

// MulDiv computes a*b/den with truncation toward zero, range-checking the
// intermediate product. den must be non-zero.
func MulDiv(a, b, den *big.Int) (*big.Int, error) {
	prod, err := CheckedMul(a, b)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Quo(prod, den), nil
}

// FeeForBps computes amount*bps/10000, truncating.
func FeeForBps(amount *big.Int, bps uint32) (*big.Int, error) {
	return MulDiv(amount, big.NewInt(int64(bps)), big.NewInt(BpsDenominator))
}

// ApplyRate converts a source amount through a 6-decimal fixed-point rate:
// amount*rate/1_000_000, truncating.
func ApplyRate(amount, rate *big.Int) (*big.Int, error) {
	return MulDiv(amount, rate, big.NewInt(RateScale))
}
