package domain

import (
	"math"
	"math/bits"

	"github.com/shopspring/decimal"
)

// displayPrecision is the number of decimal places used when rendering raw
// native units for reports (7, matching the ledger's display convention).
const displayPrecision = 7

// MaxAmount is the largest representable ledger amount. The persistent
// backend stores amounts in signed 64-bit columns, so values above it
// cannot round-trip; the checked helpers treat crossing it as overflow.
const MaxAmount uint64 = math.MaxInt64

// CheckedMul multiplies two uint64 amounts, returning ErrOverflow if the
// product exceeds MaxAmount. Value arithmetic never wraps silently.
func CheckedMul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 || lo > MaxAmount {
		return 0, ErrOverflow
	}
	return lo, nil
}

// CheckedSub subtracts b from a, returning ErrUnderflow if b > a.
func CheckedSub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrUnderflow
	}
	return diff, nil
}

// CheckedAdd adds two uint64 amounts, returning ErrOverflow if the sum
// exceeds MaxAmount.
func CheckedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 || sum > MaxAmount {
		return 0, ErrOverflow
	}
	return sum, nil
}

// DisplayUnits renders a raw native amount as a display-unit decimal.
func DisplayUnits(raw uint64) decimal.Decimal {
	return decimal.NewFromUint64(raw).Shift(-displayPrecision)
}
