package types

import (
	"fmt"
	"strings"
)

// Funds represents an amount of a fungible asset in its smallest unit.
// All arithmetic is integer-only; there is no floating point anywhere.
//
// The asset key is an opaque lowercase identifier. It can name a fiat
// currency ("usd"), a token ("gwei"), or an internal unit ("credits");
// Tollgate never interprets it beyond equality.
type Funds struct {
	Amount int64  `json:"amount"` // Smallest unit (cents, wei, credits, etc)
	Asset  string `json:"asset"`  // Opaque lowercase asset key
}

// Of creates a Funds value of the given amount and asset.
// The asset key is normalized to lowercase.
func Of(amount int64, asset string) Funds {
	return Funds{Amount: amount, Asset: strings.ToLower(asset)}
}

// Zero returns a zero Funds value in the specified asset.
func Zero(asset string) Funds { return Funds{Amount: 0, Asset: strings.ToLower(asset)} }

// Arithmetic operations

// Add adds two Funds values. Panics if assets don't match.
func (f Funds) Add(other Funds) Funds {
	f.assertSameAsset(other)
	return Funds{Amount: f.Amount + other.Amount, Asset: f.Asset}
}

// Subtract subtracts another Funds value. Panics if assets don't match.
func (f Funds) Subtract(other Funds) Funds {
	f.assertSameAsset(other)
	return Funds{Amount: f.Amount - other.Amount, Asset: f.Asset}
}

// Multiply multiplies the Funds by a quantity.
func (f Funds) Multiply(qty int64) Funds {
	return Funds{Amount: f.Amount * qty, Asset: f.Asset}
}

// Divide divides the Funds by a divisor. Uses integer division.
func (f Funds) Divide(divisor int64) Funds {
	if divisor == 0 {
		panic("funds: division by zero")
	}
	return Funds{Amount: f.Amount / divisor, Asset: f.Asset}
}

// Negate returns the negative of the Funds value.
func (f Funds) Negate() Funds {
	return Funds{Amount: -f.Amount, Asset: f.Asset}
}

// Abs returns the absolute value.
func (f Funds) Abs() Funds {
	if f.Amount < 0 {
		return Funds{Amount: -f.Amount, Asset: f.Asset}
	}
	return f
}

// Comparison methods

// IsZero returns true if the amount is zero.
func (f Funds) IsZero() bool { return f.Amount == 0 }

// IsPositive returns true if the amount is greater than zero.
func (f Funds) IsPositive() bool { return f.Amount > 0 }

// IsNegative returns true if the amount is less than zero.
func (f Funds) IsNegative() bool { return f.Amount < 0 }

// Equal returns true if both Funds values are equal (same amount and asset).
func (f Funds) Equal(other Funds) bool {
	return f.Amount == other.Amount && f.Asset == other.Asset
}

// LessThan returns true if this Funds is less than other. Panics if assets don't match.
func (f Funds) LessThan(other Funds) bool {
	f.assertSameAsset(other)
	return f.Amount < other.Amount
}

// GreaterThan returns true if this Funds is greater than other. Panics if assets don't match.
func (f Funds) GreaterThan(other Funds) bool {
	f.assertSameAsset(other)
	return f.Amount > other.Amount
}

// Min returns the smaller of two Funds values. Panics if assets don't match.
func (f Funds) Min(other Funds) Funds {
	f.assertSameAsset(other)
	if f.Amount < other.Amount {
		return f
	}
	return other
}

// Max returns the larger of two Funds values. Panics if assets don't match.
func (f Funds) Max(other Funds) Funds {
	f.assertSameAsset(other)
	if f.Amount > other.Amount {
		return f
	}
	return other
}

// String returns a human-readable "amount asset" string, e.g. "4900 usd".
// Asset keys are opaque, so no symbol or decimal formatting is attempted.
func (f Funds) String() string {
	return fmt.Sprintf("%d %s", f.Amount, f.Asset)
}

// assertSameAsset panics if assets don't match.
func (f Funds) assertSameAsset(other Funds) {
	if f.Asset != other.Asset {
		panic(fmt.Sprintf("funds: asset mismatch: %s != %s", f.Asset, other.Asset))
	}
}

// Sum calculates the sum of multiple Funds values. All must have the same asset.
// The sum of nothing is the zero value.
func Sum(values ...Funds) Funds {
	if len(values) == 0 {
		return Funds{}
	}

	result := values[0]
	for i := 1; i < len(values); i++ {
		result = result.Add(values[i])
	}
	return result
}
