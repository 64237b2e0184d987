// Package fixedpoint implements PriceT and SizeT, the fixed-point decimal
// representation exchange payloads are converted into on the way in.
//
// Exchange depth payloads carry price and size as decimal strings so that
// no precision is lost in transit. Parsing them directly into float64 would
// reintroduce that precision loss, and comparing floats for order book
// equality is unreliable. Instead every decimal string is parsed with
// shopspring/decimal and scaled into a signed int64, rounded to the nearest
// unit at the target scale. The same scale is applied to both price and
// size, per spec.
package fixedpoint

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultScale is the reference scale (S = 10^8) applied to both price and
// size unless a caller parameterizes a different one.
const DefaultScale int64 = 100000000

// ErrUnparseable is returned when a decimal string cannot be parsed.
var ErrUnparseable = errors.New("fixedpoint: unparseable decimal string")

// Value is a scaled fixed-point integer realizing PriceT/SizeT.
type Value int64

// Parse scales s by scale, rounding to the nearest integer, and returns it
// as a Value. scale must be positive.
func Parse(s string, scale int64) (Value, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrUnparseable, s, err)
	}
	scaled := d.Mul(decimal.NewFromInt(scale)).Round(0)
	return Value(scaled.IntPart()), nil
}

// Float64 returns the value divided back down by scale, for display only;
// order book comparisons must never go through this.
func (v Value) Float64(scale int64) float64 {
	return float64(v) / float64(scale)
}
