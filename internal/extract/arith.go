package extract

import (
	"math"

	"github.com/shopspring/decimal"
)

// SignificantDigits is the precision every computed difference is rounded to
const SignificantDigits = 12

// Precision12 rounds f to twelve significant digits
func Precision12(f float64) float64 {
	return ToPrecision(f, SignificantDigits)
}

// ToPrecision rounds f to the given number of significant digits
func ToPrecision(f float64, digits int) float64 {
	if f == 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	d := decimal.NewFromFloat(f)
	exp := int32(math.Floor(math.Log10(math.Abs(f))))
	places := int32(digits) - 1 - exp
	v, _ := d.Round(places).Float64()
	return v
}

// Sub returns a - b rounded to twelve significant digits, nil when either
// operand is missing.
func Sub(a, b *float64) *float64 {
	if a == nil || b == nil {
		return nil
	}
	v := SubFloat(*a, *b)
	return &v
}

// SubFloat is Sub on plain values
func SubFloat(a, b float64) float64 {
	d := decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b))
	v, _ := d.Float64()
	return Precision12(v)
}

// Sum adds the values, nil when any is missing
func Sum(values ...*float64) *float64 {
	total := decimal.Zero
	for _, v := range values {
		if v == nil {
			return nil
		}
		total = total.Add(decimal.NewFromFloat(*v))
	}
	f, _ := total.Float64()
	f = Precision12(f)
	return &f
}

// Round rounds f half away from zero to the given decimal places
func Round(f float64, places int32) float64 {
	v, _ := decimal.NewFromFloat(f).Round(places).Float64()
	return v
}

// PercentChange back-solves the previous base from a price and its point
// change: round(change / (price - change) * 10000) / 100.
func PercentChange(price, change float64) float64 {
	base := price - change
	if base == 0 {
		return 0
	}
	return jsRound(change/base*10000) / 100
}

// PercentChangeOf is PercentChange on optional values
func PercentChangeOf(price, change *float64) *float64 {
	if price == nil || change == nil || *price == 0 {
		return nil
	}
	v := PercentChange(*price, *change)
	return &v
}

// IndexChangePercent computes the change percent of an intraday index
// series against its reference price.
func IndexChangePercent(change, reference float64) float64 {
	if reference == 0 {
		return 0
	}
	return jsRound(Precision12(change/reference)*10000) / 100
}

// Ratio divides and rounds to the given places, nil on a zero divisor
func Ratio(num, den float64, places int32) *float64 {
	if den == 0 {
		return nil
	}
	v := Round(num/den, places)
	return &v
}

// jsRound rounds half up toward positive infinity
func jsRound(f float64) float64 {
	return math.Floor(f + 0.5)
}
