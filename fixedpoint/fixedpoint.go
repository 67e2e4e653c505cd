// Copyright 2024 The Erigon Authors
// (original work)
// Copyright 2026 The Foundryforge Authors
// (modifications)
// This file is part of Factorial.
//
// Factorial is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Factorial is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Factorial. If not, see <http://www.gnu.org/licenses/>.

// Package fixedpoint implements the integer-backed rational types used
// on the simulation path. Floating point is never used inside a tick;
// conversions to/from float64 are only permitted at construction (from
// content files) and at display/FFI boundaries.
package fixedpoint

import (
	"fmt"
	"math"
	"math/bits"
)

// F64 is a Q32.32 fixed-point number: the high 32 bits are the integer
// part, the low 32 bits are the fractional part. It is the type used
// for every simulation computation (rates, progress, modifier values,
// satisfaction ratios, accumulators).
type F64 int64

const (
	f64FracBits = 32
	f64One      = F64(1) << f64FracBits
)

// Zero and One are the additive and multiplicative identities.
const (
	Zero = F64(0)
	One  = f64One
)

// FromInt64 builds an F64 representing the whole number n.
func FromInt64(n int64) F64 { return F64(n) << f64FracBits }

// FromFloat64 builds an F64 from a float64. Permitted only at
// construction time (content loading), never inside the simulation loop.
func FromFloat64(f float64) F64 {
	return F64(math.Round(f * float64(f64One)))
}

// ToFloat64 converts back to float64. Permitted only at display/FFI
// boundaries, never inside the simulation loop.
func (x F64) ToFloat64() float64 {
	return float64(x) / float64(f64One)
}

// Floor truncates toward negative infinity and returns the integer part.
func (x F64) Floor() int64 {
	return int64(x >> f64FracBits)
}

// Ceil rounds toward positive infinity and returns the integer part.
func (x F64) Ceil() int64 {
	whole := x >> f64FracBits
	if x&(f64One-1) != 0 {
		whole++
	}
	return int64(whole)
}

// Frac returns the fractional remainder in [0, One).
func (x F64) Frac() F64 {
	return x & (f64One - 1)
}

// IsZero reports whether x is exactly zero.
func (x F64) IsZero() bool { return x == 0 }

// Neg returns -x without overflow checking (the simulation path never
// negates a value close to the int64 range: rates, progress and
// accumulators are non-negative by construction).
func (x F64) Neg() F64 { return -x }

// Add returns x+y and reports whether the addition overflowed.
func (x F64) Add(y F64) (F64, bool) {
	sum := x + y
	// overflow iff operands share a sign and the result's sign differs
	if (x >= 0) == (y >= 0) && (sum >= 0) != (x >= 0) {
		return 0, false
	}
	return sum, true
}

// Sub returns x-y and reports whether the subtraction overflowed.
func (x F64) Sub(y F64) (F64, bool) {
	return x.Add(-y)
}

// Mul returns x*y and reports whether the multiplication overflowed.
// Uses a 128-bit intermediate product (via math/bits) so the Q32.32
// shift-back never silently truncates high bits.
func (x F64) Mul(y F64) (F64, bool) {
	neg := (x < 0) != (y < 0)
	ux, uy := abs64(int64(x)), abs64(int64(y))

	hi, lo := bits.Mul64(ux, uy)
	// shift the 128-bit product right by f64FracBits
	resLo := lo>>f64FracBits | hi<<(64-f64FracBits)
	resHi := hi >> f64FracBits
	if resHi != 0 {
		return 0, false // overflow: result doesn't fit in 64 bits
	}
	if resLo > math.MaxInt64 {
		return 0, false
	}
	res := int64(resLo)
	if neg {
		res = -res
	}
	return F64(res), true
}

// Div returns x/y and reports whether the division is well-defined.
// Division by zero is a bug on the simulation path: processors guard
// against a zero modifier resolution before ever calling Div, so this
// returns ok=false rather than panicking, leaving the caller's
// invariant check to surface it as an internal error.
func (x F64) Div(y F64) (F64, bool) {
	if y == 0 {
		return 0, false
	}
	neg := (x < 0) != (y < 0)
	ux, uy := abs64(int64(x)), abs64(int64(y))

	hi := ux >> (64 - f64FracBits)
	lo := ux << f64FracBits
	if hi >= uy {
		return 0, false // quotient would overflow 64 bits
	}
	q, _ := bits.Div64(hi, lo, uy)
	if q > math.MaxInt64 {
		return 0, false
	}
	res := int64(q)
	if neg {
		res = -res
	}
	return F64(res), true
}

// SaturatingAdd behaves like Add but saturates to the int64 range
// instead of reporting overflow, for call sites that would rather
// clamp than handle an overflow error.
func (x F64) SaturatingAdd(y F64) F64 {
	sum, ok := x.Add(y)
	if ok {
		return sum
	}
	if x > 0 {
		return F64(math.MaxInt64)
	}
	return F64(math.MinInt64)
}

// SaturatingMul behaves like Mul but saturates instead of reporting overflow.
func (x F64) SaturatingMul(y F64) F64 {
	res, ok := x.Mul(y)
	if ok {
		return res
	}
	if (x < 0) != (y < 0) {
		return F64(math.MinInt64)
	}
	return F64(math.MaxInt64)
}

// Cmp returns -1, 0, or 1 for x<y, x==y, x>y.
func (x F64) Cmp(y F64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

// Min returns the smaller of x and y.
func Min(x, y F64) F64 {
	if x < y {
		return x
	}
	return y
}

// Max returns the larger of x and y.
func Max(x, y F64) F64 {
	if x > y {
		return x
	}
	return y
}

func (x F64) String() string {
	return fmt.Sprintf("%.6f", x.ToFloat64())
}

func abs64(x int64) uint64 {
	if x < 0 {
		return uint64(-x)
	}
	return uint64(x)
}
