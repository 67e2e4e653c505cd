// Copyright 2026 The Foundryforge Authors
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

package fixedpoint

import "math"

// F32 is a Q16.16 fixed-point number used for compact property storage
// where precision needs are lower than F64 (e.g. per-unit item
// properties carried in inventory slots).
type F32 int32

const f32FracBits = 16

// FromInt32 builds an F32 representing the whole number n.
func FromInt32(n int32) F32 { return F32(n) << f32FracBits }

// FromF64 narrows an F64 into an F32, permitted only at the boundary
// between a node's bulk simulation arithmetic (F64) and a stored
// per-unit property payload (F32).
func FromF64(x F64) F32 {
	return F32(int64(x) >> (f64FracBits - f32FracBits))
}

// ToF64 widens an F32 back to F64.
func (x F32) ToF64() F64 {
	return F64(int64(x) << (f64FracBits - f32FracBits))
}

// FromFloat32 builds an F32 from a float32. Permitted only at
// construction time (content loading).
func FromFloat32(f float32) F32 {
	return F32(math.Round(float64(f) * float64(int64(1)<<f32FracBits)))
}

// ToFloat32 converts back to float32, permitted only at display/FFI boundaries.
func (x F32) ToFloat32() float32 {
	return float32(x) / float32(int32(1)<<f32FracBits)
}

// Add returns x+y and reports whether the addition overflowed.
func (x F32) Add(y F32) (F32, bool) {
	sum := x + y
	if (x >= 0) == (y >= 0) && (sum >= 0) != (x >= 0) {
		return 0, false
	}
	return sum, true
}

// Mul returns x*y using a 64-bit intermediate product, and reports
// whether the result overflows 32 bits.
func (x F32) Mul(y F32) (F32, bool) {
	prod := (int64(x) * int64(y)) >> f32FracBits
	if prod > math.MaxInt32 || prod < math.MinInt32 {
		return 0, false
	}
	return F32(prod), true
}
