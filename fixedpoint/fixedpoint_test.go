// Copyright 2026 The Foundryforge Authors
// This file is part of Factorial.

package fixedpoint

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestAddSubRoundtrip(t *testing.T) {
	a := FromInt64(3)
	b := FromInt64(2)
	sum, ok := a.Add(b)
	require.True(t, ok)
	require.Equal(t, FromInt64(5), sum)

	back, ok := sum.Sub(b)
	require.True(t, ok)
	require.Equal(t, a, back)
}

func TestMulExact(t *testing.T) {
	half := FromFloat64(0.5)
	ten := FromInt64(10)
	got, ok := ten.Mul(half)
	require.True(t, ok)
	require.Equal(t, FromInt64(5), got)
}

func TestDivByZero(t *testing.T) {
	_, ok := FromInt64(1).Div(FromInt64(0))
	require.False(t, ok)
}

func TestFloorCeil(t *testing.T) {
	v := FromFloat64(2.25)
	require.Equal(t, int64(2), v.Floor())
	require.Equal(t, int64(3), v.Ceil())

	neg := FromFloat64(-2.25)
	require.Equal(t, int64(-3), neg.Floor())
}

// TestMulCommutative checks x*y == y*x across a wide sample of values,
// the property that justifies folding modifiers in any order.
func TestMulCommutative(t *testing.T) {
	rapid.Check(t, func(tt *rapid.T) {
		x := F64(rapid.Int64Range(-1<<40, 1<<40).Draw(tt, "x"))
		y := F64(rapid.Int64Range(-1<<40, 1<<40).Draw(tt, "y"))
		xy, okXY := x.Mul(y)
		yx, okYX := y.Mul(x)
		require.Equal(tt, okXY, okYX)
		if okXY {
			require.Equal(tt, xy, yx)
		}
	})
}

func TestSaturatingAdd(t *testing.T) {
	max := F64(1<<63 - 1)
	require.Equal(t, max, max.SaturatingAdd(FromInt64(1)))
}
