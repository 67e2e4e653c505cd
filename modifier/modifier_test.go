// Copyright 2026 The Foundryforge Authors
// This file is part of Factorial.

package modifier

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foundryforge/factorial/fixedpoint"
)

// TestCanonicalizationOrderIndependent checks that modifier lists
// differing only in insertion order fold identically once canonicalized.
func TestCanonicalizationOrderIndependent(t *testing.T) {
	a := []Modifier{
		{Id: 0, Kind: KindSpeed, Stacking: Multiplicative, Value: fixedpoint.FromFloat64(1.5)},
		{Id: 1, Kind: KindSpeed, Stacking: Additive, Value: fixedpoint.FromFloat64(1.5)},
	}
	b := []Modifier{
		{Id: 1, Kind: KindSpeed, Stacking: Additive, Value: fixedpoint.FromFloat64(1.5)},
		{Id: 0, Kind: KindSpeed, Stacking: Multiplicative, Value: fixedpoint.FromFloat64(1.5)},
	}

	ea := Fold(Canonicalize(a))
	eb := Fold(Canonicalize(b))
	require.Equal(t, ea, eb)
}

func TestCappedTakesStrongest(t *testing.T) {
	mods := Canonicalize([]Modifier{
		{Id: 0, Kind: KindEfficiency, Stacking: Capped, Value: fixedpoint.FromFloat64(1.2)},
		{Id: 1, Kind: KindEfficiency, Stacking: Capped, Value: fixedpoint.FromFloat64(1.8)},
	})
	eff := Fold(mods)
	require.Equal(t, fixedpoint.FromFloat64(1.8), eff.Efficiency)
}

func TestNoModifiersIsNeutral(t *testing.T) {
	eff := Fold(nil)
	require.Equal(t, fixedpoint.One, eff.Speed)
	require.Equal(t, fixedpoint.One, eff.Productivity)
	require.Equal(t, fixedpoint.One, eff.Efficiency)
}

func TestDiminishingReducesContributionOfLaterStacks(t *testing.T) {
	mods := Canonicalize([]Modifier{
		{Id: 0, Kind: KindSpeed, Stacking: Diminishing, Value: fixedpoint.FromFloat64(2.0)},
		{Id: 1, Kind: KindSpeed, Stacking: Diminishing, Value: fixedpoint.FromFloat64(2.0)},
	})
	eff := Fold(mods)
	// first stack: *2.0, second stack: *(1 + 1/2) = *1.5 -> 3.0 total
	require.Equal(t, fixedpoint.FromFloat64(3.0), eff.Speed)
}
