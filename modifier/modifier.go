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

// Package modifier implements the per-node modifier vector and the
// deterministic fold that reduces it to the three scalars
// (speed, productivity, efficiency) processors consult before dispatch.
package modifier

import (
	"sort"

	"github.com/foundryforge/factorial/fixedpoint"
	"github.com/foundryforge/factorial/ids"
)

// Kind names which effective scalar a modifier contributes to.
type Kind uint8

const (
	KindSpeed Kind = iota
	KindProductivity
	KindEfficiency
	numKinds
)

// Stacking names how a modifier of a given Kind combines with others
// of the same Kind.
type Stacking uint8

const (
	Multiplicative Stacking = iota
	Additive
	Diminishing
	Capped
)

// Modifier is a single per-node effect. Value's meaning depends on
// Stacking: a Multiplicative/Diminishing modifier's Value is a
// multiplier (1.0 = neutral); an Additive modifier's Value is also a
// multiplier, converted internally to a delta before folding; a Capped
// modifier's Value is the multiplier it proposes as a floor.
type Modifier struct {
	Id       ids.ModifierId
	Kind     Kind
	Value    fixedpoint.F64
	Stacking Stacking
}

// Canonicalize returns mods sorted by ascending Id, the canonical
// order required before folding. The input is not mutated.
func Canonicalize(mods []Modifier) []Modifier {
	out := append([]Modifier(nil), mods...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out
}

// Effective holds the three folded scalars a processor consults.
type Effective struct {
	Speed        fixedpoint.F64
	Productivity fixedpoint.F64
	Efficiency   fixedpoint.F64
}

// Fold reduces a canonicalized modifier vector to its effective
// scalars. mods must already be in ascending-Id order (Canonicalize);
// Fold does not re-sort, since the node's stored Modifiers[] is kept
// canonical at all times and re-sorting on every tick would
// be wasted hot-path work.
//
// Two modifier lists that differ only in insertion order but are both
// canonicalized before storage therefore fold to identical scalars.
func Fold(mods []Modifier) Effective {
	acc := [numKinds]fixedpoint.F64{fixedpoint.One, fixedpoint.One, fixedpoint.One}
	diminishingCount := [numKinds]int{}

	for _, m := range mods {
		switch m.Stacking {
		case Multiplicative:
			acc[m.Kind], _ = acc[m.Kind].Mul(m.Value)
		case Additive:
			delta, _ := m.Value.Sub(fixedpoint.One)
			acc[m.Kind] = acc[m.Kind].SaturatingAdd(delta)
		case Diminishing:
			n := diminishingCount[m.Kind]
			delta, _ := m.Value.Sub(fixedpoint.One)
			shift := fixedpoint.FromInt64(1)
			for i := 0; i < n; i++ {
				shift, _ = shift.Mul(fixedpoint.FromInt64(2))
			}
			scaled, ok := delta.Div(shift)
			if !ok {
				scaled = delta
			}
			factor := fixedpoint.One.SaturatingAdd(scaled)
			acc[m.Kind], _ = acc[m.Kind].Mul(factor)
			diminishingCount[m.Kind]++
		case Capped:
			acc[m.Kind] = fixedpoint.Max(acc[m.Kind], m.Value)
		}
		if acc[m.Kind] < 0 {
			acc[m.Kind] = 0
		}
	}

	return Effective{
		Speed:        acc[KindSpeed],
		Productivity: acc[KindProductivity],
		Efficiency:   acc[KindEfficiency],
	}
}
