// Copyright 2026 The Foundryforge Authors
// This file is part of Factorial.

package processor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foundryforge/factorial/event"
	"github.com/foundryforge/factorial/fixedpoint"
	"github.com/foundryforge/factorial/ids"
	"github.com/foundryforge/factorial/inventory"
	"github.com/foundryforge/factorial/modifier"
)

var neutral = modifier.Effective{Speed: fixedpoint.One, Productivity: fixedpoint.One, Efficiency: fixedpoint.One}

// TestFixedConsumesAtStartEmitsAtDuration checks that a Fixed
// processor with unmodified speed consumes inputs at cycle start and
// emits outputs exactly at tick start+duration.
func TestFixedConsumesAtStartEmitsAtDuration(t *testing.T) {
	p := &Processor{Kind: KindFixed, Fixed: Fixed{
		Inputs:   []ItemQty{{Item: 0, Qty: 2}},
		Outputs:  []ItemQty{{Item: 1, Qty: 1}},
		Duration: 5,
	}}
	st := &State{Kind: Idle}
	in := inventory.NewInventory(1, 100)
	out := inventory.NewInventory(1, 100)
	in.Insert(0, 2, nil)

	evs := Tick(ids.NodeId{}, p, st, in, out, neutral, 0)
	require.Equal(t, uint32(0), in.Total(0))
	require.Equal(t, Working, st.Kind)
	require.Contains(t, kindsOf(evs), event.RecipeStarted)

	for tick := uint64(1); tick < 5; tick++ {
		evs = Tick(ids.NodeId{}, p, st, in, out, neutral, tick)
		require.NotContains(t, kindsOf(evs), event.RecipeCompleted)
		require.Equal(t, uint32(0), out.Total(1))
	}

	evs = Tick(ids.NodeId{}, p, st, in, out, neutral, 5)
	require.Contains(t, kindsOf(evs), event.RecipeCompleted)
	require.Equal(t, uint32(1), out.Total(1))
	require.Equal(t, Idle, st.Kind)
}

func TestFixedStallsOnMissingInputs(t *testing.T) {
	p := &Processor{Kind: KindFixed, Fixed: Fixed{
		Inputs:   []ItemQty{{Item: 0, Qty: 5}},
		Outputs:  []ItemQty{{Item: 1, Qty: 1}},
		Duration: 3,
	}}
	st := &State{Kind: Idle}
	in := inventory.NewInventory(1, 100)
	out := inventory.NewInventory(1, 100)

	Tick(ids.NodeId{}, p, st, in, out, neutral, 0)
	require.Equal(t, Stalled, st.Kind)
	require.Equal(t, event.MissingInputs, st.Reason)
}

func TestSourceAccumulatesFractionalRate(t *testing.T) {
	p := &Processor{Kind: KindSource, Source: Source{
		OutputType: 1,
		BaseRate:   fixedpoint.FromFloat64(0.5),
		Depletion:  Infinite,
	}}
	st := &State{Kind: Idle}
	out := inventory.NewInventory(1, 100)

	Tick(ids.NodeId{}, p, st, nil, out, neutral, 0)
	require.Equal(t, uint32(0), out.Total(1))
	Tick(ids.NodeId{}, p, st, nil, out, neutral, 1)
	require.Equal(t, uint32(1), out.Total(1))
}

func TestSourceDepletesToZeroAndStalls(t *testing.T) {
	p := &Processor{Kind: KindSource, Source: Source{
		OutputType: 1,
		BaseRate:   fixedpoint.FromInt64(1),
		Depletion:  Finite,
		Remaining:  fixedpoint.FromInt64(1),
	}}
	st := &State{Kind: Idle}
	out := inventory.NewInventory(1, 100)

	Tick(ids.NodeId{}, p, st, nil, out, neutral, 0)
	require.Equal(t, uint32(1), out.Total(1))

	evs := Tick(ids.NodeId{}, p, st, nil, out, neutral, 1)
	require.Equal(t, Stalled, st.Kind)
	require.Equal(t, event.Depleted, st.Reason)
	require.Contains(t, kindsOf(evs), event.BuildingStalled)
}

func TestPassthroughMovesAllAvailable(t *testing.T) {
	st := &State{Kind: Idle}
	in := inventory.NewInventory(2, 100)
	out := inventory.NewInventory(2, 100)
	in.Insert(1, 3, nil)
	in.Insert(2, 2, nil)

	Tick(ids.NodeId{}, &Processor{Kind: KindPassthrough}, st, in, out, neutral, 0)
	require.Equal(t, uint32(0), in.Total(1))
	require.Equal(t, uint32(0), in.Total(2))
	require.Equal(t, uint32(3), out.Total(1))
	require.Equal(t, uint32(2), out.Total(2))
	require.Equal(t, Working, st.Kind)
}

// TestPropertyAppliesTransform checks that a Property processor
// consumes one input unit, applies its value transform to the
// matching property, and produces one output unit carrying the
// transformed payload.
func TestPropertyAppliesTransform(t *testing.T) {
	p := &Processor{Kind: KindProperty, Property: Property{
		InputType:  1,
		OutputType: 2,
		Transform:  AddTransform,
		PropId:     7,
		Value:      fixedpoint.FromInt32(5),
	}}
	st := &State{Kind: Idle}
	in := inventory.NewInventory(1, 100)
	out := inventory.NewInventory(1, 100)
	in.Insert(1, 1, inventory.NewPropertyPayload(inventory.PropertyValue{Id: 7, Value: fixedpoint.FromInt32(10)}))

	evs := Tick(ids.NodeId{}, p, st, in, out, neutral, 0)
	require.Contains(t, kindsOf(evs), event.ItemConsumed)
	require.Contains(t, kindsOf(evs), event.ItemProduced)
	require.Equal(t, uint32(0), in.Total(1))
	require.Equal(t, uint32(1), out.Total(2))
	require.Equal(t, Working, st.Kind)

	props, ok := out.PeekOne(2)
	require.True(t, ok)
	require.Len(t, props, 1)
	require.Equal(t, fixedpoint.FromInt32(15), props[0].Value)
}

// TestPropertyStallsOnMissingInput checks that a Property processor
// with no matching input stalls with MissingInputs, untouched.
func TestPropertyStallsOnMissingInput(t *testing.T) {
	p := &Processor{Kind: KindProperty, Property: Property{InputType: 1, OutputType: 2, Transform: Set, PropId: 1}}
	st := &State{Kind: Idle}
	in := inventory.NewInventory(1, 100)
	out := inventory.NewInventory(1, 100)

	evs := Tick(ids.NodeId{}, p, st, in, out, neutral, 0)
	require.Equal(t, Stalled, st.Kind)
	require.Equal(t, event.MissingInputs, st.Reason)
	require.Contains(t, kindsOf(evs), event.BuildingStalled)
	require.Equal(t, uint32(0), out.Total(2))
}

// TestPropertyOutputFullLeavesInputUnchanged checks that a Property
// processor that stalls on a full output does not destroy the input
// unit it would have consumed: every other stalling path (Fixed,
// Demand, transports) leaves state unchanged on a stall, and
// OutputFull must be no different.
func TestPropertyOutputFullLeavesInputUnchanged(t *testing.T) {
	p := &Processor{Kind: KindProperty, Property: Property{InputType: 1, OutputType: 2, Transform: Set, PropId: 1, Value: fixedpoint.FromInt32(9)}}
	st := &State{Kind: Idle}
	in := inventory.NewInventory(1, 100)
	out := inventory.NewInventory(1, 1) // capacity 1, already full
	in.Insert(1, 1, nil)
	out.Insert(2, 1, nil)

	evs := Tick(ids.NodeId{}, p, st, in, out, neutral, 0)
	require.Equal(t, Stalled, st.Kind)
	require.Equal(t, event.OutputFull, st.Reason)
	require.Contains(t, kindsOf(evs), event.BuildingStalled)
	require.NotContains(t, kindsOf(evs), event.ItemConsumed)

	// the input unit must still be there: a full output must not
	// destroy in-flight inventory.
	require.Equal(t, uint32(1), in.Total(1))
}

func kindsOf(evs []event.Event) []event.Kind {
	var ks []event.Kind
	for _, e := range evs {
		ks = append(ks, e.Kind)
	}
	return ks
}
