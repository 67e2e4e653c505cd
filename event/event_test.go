// Copyright 2026 The Foundryforge Authors
// This file is part of Factorial.

package event

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foundryforge/factorial/ids"
)

// TestRingDropsOldestWhenFull checks that once total_emitted -
// dropped_count exceeds capacity, the oldest emissions are gone, but
// both counters still reflect every emission.
func TestRingDropsOldestWhenFull(t *testing.T) {
	b := NewBus()
	b.SetCapacity(ItemProduced, 2)
	for i := 0; i < 5; i++ {
		b.Emit(Event{Kind: ItemProduced, Qty: uint32(i)})
	}
	require.Equal(t, uint64(5), b.TotalEmitted(ItemProduced))
	require.Equal(t, uint64(3), b.Dropped(ItemProduced))

	var seen []uint32
	b.OnPassive(ItemProduced, Normal, nil, func(e Event) { seen = append(seen, e.Qty) })
	b.Dispatch()
	require.Equal(t, []uint32{3, 4}, seen)
}

func TestSuppressedKindStillCounts(t *testing.T) {
	b := NewBus()
	b.Suppress(TransportFull)
	b.Emit(Event{Kind: TransportFull})
	require.Equal(t, uint64(1), b.TotalEmitted(TransportFull))

	var delivered bool
	b.OnPassive(TransportFull, Normal, nil, func(Event) { delivered = true })
	b.Dispatch()
	require.False(t, delivered)
}

func TestDeliveryOrderByPriorityThenRegistration(t *testing.T) {
	b := NewBus()
	var order []string
	b.OnPassive(RecipeCompleted, Post, nil, func(Event) { order = append(order, "post") })
	b.OnPassive(RecipeCompleted, Pre, nil, func(Event) { order = append(order, "pre") })
	b.OnPassive(RecipeCompleted, Normal, nil, func(Event) { order = append(order, "normal-1") })
	b.OnPassive(RecipeCompleted, Normal, nil, func(Event) { order = append(order, "normal-2") })

	b.Emit(Event{Kind: RecipeCompleted})
	b.Dispatch()
	require.Equal(t, []string{"pre", "normal-1", "normal-2", "post"}, order)
}

// TestReactiveMutationsDeferred checks that a reactive handler's
// mutations come back from Dispatch, never applied inline.
func TestReactiveMutationsDeferred(t *testing.T) {
	b := NewBus()
	b.OnReactive(RecipeCompleted, Normal, nil, func(e Event) []Mutation {
		return []Mutation{{Kind: MutationRemoveNode, Node: e.Node}}
	})
	b.Emit(Event{Kind: RecipeCompleted, Node: ids.NodeId{Index: 7}})
	muts := b.Dispatch()
	require.Len(t, muts, 1)
	require.Equal(t, MutationRemoveNode, muts[0].Kind)
}

// TestPassiveAndReactiveShareOneDeliveryOrder checks that a Pre
// reactive subscriber runs ahead of a Post passive one of the same
// kind: passive and reactive subscribers interleave in one
// priority-then-registration order rather than passive-then-reactive.
func TestPassiveAndReactiveShareOneDeliveryOrder(t *testing.T) {
	b := NewBus()
	var order []string
	b.OnPassive(RecipeCompleted, Post, nil, func(Event) { order = append(order, "passive-post") })
	b.OnReactive(RecipeCompleted, Pre, nil, func(Event) []Mutation {
		order = append(order, "reactive-pre")
		return nil
	})
	b.OnPassive(RecipeCompleted, Normal, nil, func(Event) { order = append(order, "passive-normal") })
	b.OnReactive(RecipeCompleted, Normal, nil, func(Event) []Mutation {
		order = append(order, "reactive-normal")
		return nil
	})

	b.Emit(Event{Kind: RecipeCompleted})
	b.Dispatch()
	require.Equal(t, []string{"reactive-pre", "passive-normal", "reactive-normal", "passive-post"}, order)
}

// TestBufferPeeksWithoutDraining checks that Buffer reports the
// currently queued events without emptying the ring the way Dispatch does.
func TestBufferPeeksWithoutDraining(t *testing.T) {
	b := NewBus()
	b.Emit(Event{Kind: ItemProduced, Qty: 1})
	b.Emit(Event{Kind: ItemProduced, Qty: 2})

	buffered := b.Buffer(ItemProduced)
	require.Len(t, buffered, 2)
	require.Equal(t, uint32(1), buffered[0].Qty)
	require.Equal(t, uint32(2), buffered[1].Qty)

	var seen []uint32
	b.OnPassive(ItemProduced, Normal, nil, func(e Event) { seen = append(seen, e.Qty) })
	b.Dispatch()
	require.Equal(t, []uint32{1, 2}, seen)
}
