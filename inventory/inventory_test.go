// Copyright 2026 The Foundryforge Authors
// This file is part of Factorial.

package inventory

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/foundryforge/factorial/ids"
)

func TestInsertRespectsCapacity(t *testing.T) {
	inv := NewInventory(1, 10)
	taken := inv.Insert(ids.ItemTypeId(1), 15, nil)
	require.Equal(t, uint32(10), taken)
	require.Equal(t, uint32(10), inv.Total(ids.ItemTypeId(1)))
}

func TestInsertFillsExistingBeforeEmpty(t *testing.T) {
	inv := NewInventory(2, 10)
	inv.Insert(ids.ItemTypeId(1), 5, nil)
	taken := inv.Insert(ids.ItemTypeId(1), 5, nil)
	require.Equal(t, uint32(5), taken)
	require.Equal(t, 1, countNonEmpty(inv))
}

func TestRemoveVacatesEmptiedSlot(t *testing.T) {
	inv := NewInventory(1, 10)
	inv.Insert(ids.ItemTypeId(1), 10, nil)
	given := inv.Remove(ids.ItemTypeId(1), 10)
	require.Equal(t, uint32(10), given)
	require.Equal(t, uint32(0), inv.Total(ids.ItemTypeId(1)))
	// slot must accept a different item type once emptied
	taken := inv.Insert(ids.ItemTypeId(2), 3, nil)
	require.Equal(t, uint32(3), taken)
}

func TestStatefulItemsOneSlotPerTuple(t *testing.T) {
	inv := NewInventory(2, 10)
	p1 := NewPropertyPayload(PropertyValue{Id: 1, Value: 0})
	p2 := NewPropertyPayload(PropertyValue{Id: 1, Value: 100})
	inv.Insert(ids.ItemTypeId(1), 1, p1)
	inv.Insert(ids.ItemTypeId(1), 1, p2)
	require.Equal(t, uint32(2), inv.Total(ids.ItemTypeId(1)))
	require.Equal(t, 2, countNonEmpty(inv))
}

func countNonEmpty(inv *Inventory) int {
	n := 0
	for _, s := range inv.Slots() {
		if !s.isEmpty() {
			n++
		}
	}
	return n
}

// TestSlotInvariant is P4: after any operation, 0 <= qty <= capacity
// and item-type per slot is stable until empty.
func TestSlotInvariant(t *testing.T) {
	rapid.Check(t, func(tt *rapid.T) {
		cap := uint32(rapid.IntRange(1, 20).Draw(tt, "cap"))
		inv := NewInventory(3, cap)
		steps := rapid.IntRange(1, 30).Draw(tt, "steps")
		for i := 0; i < steps; i++ {
			item := ids.ItemTypeId(rapid.IntRange(1, 3).Draw(tt, "item"))
			qty := uint32(rapid.IntRange(0, int(cap)).Draw(tt, "qty"))
			if rapid.Bool().Draw(tt, "insert") {
				inv.Insert(item, qty, nil)
			} else {
				inv.Remove(item, qty)
			}
			for _, s := range inv.Slots() {
				require.LessOrEqual(tt, s.Qty, s.Capacity)
			}
		}
	})
}
