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

// Package inventory implements the slot-based storage attached to
// every node's input and output side. A slot holds at
// most one item type, a quantity, a per-stack capacity and — for
// stateful items — a property payload.
package inventory

import (
	"sort"

	"github.com/foundryforge/factorial/fixedpoint"
	"github.com/foundryforge/factorial/ids"
)

// PropertyValue is one property-id/value pair carried by a unit of a
// stateful item.
type PropertyValue struct {
	Id    ids.PropertyId
	Value fixedpoint.F32
}

// PropertyPayload is the full property tuple of a stateful item's
// unit. It is always kept sorted by ascending PropertyId so two
// payloads built from the same values in different orders compare equal.
type PropertyPayload []PropertyValue

// NewPropertyPayload builds a canonicalized payload from arbitrary-order input.
func NewPropertyPayload(values ...PropertyValue) PropertyPayload {
	p := append(PropertyPayload(nil), values...)
	sort.Slice(p, func(i, j int) bool { return p[i].Id < p[j].Id })
	return p
}

// Equal reports whether two payloads carry the same property values.
func (p PropertyPayload) Equal(o PropertyPayload) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// Slot holds at most one item type. An Item value of zero with Qty
// zero marks an empty slot (item id 0 is reserved — registries must
// not assign meaningful content to item id 0 if empty-slot detection
// matters to them; engines track emptiness via Qty==0 regardless).
type Slot struct {
	Item     ids.ItemTypeId
	Qty      uint32
	Capacity uint32
	Props    PropertyPayload // nil for fungible items
	empty    bool
}

func (s *Slot) isEmpty() bool { return s.empty || s.Qty == 0 }

// Inventory is a fixed sequence of slots configured by the host via
// NewInventory.
// Unlike a dynamically-growing container, the slot count is fixed at
// configuration time: a node's capacity is a property the host chose
// when placing the building, not something the simulation grows on demand.
type Inventory struct {
	slots []Slot
}

// NewInventory allocates numSlots empty slots, each with the given
// per-stack capacity.
func NewInventory(numSlots int, slotCapacity uint32) *Inventory {
	slots := make([]Slot, numSlots)
	for i := range slots {
		slots[i] = Slot{Capacity: slotCapacity, empty: true}
	}
	return &Inventory{slots: slots}
}

// Slots returns the live slot contents, for snapshotting.
func (inv *Inventory) Slots() []Slot { return inv.slots }

// SetSlots replaces the slot contents wholesale (used by
// set_input_inventory/set_output_inventory and by deserialization).
func (inv *Inventory) SetSlots(slots []Slot) { inv.slots = slots }

// Total sums the quantity of item across every slot, irrespective of
// property payload differences between stateful slots of the same item type.
func (inv *Inventory) Total(item ids.ItemTypeId) uint32 {
	var total uint32
	for i := range inv.slots {
		s := &inv.slots[i]
		if !s.isEmpty() && s.Item == item {
			total += s.Qty
		}
	}
	return total
}

// CanAccept reports whether qty units of item (with the given property
// payload, nil for fungible items) could be inserted without loss.
func (inv *Inventory) CanAccept(item ids.ItemTypeId, qty uint32, props PropertyPayload) bool {
	remaining := qty
	for i := range inv.slots {
		s := &inv.slots[i]
		if s.isEmpty() {
			remaining -= min32(remaining, s.Capacity)
		} else if s.Item == item && propsMatch(s.Props, props) {
			room := s.Capacity - s.Qty
			remaining -= min32(remaining, room)
		}
		if remaining == 0 {
			return true
		}
	}
	return remaining == 0
}

// Insert places up to qty units of item into the inventory's slots,
// preferring to fill an existing matching slot before claiming an
// empty one. It returns the quantity actually taken, which may be less
// than qty if no slot had room.
//
// Stateful items (props != nil) occupy one slot per distinct property
// tuple: a slot only matches if its
// existing payload is Equal to props.
func (inv *Inventory) Insert(item ids.ItemTypeId, qty uint32, props PropertyPayload) uint32 {
	var taken uint32
	remaining := qty

	// first pass: top up matching non-empty slots
	for i := range inv.slots {
		if remaining == 0 {
			break
		}
		s := &inv.slots[i]
		if s.isEmpty() || s.Item != item || !propsMatch(s.Props, props) {
			continue
		}
		room := s.Capacity - s.Qty
		take := min32(remaining, room)
		s.Qty += take
		remaining -= take
		taken += take
	}
	// second pass: claim empty slots
	for i := range inv.slots {
		if remaining == 0 {
			break
		}
		s := &inv.slots[i]
		if !s.isEmpty() {
			continue
		}
		take := min32(remaining, s.Capacity)
		if take == 0 {
			continue
		}
		s.empty = false
		s.Item = item
		s.Props = props
		s.Qty = take
		remaining -= take
		taken += take
	}
	return taken
}

// CanRemove reports whether qty units of item are available across all
// matching slots combined.
func (inv *Inventory) CanRemove(item ids.ItemTypeId, qty uint32) bool {
	return inv.Total(item) >= qty
}

// Remove takes up to qty units of item from matching slots, in slot
// order, vacating any slot it empties. Returns the quantity actually given.
func (inv *Inventory) Remove(item ids.ItemTypeId, qty uint32) uint32 {
	var given uint32
	remaining := qty
	for i := range inv.slots {
		if remaining == 0 {
			break
		}
		s := &inv.slots[i]
		if s.isEmpty() || s.Item != item {
			continue
		}
		take := min32(remaining, s.Qty)
		s.Qty -= take
		remaining -= take
		given += take
		if s.Qty == 0 {
			*s = Slot{Capacity: s.Capacity, empty: true}
		}
	}
	return given
}

// PeekOne reports the property payload RemoveOne would return for item,
// without removing it. Used to check whether a downstream insert would
// succeed before committing to the removal.
func (inv *Inventory) PeekOne(item ids.ItemTypeId) (PropertyPayload, bool) {
	for i := range inv.slots {
		s := &inv.slots[i]
		if s.isEmpty() || s.Item != item {
			continue
		}
		return s.Props, true
	}
	return nil, false
}

// RemoveOne removes a single unit of item from the first matching
// slot and returns its property payload (nil for fungible items). Used
// by per-unit movement: transports and the Property/Passthrough processors.
func (inv *Inventory) RemoveOne(item ids.ItemTypeId) (PropertyPayload, bool) {
	for i := range inv.slots {
		s := &inv.slots[i]
		if s.isEmpty() || s.Item != item {
			continue
		}
		props := s.Props
		s.Qty--
		if s.Qty == 0 {
			*s = Slot{Capacity: s.Capacity, empty: true}
		}
		return props, true
	}
	return nil, false
}

// RemoveAny removes a single unit of whatever item occupies the first
// non-empty slot, used by belt/vehicle transports that pick up
// whatever is waiting rather than a specific type.
func (inv *Inventory) RemoveAny() (ids.ItemTypeId, PropertyPayload, bool) {
	for i := range inv.slots {
		s := &inv.slots[i]
		if s.isEmpty() {
			continue
		}
		item, props := s.Item, s.Props
		s.Qty--
		if s.Qty == 0 {
			*s = Slot{Capacity: s.Capacity, empty: true}
		}
		return item, props, true
	}
	return 0, nil, false
}

func propsMatch(a, b PropertyPayload) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.Equal(b)
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}
