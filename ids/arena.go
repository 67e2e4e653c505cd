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

package ids

// NodeArena is a generational arena keyed by NodeId: a parallel-array
// store where nodes own no pointers to each other, only ids, avoiding
// the reference-cycle problems a graph's cyclic node/edge pattern would
// otherwise create.
//
// The graph stores its nodes in a NodeArena. Per-node component side
// tables (processor, state, inventories, modifiers) do not use it:
// component.Store keeps them in maps keyed by the same NodeId.
type NodeArena[T any] struct {
	slots       []slot[T]
	freeList    []uint32
	occupiedLen int
}

type slot[T any] struct {
	value      T
	generation uint32
	occupied   bool
}

// NewNodeArena returns an empty arena.
func NewNodeArena[T any]() *NodeArena[T] {
	return &NodeArena[T]{}
}

// Insert stores v and returns the NodeId that refers to it.
func (a *NodeArena[T]) Insert(v T) NodeId {
	if n := len(a.freeList); n > 0 {
		idx := a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
		a.slots[idx].value = v
		a.slots[idx].occupied = true
		a.occupiedLen++
		return NodeId{Index: idx, Generation: a.slots[idx].generation}
	}
	idx := uint32(len(a.slots))
	a.slots = append(a.slots, slot[T]{value: v, occupied: true})
	a.occupiedLen++
	return NodeId{Index: idx, Generation: 0}
}

// InsertAt places v at id's exact Index/Generation, extending the
// arena as needed and marking any newly created lower-indexed gap
// slots free. Unlike Insert, which always hands out the next free slot
// at its current generation, InsertAt lets a caller reproduce a
// specific id exactly — used only when rebuilding an arena from a
// captured snapshot, where the ids a consumer already holds must
// resolve to the same entries after the rebuild.
func (a *NodeArena[T]) InsertAt(id NodeId, v T) {
	for uint32(len(a.slots)) <= id.Index {
		a.freeList = append(a.freeList, uint32(len(a.slots)))
		a.slots = append(a.slots, slot[T]{})
	}
	if a.slots[id.Index].occupied {
		a.occupiedLen--
	} else {
		a.freeList = removeFromFreeList(a.freeList, id.Index)
	}
	a.slots[id.Index] = slot[T]{value: v, generation: id.Generation, occupied: true}
	a.occupiedLen++
}

func removeFromFreeList(list []uint32, idx uint32) []uint32 {
	for i, v := range list {
		if v == idx {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// Remove vacates id's slot and bumps its generation so any NodeId
// still referencing it is recognized as stale by Get. Returns false if
// id was already stale or never existed.
func (a *NodeArena[T]) Remove(id NodeId) bool {
	if !a.valid(id) {
		return false
	}
	var zero T
	a.slots[id.Index].value = zero
	a.slots[id.Index].occupied = false
	a.slots[id.Index].generation++
	a.freeList = append(a.freeList, id.Index)
	a.occupiedLen--
	return true
}

// Get returns a pointer to id's stored value, or (nil, false) if id is
// stale (already removed, or from a different generation) or out of range.
func (a *NodeArena[T]) Get(id NodeId) (*T, bool) {
	if !a.valid(id) {
		return nil, false
	}
	return &a.slots[id.Index].value, true
}

// Contains reports whether id currently refers to a live entry.
func (a *NodeArena[T]) Contains(id NodeId) bool {
	return a.valid(id)
}

func (a *NodeArena[T]) valid(id NodeId) bool {
	if int(id.Index) >= len(a.slots) {
		return false
	}
	s := &a.slots[id.Index]
	return s.occupied && s.generation == id.Generation
}

// Len returns the number of live entries.
func (a *NodeArena[T]) Len() int { return a.occupiedLen }

// Ids returns every live id in ascending generational-key order, the
// deterministic tie-break used throughout the package.
func (a *NodeArena[T]) Ids() []NodeId {
	out := make([]NodeId, 0, a.occupiedLen)
	for idx := range a.slots {
		if a.slots[idx].occupied {
			out = append(out, NodeId{Index: uint32(idx), Generation: a.slots[idx].generation})
		}
	}
	return out
}

// Range calls fn for every live (id, value) pair in ascending
// generational-key order, stopping early if fn returns false.
func (a *NodeArena[T]) Range(fn func(NodeId, *T) bool) {
	for idx := range a.slots {
		if !a.slots[idx].occupied {
			continue
		}
		id := NodeId{Index: uint32(idx), Generation: a.slots[idx].generation}
		if !fn(id, &a.slots[idx].value) {
			return
		}
	}
}

// EdgeArena is the EdgeId equivalent of NodeArena, kept as a distinct
// type (rather than a second type parameter on NodeArena) so the two
// id spaces can never be confused at a call site.
type EdgeArena[T any] struct {
	slots       []slot[T]
	freeList    []uint32
	occupiedLen int
}

func NewEdgeArena[T any]() *EdgeArena[T] {
	return &EdgeArena[T]{}
}

func (a *EdgeArena[T]) Insert(v T) EdgeId {
	if n := len(a.freeList); n > 0 {
		idx := a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
		a.slots[idx].value = v
		a.slots[idx].occupied = true
		a.occupiedLen++
		return EdgeId{Index: idx, Generation: a.slots[idx].generation}
	}
	idx := uint32(len(a.slots))
	a.slots = append(a.slots, slot[T]{value: v, occupied: true})
	a.occupiedLen++
	return EdgeId{Index: idx, Generation: 0}
}

// InsertAt is the EdgeArena equivalent of NodeArena.InsertAt.
func (a *EdgeArena[T]) InsertAt(id EdgeId, v T) {
	for uint32(len(a.slots)) <= id.Index {
		a.freeList = append(a.freeList, uint32(len(a.slots)))
		a.slots = append(a.slots, slot[T]{})
	}
	if a.slots[id.Index].occupied {
		a.occupiedLen--
	} else {
		a.freeList = removeFromFreeList(a.freeList, id.Index)
	}
	a.slots[id.Index] = slot[T]{value: v, generation: id.Generation, occupied: true}
	a.occupiedLen++
}

func (a *EdgeArena[T]) Remove(id EdgeId) bool {
	if !a.valid(id) {
		return false
	}
	var zero T
	a.slots[id.Index].value = zero
	a.slots[id.Index].occupied = false
	a.slots[id.Index].generation++
	a.freeList = append(a.freeList, id.Index)
	a.occupiedLen--
	return true
}

func (a *EdgeArena[T]) Get(id EdgeId) (*T, bool) {
	if !a.valid(id) {
		return nil, false
	}
	return &a.slots[id.Index].value, true
}

func (a *EdgeArena[T]) Contains(id EdgeId) bool { return a.valid(id) }

func (a *EdgeArena[T]) valid(id EdgeId) bool {
	if int(id.Index) >= len(a.slots) {
		return false
	}
	s := &a.slots[id.Index]
	return s.occupied && s.generation == id.Generation
}

func (a *EdgeArena[T]) Len() int { return a.occupiedLen }

func (a *EdgeArena[T]) Ids() []EdgeId {
	out := make([]EdgeId, 0, a.occupiedLen)
	for idx := range a.slots {
		if a.slots[idx].occupied {
			out = append(out, EdgeId{Index: uint32(idx), Generation: a.slots[idx].generation})
		}
	}
	return out
}

func (a *EdgeArena[T]) Range(fn func(EdgeId, *T) bool) {
	for idx := range a.slots {
		if !a.slots[idx].occupied {
			continue
		}
		id := EdgeId{Index: uint32(idx), Generation: a.slots[idx].generation}
		if !fn(id, &a.slots[idx].value) {
			return
		}
	}
}
