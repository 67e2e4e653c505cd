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

// Package component holds the struct-of-arrays side-tables attached
// to a node by NodeId: its Processor, ProcessorState, input/output
// Inventory and Modifiers.
// It is deliberately separate from package graph: a node's topology
// and its simulation payload are different concerns with different
// lifetimes inside a tick.
package component

import (
	"github.com/foundryforge/factorial/ids"
	"github.com/foundryforge/factorial/inventory"
	"github.com/foundryforge/factorial/modifier"
	"github.com/foundryforge/factorial/processor"
)

// Store is the per-node side-table set. It is keyed by ids.NodeId
// directly (maps, not an arena) since a component store doesn't need
// generation-guarded reuse: the owning graph.Graph already guarantees
// a removed NodeId is never reissued, so a stale map entry left behind
// by a removal is simply unreachable, not dangerous.
type Store struct {
	processors map[ids.NodeId]*processor.Processor
	states     map[ids.NodeId]*processor.State
	inputs     map[ids.NodeId]*inventory.Inventory
	outputs    map[ids.NodeId]*inventory.Inventory
	modifiers  map[ids.NodeId][]modifier.Modifier
}

// NewStore returns an empty component store.
func NewStore() *Store {
	return &Store{
		processors: make(map[ids.NodeId]*processor.Processor),
		states:     make(map[ids.NodeId]*processor.State),
		inputs:     make(map[ids.NodeId]*inventory.Inventory),
		outputs:    make(map[ids.NodeId]*inventory.Inventory),
		modifiers:  make(map[ids.NodeId][]modifier.Modifier),
	}
}

// SetProcessor installs id's processor and resets its state to Idle
//.
func (s *Store) SetProcessor(id ids.NodeId, p processor.Processor) {
	s.processors[id] = &p
	st := processor.State{Kind: processor.Idle}
	s.states[id] = &st
}

func (s *Store) Processor(id ids.NodeId) (*processor.Processor, bool) {
	p, ok := s.processors[id]
	return p, ok
}

func (s *Store) State(id ids.NodeId) (*processor.State, bool) {
	st, ok := s.states[id]
	return st, ok
}

// SetInputInventory and SetOutputInventory configure a node's fixed
// slot storage.
func (s *Store) SetInputInventory(id ids.NodeId, inv *inventory.Inventory)  { s.inputs[id] = inv }
func (s *Store) SetOutputInventory(id ids.NodeId, inv *inventory.Inventory) { s.outputs[id] = inv }

func (s *Store) InputInventory(id ids.NodeId) (*inventory.Inventory, bool) {
	inv, ok := s.inputs[id]
	return inv, ok
}

func (s *Store) OutputInventory(id ids.NodeId) (*inventory.Inventory, bool) {
	inv, ok := s.outputs[id]
	return inv, ok
}

// SetModifiers replaces id's modifier vector, canonicalizing it first
// so the stored vector always satisfies I5.
func (s *Store) SetModifiers(id ids.NodeId, mods []modifier.Modifier) {
	s.modifiers[id] = modifier.Canonicalize(mods)
}

// Modifiers returns id's canonical modifier vector, or nil if none is set.
func (s *Store) Modifiers(id ids.NodeId) []modifier.Modifier { return s.modifiers[id] }

// Effective folds id's modifier vector, defaulting to the neutral
// scalars when the node carries none.
func (s *Store) Effective(id ids.NodeId) modifier.Effective {
	return modifier.Fold(s.modifiers[id])
}

// TrackedNodeIds returns every node id with at least one side-table
// entry, for callers (sim.Engine's pre-tick cascade) that need to find
// entries belonging to nodes the graph no longer has.
func (s *Store) TrackedNodeIds() []ids.NodeId {
	seen := make(map[ids.NodeId]struct{})
	for id := range s.processors {
		seen[id] = struct{}{}
	}
	for id := range s.states {
		seen[id] = struct{}{}
	}
	for id := range s.inputs {
		seen[id] = struct{}{}
	}
	for id := range s.outputs {
		seen[id] = struct{}{}
	}
	for id := range s.modifiers {
		seen[id] = struct{}{}
	}
	out := make([]ids.NodeId, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out
}

// Purge drops every side-table entry for id.
func (s *Store) Purge(id ids.NodeId) {
	delete(s.processors, id)
	delete(s.states, id)
	delete(s.inputs, id)
	delete(s.outputs, id)
	delete(s.modifiers, id)
}
