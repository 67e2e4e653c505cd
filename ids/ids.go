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

// Package ids defines the opaque identity types used across the
// engine: generational keys into the production graph's arenas, and
// the dense integer handles minted by the registry.
package ids

import "fmt"

// NodeId is an opaque generational key into the node arena. It is
// stable across mutations and is only reused after its slot has been
// vacated and the generation bumped, so a stale NodeId held past a
// remove_node never silently refers to a different, later node.
type NodeId struct {
	Index      uint32
	Generation uint32
}

// EdgeId is the edge-arena equivalent of NodeId.
type EdgeId struct {
	Index      uint32
	Generation uint32
}

func (n NodeId) String() string { return fmt.Sprintf("Node(%d,g%d)", n.Index, n.Generation) }
func (e EdgeId) String() string { return fmt.Sprintf("Edge(%d,g%d)", e.Index, e.Generation) }

// Less orders ids first by index then by generation, giving the
// deterministic "ascending by generational key" tie-break used for
// topological-sort ties and cyclic-remainder ordering.
func (n NodeId) Less(o NodeId) bool {
	if n.Index != o.Index {
		return n.Index < o.Index
	}
	return n.Generation < o.Generation
}

func (e EdgeId) Less(o EdgeId) bool {
	if e.Index != o.Index {
		return e.Index < o.Index
	}
	return e.Generation < o.Generation
}

// PendingNodeId and PendingEdgeId are handles returned by queued
// mutations (graph.QueueAddNode / QueueConnect). They resolve to a
// real NodeId/EdgeId only once the batch containing them is applied;
// until then they identify the mutation itself, not a graph entity.
type PendingNodeId uint32
type PendingEdgeId uint32

// ItemTypeId, RecipeId and BuildingTypeId are dense integer handles
// into a registry.Registry. They are valid only against the registry
// that minted them — nothing prevents passing an id from one registry
// into a different one, so callers must not mix registries per engine.
type ItemTypeId uint32
type RecipeId uint32
type BuildingTypeId uint32

// PropertyId identifies a PropertyDef within an ItemTypeDef's property list.
type PropertyId uint16

// ModifierId orders Modifier values for canonicalization: modifier
// vectors are always stored and folded in ascending ModifierId order.
type ModifierId uint32
