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

// Package graph implements the production graph: nodes and edges
// stored in generational arenas,
// adjacency lists, a cached topological order, and the queued mutation
// protocol that is the only way the graph's structure ever changes
//.
package graph

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/foundryforge/factorial/ids"
)

// Node is the graph-level payload of a node. The simulation-side
// per-node state (processor, inventories, modifiers) lives in package
// component, keyed by the same NodeId — a separate struct-of-arrays
// layer.
type Node struct {
	BuildingType ids.BuildingTypeId
}

// Edge is the graph-level payload of an edge. Transport configuration
// and state live in package transport, keyed by the same EdgeId.
type Edge struct {
	From, To ids.NodeId
	Filter   *ids.ItemTypeId
}

// Graph owns the node and edge arenas and their adjacency. Nothing
// outside Graph holds an owning reference to a Node or Edge; everyone
// else refers to them by id.
type Graph struct {
	nodes *ids.NodeArena[Node]
	edges *ids.EdgeArena[Edge]

	outAdj map[ids.NodeId][]ids.EdgeId
	inAdj  map[ids.NodeId][]ids.EdgeId

	topoOrder []ids.NodeId
	topoDirty bool

	dirty *DirtySet

	// AllowParallelEdges controls whether queue_connect accepts a
	// second edge between the same (from,to) pair. Factorial permits
	// parallel edges by default (DESIGN.md), so this defaults to true.
	AllowParallelEdges bool
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes:              ids.NewNodeArena[Node](),
		edges:              ids.NewEdgeArena[Edge](),
		outAdj:             make(map[ids.NodeId][]ids.EdgeId),
		inAdj:              make(map[ids.NodeId][]ids.EdgeId),
		topoDirty:          true,
		dirty:              NewDirtySet(),
		AllowParallelEdges: true,
	}
}

func (g *Graph) NodeCount() int { return g.nodes.Len() }
func (g *Graph) EdgeCount() int { return g.edges.Len() }

func (g *Graph) Node(id ids.NodeId) (Node, bool) {
	n, ok := g.nodes.Get(id)
	if !ok {
		return Node{}, false
	}
	return *n, true
}

func (g *Graph) Edge(id ids.EdgeId) (Edge, bool) {
	e, ok := g.edges.Get(id)
	if !ok {
		return Edge{}, false
	}
	return *e, true
}

func (g *Graph) HasNode(id ids.NodeId) bool { return g.nodes.Contains(id) }
func (g *Graph) HasEdge(id ids.EdgeId) bool { return g.edges.Contains(id) }

// OutEdges returns id's outgoing edge ids in ascending generational-key order.
func (g *Graph) OutEdges(id ids.NodeId) []ids.EdgeId {
	return append([]ids.EdgeId(nil), g.outAdj[id]...)
}

// InEdges returns id's incoming edge ids in ascending generational-key order.
func (g *Graph) InEdges(id ids.NodeId) []ids.EdgeId {
	return append([]ids.EdgeId(nil), g.inAdj[id]...)
}

// AllNodeIds returns every live node id in ascending generational-key order.
func (g *Graph) AllNodeIds() []ids.NodeId { return g.nodes.Ids() }

// AllEdgeIds returns every live edge id in ascending generational-key order.
func (g *Graph) AllEdgeIds() []ids.EdgeId { return g.edges.Ids() }

// RestoreNode places n at exactly id (Index and Generation both),
// bypassing the queued mutation protocol. Used only when rebuilding a
// graph from a captured snapshot, so the restored node's id matches
// the id held by the snapshot's own component/transport records — and
// so a subsequent StateHash is computed over the same ids the original
// engine held, not freshly reassigned ones.
func (g *Graph) RestoreNode(id ids.NodeId, n Node) {
	g.nodes.InsertAt(id, n)
	g.dirty.Mark(id)
	g.topoDirty = true
}

// RestoreEdge is the RestoreNode equivalent for edges; from/to must
// already have been restored via RestoreNode.
func (g *Graph) RestoreEdge(id ids.EdgeId, e Edge) {
	g.edges.InsertAt(id, e)
	g.outAdj[e.From] = insertEdgeSorted(g.outAdj[e.From], id)
	g.inAdj[e.To] = insertEdgeSorted(g.inAdj[e.To], id)
	g.dirty.Mark(e.From)
	g.dirty.Mark(e.To)
	g.topoDirty = true
}

// TopoDirty reports whether the cached topological order needs recomputation.
func (g *Graph) TopoDirty() bool { return g.topoDirty }

// TopoOrder returns the cached topological order, recomputing it first
// if dirty. Cycles are permitted: nodes that can't be placed
// by Kahn's algorithm are appended, in ascending generational-key
// order, after the acyclic prefix, so cyclic sub-networks still execute.
func (g *Graph) TopoOrder() []ids.NodeId {
	if g.topoDirty {
		g.recomputeTopoOrder()
	}
	return g.topoOrder
}

func (g *Graph) recomputeTopoOrder() {
	nodeIds := g.nodes.Ids() // already ascending generational-key order
	inDegree := make(map[ids.NodeId]int, len(nodeIds))
	for _, id := range nodeIds {
		inDegree[id] = len(g.inAdj[id])
	}

	// deterministic tie-break: process the ready set in ascending
	// generational-key order every round, rather than FIFO queue order.
	remaining := make(map[ids.NodeId]bool, len(nodeIds))
	for _, id := range nodeIds {
		remaining[id] = true
	}

	order := make([]ids.NodeId, 0, len(nodeIds))
	for len(remaining) > 0 {
		ready := make([]ids.NodeId, 0)
		for _, id := range nodeIds {
			if remaining[id] && inDegree[id] == 0 {
				ready = append(ready, id)
			}
		}
		if len(ready) == 0 {
			break // remainder forms one or more cycles
		}
		sort.Slice(ready, func(i, j int) bool { return ready[i].Less(ready[j]) })
		for _, id := range ready {
			order = append(order, id)
			delete(remaining, id)
			for _, eid := range g.outAdj[id] {
				e, ok := g.edges.Get(eid)
				if !ok {
					continue
				}
				if remaining[e.To] {
					inDegree[e.To]--
				}
			}
		}
	}

	// append cyclic remainder in ascending generational-key order
	var rest []ids.NodeId
	for _, id := range nodeIds {
		if remaining[id] {
			rest = append(rest, id)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].Less(rest[j]) })
	order = append(order, rest...)

	g.topoOrder = order
	g.topoDirty = false
}

// DirtySet tracks node indices changed since it was last cleared (sim's
// bookkeeping phase clears it after computing the graph hash), backed
// by a roaring bitmap: a compact, fast-iterating set over a dense
// integer domain. The event bus does not use it; its suppression is a
// plain bool per ring.
type DirtySet struct{ bm *roaring.Bitmap }

func NewDirtySet() *DirtySet { return &DirtySet{bm: roaring.New()} }

func (d *DirtySet) Mark(id ids.NodeId)    { d.bm.Add(id.Index) }
func (d *DirtySet) Clear()                { d.bm.Clear() }
func (d *DirtySet) IsDirty(id ids.NodeId) bool { return d.bm.Contains(id.Index) }
func (d *DirtySet) Len() int              { return int(d.bm.GetCardinality()) }

// Dirty exposes the graph's dirty-node tracker, marked whenever a mutation touches a node.
func (g *Graph) Dirty() *DirtySet { return g.dirty }
