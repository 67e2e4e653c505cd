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

package graph

import (
	"sort"

	"github.com/foundryforge/factorial/ids"
)

// NodeRef names either a node that already exists in the graph, or a
// node queued for addition earlier in the same batch, identified only
// by the PendingNodeId handed back from QueueAddNode. This lets a
// single pre-tick batch add two nodes and connect them together before
// either has a real NodeId.
type NodeRef struct {
	real      ids.NodeId
	pending   ids.PendingNodeId
	isPending bool
}

// Real wraps an id of a node already present in the graph.
func Real(id ids.NodeId) NodeRef { return NodeRef{real: id} }

// Pending wraps the id returned by an earlier QueueAddNode call in the
// same batch.
func Pending(id ids.PendingNodeId) NodeRef { return NodeRef{pending: id, isPending: true} }

type addNodeMutation struct {
	pendingId    ids.PendingNodeId
	buildingType ids.BuildingTypeId
}

type connectMutation struct {
	pendingId ids.PendingEdgeId
	from, to  NodeRef
	filter    *ids.ItemTypeId
}

// Mutator accumulates queued structural changes
// for a single pre-tick batch. It is not safe for concurrent use; a
// host should build one Mutator per tick and hand it to ApplyMutations.
type Mutator struct {
	nextPendingNode uint32
	nextPendingEdge uint32

	addNodes     []addNodeMutation
	removeNodes  []ids.NodeId
	connects     []connectMutation
	disconnects  []ids.EdgeId
}

// NewMutator returns an empty batch.
func NewMutator() *Mutator { return &Mutator{} }

// QueueAddNode schedules a new node of the given building type and
// returns a PendingNodeId that can be used within the same batch (via
// Pending) to connect edges to the not-yet-created node, or resolved
// to a real NodeId from MutationResult.AddedNodes after ApplyMutations.
func (m *Mutator) QueueAddNode(buildingType ids.BuildingTypeId) ids.PendingNodeId {
	id := ids.PendingNodeId(m.nextPendingNode)
	m.nextPendingNode++
	m.addNodes = append(m.addNodes, addNodeMutation{pendingId: id, buildingType: buildingType})
	return id
}

// QueueRemoveNode schedules removal of an existing node and every edge
// touching it.
func (m *Mutator) QueueRemoveNode(id ids.NodeId) {
	m.removeNodes = append(m.removeNodes, id)
}

// QueueConnect schedules a new edge between from and to, either of
// which may be Real or Pending, filtered to a single item type if
// filter is non-nil. It returns a PendingEdgeId resolvable from
// MutationResult.AddedEdges after ApplyMutations.
func (m *Mutator) QueueConnect(from, to NodeRef, filter *ids.ItemTypeId) ids.PendingEdgeId {
	id := ids.PendingEdgeId(m.nextPendingEdge)
	m.nextPendingEdge++
	m.connects = append(m.connects, connectMutation{pendingId: id, from: from, to: to, filter: filter})
	return id
}

// QueueDisconnect schedules removal of an existing edge.
func (m *Mutator) QueueDisconnect(id ids.EdgeId) {
	m.disconnects = append(m.disconnects, id)
}

func (m *Mutator) reset() {
	m.addNodes = m.addNodes[:0]
	m.removeNodes = m.removeNodes[:0]
	m.connects = m.connects[:0]
	m.disconnects = m.disconnects[:0]
	m.nextPendingNode = 0
	m.nextPendingEdge = 0
}

// FailureReason classifies why a queued mutation could not be applied.
type FailureReason uint8

const (
	ReasonEndpointMissing FailureReason = iota
	ReasonDuplicateEdge
	ReasonTargetMissing
)

// FailedMutation records one rejected queued operation.
type FailedMutation struct {
	Reason FailureReason
	Detail string
}

// MutationResult reports the outcome of ApplyMutations: the real ids
// assigned to pending adds,
// and anything that could not be applied.
type MutationResult struct {
	AddedNodes map[ids.PendingNodeId]ids.NodeId
	AddedEdges map[ids.PendingEdgeId]ids.EdgeId
	Failed     []FailedMutation
}

// ApplyMutations commits a batch in a fixed order so within-batch
// references resolve correctly: nodes are added first
// (so pending node refs become real), then edges (any endpoint still
// unresolved fails that edge only), then disconnects, then node removals
// (which cascade to remove every edge touching the removed node,
// including ones just added in this same batch). The graph's
// topological order is marked dirty if anything changed.
func (g *Graph) ApplyMutations(m *Mutator) MutationResult {
	result := MutationResult{
		AddedNodes: make(map[ids.PendingNodeId]ids.NodeId, len(m.addNodes)),
		AddedEdges: make(map[ids.PendingEdgeId]ids.EdgeId, len(m.connects)),
	}
	changed := false

	for _, a := range m.addNodes {
		id := g.nodes.Insert(Node{BuildingType: a.buildingType})
		result.AddedNodes[a.pendingId] = id
		g.dirty.Mark(id)
		changed = true
	}

	resolve := func(ref NodeRef) (ids.NodeId, bool) {
		if !ref.isPending {
			return ref.real, g.nodes.Contains(ref.real)
		}
		id, ok := result.AddedNodes[ref.pending]
		return id, ok
	}

	for _, c := range m.connects {
		from, okFrom := resolve(c.from)
		to, okTo := resolve(c.to)
		if !okFrom || !okTo {
			result.Failed = append(result.Failed, FailedMutation{
				Reason: ReasonEndpointMissing,
				Detail: "queue_connect: endpoint not present in this batch",
			})
			continue
		}
		if !g.AllowParallelEdges && g.hasEdgeBetween(from, to) {
			result.Failed = append(result.Failed, FailedMutation{
				Reason: ReasonDuplicateEdge,
				Detail: "queue_connect: parallel edges disallowed",
			})
			continue
		}
		eid := g.edges.Insert(Edge{From: from, To: to, Filter: c.filter})
		g.outAdj[from] = insertEdgeSorted(g.outAdj[from], eid)
		g.inAdj[to] = insertEdgeSorted(g.inAdj[to], eid)
		result.AddedEdges[c.pendingId] = eid
		g.dirty.Mark(from)
		g.dirty.Mark(to)
		changed = true
	}

	for _, eid := range m.disconnects {
		if g.removeEdge(eid) {
			changed = true
		} else {
			result.Failed = append(result.Failed, FailedMutation{
				Reason: ReasonTargetMissing,
				Detail: "queue_disconnect: edge already absent",
			})
		}
	}

	for _, nid := range m.removeNodes {
		if g.removeNode(nid) {
			changed = true
		} else {
			result.Failed = append(result.Failed, FailedMutation{
				Reason: ReasonTargetMissing,
				Detail: "queue_remove_node: node already absent",
			})
		}
	}

	if changed {
		g.topoDirty = true
	}
	m.reset()
	return result
}

func (g *Graph) hasEdgeBetween(from, to ids.NodeId) bool {
	for _, eid := range g.outAdj[from] {
		e, ok := g.edges.Get(eid)
		if ok && e.To == to {
			return true
		}
	}
	return false
}

func (g *Graph) removeEdge(id ids.EdgeId) bool {
	e, ok := g.edges.Get(id)
	if !ok {
		return false
	}
	from, to := e.From, e.To
	g.edges.Remove(id)
	g.outAdj[from] = removeEdgeId(g.outAdj[from], id)
	g.inAdj[to] = removeEdgeId(g.inAdj[to], id)
	g.dirty.Mark(from)
	g.dirty.Mark(to)
	return true
}

func (g *Graph) removeNode(id ids.NodeId) bool {
	if !g.nodes.Contains(id) {
		return false
	}
	for _, eid := range append([]ids.EdgeId(nil), g.outAdj[id]...) {
		g.removeEdge(eid)
	}
	for _, eid := range append([]ids.EdgeId(nil), g.inAdj[id]...) {
		g.removeEdge(eid)
	}
	delete(g.outAdj, id)
	delete(g.inAdj, id)
	g.nodes.Remove(id)
	g.dirty.Mark(id)
	return true
}

func insertEdgeSorted(list []ids.EdgeId, id ids.EdgeId) []ids.EdgeId {
	i := sort.Search(len(list), func(i int) bool { return id.Less(list[i]) })
	list = append(list, ids.EdgeId{})
	copy(list[i+1:], list[i:])
	list[i] = id
	return list
}

func removeEdgeId(list []ids.EdgeId, id ids.EdgeId) []ids.EdgeId {
	for i, e := range list {
		if e == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
