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

package sim

import (
	"github.com/foundryforge/factorial/fixedpoint"
	"github.com/foundryforge/factorial/ids"
	"github.com/foundryforge/factorial/inventory"
	"github.com/foundryforge/factorial/processor"
	"github.com/foundryforge/factorial/transport"
)

// NodeSnapshot is a read-only view of one node's simulation state,
// returned by SnapshotNode/SnapshotAllNodes.
type NodeSnapshot struct {
	Id            ids.NodeId
	BuildingType  ids.BuildingTypeId
	HasProcessor  bool
	ProcessorKind processor.Kind
	State         processor.State
	Input         []inventory.Slot
	Output        []inventory.Slot
}

// GetProcessorState exposes a node's processor state machine directly
//.
func (e *Engine) GetProcessorState(id ids.NodeId) (processor.State, bool) {
	st, ok := e.store.State(id)
	if !ok {
		return processor.State{}, false
	}
	return *st, true
}

// GetProcessorProgress is a convenience accessor over the same state
//, returned as the fixedpoint
// value already folded into State.Progress.
func (e *Engine) GetProcessorProgress(id ids.NodeId) (fixedpoint.F64, bool) {
	st, ok := e.store.State(id)
	if !ok {
		return fixedpoint.Zero, false
	}
	return st.Progress, true
}

// SnapshotNode captures id's full simulation-visible state.
func (e *Engine) SnapshotNode(id ids.NodeId) (NodeSnapshot, bool) {
	n, ok := e.graph.Node(id)
	if !ok {
		return NodeSnapshot{}, false
	}
	snap := NodeSnapshot{Id: id, BuildingType: n.BuildingType}
	if p, ok := e.store.Processor(id); ok {
		snap.HasProcessor = true
		snap.ProcessorKind = p.Kind
	}
	if st, ok := e.store.State(id); ok {
		snap.State = *st
	}
	if in, ok := e.store.InputInventory(id); ok {
		snap.Input = in.Slots()
	}
	if out, ok := e.store.OutputInventory(id); ok {
		snap.Output = out.Slots()
	}
	return snap, true
}

// SnapshotAllNodes captures every live node, in ascending
// generational-key order.
func (e *Engine) SnapshotAllNodes() []NodeSnapshot {
	allIds := e.graph.AllNodeIds()
	out := make([]NodeSnapshot, 0, len(allIds))
	for _, id := range allIds {
		snap, _ := e.SnapshotNode(id)
		out = append(out, snap)
	}
	return out
}

// SnapshotTransport returns edgeId's live transport state, if configured
//.
func (e *Engine) SnapshotTransport(edgeId ids.EdgeId) (transport.State, bool) {
	st, ok := e.transportStates[edgeId]
	if !ok {
		return transport.State{}, false
	}
	return *st, true
}

// InventoryTotal sums item across id's input and output inventories
// combined.
func (e *Engine) InventoryTotal(id ids.NodeId, item ids.ItemTypeId) uint32 {
	var total uint32
	if in, ok := e.store.InputInventory(id); ok {
		total += in.Total(item)
	}
	if out, ok := e.store.OutputInventory(id); ok {
		total += out.Total(item)
	}
	return total
}
