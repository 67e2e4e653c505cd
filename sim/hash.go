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
	"encoding/binary"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/foundryforge/factorial/ids"
	"github.com/foundryforge/factorial/inventory"
)

// SubsystemHashes exposes a u64 per mutable subsystem, in the same
// canonical key-sorted order used to fold them into Engine's overall
// state hash. Desync isolation walks these before
// descending into the offending subsystem's own data.
type SubsystemHashes struct {
	Graph           uint64
	Processors      uint64
	ProcessorStates uint64
	Inventories     uint64
	Transports      uint64
	Modifiers       uint64
	SimState        uint64
	Modules         map[string]uint64
}

// StateHash returns the overall state hash last computed at
// bookkeeping time.
func (e *Engine) StateHash() uint64 { return e.stateHash }

// SubsystemHashes returns the per-subsystem breakdown last computed at
// bookkeeping time.
func (e *Engine) SubsystemHashes() SubsystemHashes { return e.subsystems }

func (e *Engine) computeSubsystemHashes() SubsystemHashes {
	nodeIds := e.graph.AllNodeIds() // already ascending generational-key order
	edgeIds := e.graph.AllEdgeIds()

	var graphHash uint64
	if e.hashesValid && e.graph.Dirty().Len() == 0 {
		// No queued mutation touched a node or edge since the last
		// bookkeeping pass, so the graph subsystem can't have changed:
		// reuse last tick's hash instead of re-walking every id.
		graphHash = e.subsystems.Graph
	} else {
		g := xxhash.New()
		for _, nid := range nodeIds {
			n, _ := e.graph.Node(nid)
			writeNodeId(g, nid)
			writeU32(g, uint32(n.BuildingType))
		}
		for _, eid := range edgeIds {
			ed, _ := e.graph.Edge(eid)
			writeEdgeId(g, eid)
			writeNodeId(g, ed.From)
			writeNodeId(g, ed.To)
			if ed.Filter != nil {
				writeU32(g, uint32(*ed.Filter)+1) // +1 so "no filter" and filter 0 hash differently
			}
		}
		graphHash = g.Sum64()
	}
	e.graph.Dirty().Clear()
	e.hashesValid = true

	procs := xxhash.New()
	states := xxhash.New()
	inventories := xxhash.New()
	modifiers := xxhash.New()
	for _, nid := range nodeIds {
		if p, ok := e.store.Processor(nid); ok {
			writeNodeId(procs, nid)
			writeU32(procs, uint32(p.Kind))
		}
		if st, ok := e.store.State(nid); ok {
			writeNodeId(states, nid)
			writeU32(states, uint32(st.Kind))
			writeU64(states, uint64(st.Progress))
		}
		if in, ok := e.store.InputInventory(nid); ok {
			writeNodeId(inventories, nid)
			hashInventorySlots(inventories, in.Slots())
		}
		if out, ok := e.store.OutputInventory(nid); ok {
			writeNodeId(inventories, nid)
			hashInventorySlots(inventories, out.Slots())
		}
		if mods := e.store.Modifiers(nid); mods != nil {
			writeNodeId(modifiers, nid)
			for _, m := range mods {
				writeU32(modifiers, uint32(m.Id))
				writeU32(modifiers, uint32(m.Kind))
				writeU32(modifiers, uint32(m.Stacking))
				writeU64(modifiers, uint64(m.Value))
			}
		}
	}

	transports := xxhash.New()
	for _, eid := range edgeIds {
		st, ok := e.transportStates[eid]
		if !ok {
			continue
		}
		writeEdgeId(transports, eid)
		writeU64(transports, uint64(st.Buffered))
		writeU64(transports, st.LatencyRemaining)
		writeU64(transports, uint64(st.Progress))
		writeU32(transports, st.Pending)
		writeU64(transports, st.Position)
		writeU32(transports, st.Cargo)
		for _, slot := range st.Slots {
			writeU32(transports, boolToU32(slot.Occupied))
			writeU32(transports, uint32(slot.Item))
		}
	}

	simState := xxhash.New()
	writeU64(simState, e.tick)

	modules := make(map[string]uint64, len(e.host.Modules()))
	for _, m := range e.host.Modules() {
		data, err := m.SerializeState()
		if err != nil {
			continue
		}
		modules[m.Name()] = xxhash.Sum64(data)
	}

	return SubsystemHashes{
		Graph:           graphHash,
		Processors:      procs.Sum64(),
		ProcessorStates: states.Sum64(),
		Inventories:     inventories.Sum64(),
		Transports:      transports.Sum64(),
		Modifiers:       modifiers.Sum64(),
		SimState:        simState.Sum64(),
		Modules:         modules,
	}
}

// foldSubsystemHashes combines every subsystem's hash into the single
// overall state hash two engines compare to detect desync. Module hashes are folded in ascending name order so the fold
// itself stays deterministic regardless of registration order.
func foldSubsystemHashes(s SubsystemHashes) uint64 {
	final := xxhash.New()
	writeU64(final, s.Graph)
	writeU64(final, s.Processors)
	writeU64(final, s.ProcessorStates)
	writeU64(final, s.Inventories)
	writeU64(final, s.Transports)
	writeU64(final, s.Modifiers)
	writeU64(final, s.SimState)

	names := make([]string, 0, len(s.Modules))
	for name := range s.Modules {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		final.Write([]byte(name))
		writeU64(final, s.Modules[name])
	}
	return final.Sum64()
}

func hashInventorySlots(h *xxhash.Digest, slots []inventory.Slot) {
	for _, s := range slots {
		writeU32(h, uint32(s.Item))
		writeU32(h, s.Qty)
		writeU32(h, s.Capacity)
		for _, pv := range s.Props {
			writeU32(h, uint32(pv.Id))
			writeU32(h, uint32(pv.Value))
		}
	}
}

func writeU32(h *xxhash.Digest, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	h.Write(b[:])
}

func writeU64(h *xxhash.Digest, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	h.Write(b[:])
}

func writeNodeId(h *xxhash.Digest, id ids.NodeId) {
	writeU32(h, id.Index)
	writeU32(h, id.Generation)
}

func writeEdgeId(h *xxhash.Digest, id ids.EdgeId) {
	writeU32(h, id.Index)
	writeU32(h, id.Generation)
}

func boolToU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
