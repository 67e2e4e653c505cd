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

package serialize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/foundryforge/factorial/graph"
	"github.com/foundryforge/factorial/ids"
	"github.com/foundryforge/factorial/inventory"
	"github.com/foundryforge/factorial/modifier"
	"github.com/foundryforge/factorial/processor"
	"github.com/foundryforge/factorial/sim"
	"github.com/foundryforge/factorial/transport"
)

// NodeRecord is one node's topology-level payload.
type NodeRecord struct {
	Id           ids.NodeId         `json:"id"`
	BuildingType ids.BuildingTypeId `json:"building_type"`
}

// EdgeRecord is one edge's topology-level payload.
type EdgeRecord struct {
	Id     ids.EdgeId      `json:"id"`
	From   ids.NodeId      `json:"from"`
	To     ids.NodeId      `json:"to"`
	Filter *ids.ItemTypeId `json:"filter,omitempty"`
}

// GraphRecord is the full production graph's topology, in ascending
// generational-key order.
type GraphRecord struct {
	Nodes []NodeRecord `json:"nodes"`
	Edges []EdgeRecord `json:"edges"`
}

// ComponentRecord carries one node's full component-store payload:
// processor, processor state, both inventories and modifier vector.
// Every field is the zero value (and its Has flag false) when the
// node carries nothing in that side-table.
type ComponentRecord struct {
	Node         ids.NodeId          `json:"node"`
	HasProcessor bool                `json:"has_processor,omitempty"`
	Processor    processor.Processor `json:"processor,omitempty"`
	State        processor.State     `json:"state,omitempty"`
	HasInput     bool                `json:"has_input,omitempty"`
	Input        []inventory.Slot    `json:"input,omitempty"`
	HasOutput    bool                `json:"has_output,omitempty"`
	Output       []inventory.Slot    `json:"output,omitempty"`
	Modifiers    []modifier.Modifier `json:"modifiers,omitempty"`
}

// TransportRecord carries one edge's transport configuration and
// state together, since State alone (unlike Inventory) can't be
// reconstructed without its Config (NewState needs Kind and, for
// Item transports, slot geometry).
type TransportRecord struct {
	Edge   ids.EdgeId       `json:"edge"`
	Config transport.Config `json:"config"`
	State  transport.State  `json:"state"`
}

// Snapshot is one tick's complete, self-contained engine state. It is the unit the snapshot ring stores and WriteTo/ReadSnapshot
// serialize.
type Snapshot struct {
	Tick       uint64
	Graph      GraphRecord
	Components []ComponentRecord
	Transports []TransportRecord
	Modules    map[string][]byte // module name -> its own SerializeState() bytes
}

// Capture reads every mutable subsystem off a live engine into a
// self-contained Snapshot, in the same canonical ascending-id order
// sim.Engine's own state hash uses.
func Capture(e *sim.Engine) *Snapshot {
	g := e.Graph()
	nodeIds := g.AllNodeIds()
	edgeIds := g.AllEdgeIds()

	snap := &Snapshot{
		Tick:    e.Tick(),
		Modules: make(map[string][]byte, len(e.Modules())),
	}

	snap.Graph.Nodes = make([]NodeRecord, 0, len(nodeIds))
	for _, nid := range nodeIds {
		n, _ := g.Node(nid)
		snap.Graph.Nodes = append(snap.Graph.Nodes, NodeRecord{Id: nid, BuildingType: n.BuildingType})
	}
	snap.Graph.Edges = make([]EdgeRecord, 0, len(edgeIds))
	for _, eid := range edgeIds {
		ed, _ := g.Edge(eid)
		snap.Graph.Edges = append(snap.Graph.Edges, EdgeRecord{Id: eid, From: ed.From, To: ed.To, Filter: ed.Filter})
	}

	store := e.Store()
	snap.Components = make([]ComponentRecord, 0, len(nodeIds))
	for _, nid := range nodeIds {
		rec := ComponentRecord{Node: nid}
		if p, ok := store.Processor(nid); ok {
			rec.HasProcessor = true
			rec.Processor = *p
		}
		if st, ok := store.State(nid); ok {
			rec.State = *st
		}
		if in, ok := store.InputInventory(nid); ok {
			rec.HasInput = true
			rec.Input = append([]inventory.Slot(nil), in.Slots()...)
		}
		if out, ok := store.OutputInventory(nid); ok {
			rec.HasOutput = true
			rec.Output = append([]inventory.Slot(nil), out.Slots()...)
		}
		rec.Modifiers = store.Modifiers(nid)
		snap.Components = append(snap.Components, rec)
	}

	snap.Transports = make([]TransportRecord, 0, len(edgeIds))
	for _, eid := range edgeIds {
		cfg, ok := e.TransportConfig(eid)
		if !ok {
			continue
		}
		st, _ := e.SnapshotTransport(eid)
		snap.Transports = append(snap.Transports, TransportRecord{Edge: eid, Config: cfg, State: st})
	}

	for _, m := range e.Modules() {
		data, err := m.SerializeState()
		if err != nil {
			continue
		}
		snap.Modules[m.Name()] = data
	}

	return snap
}

// WriteTo writes the snapshot as a versioned envelope: header, then
// graph/components/transports/sim_state sections, then one
// "module:<name>" section per captured module.
func (s *Snapshot) WriteTo(w io.Writer) error {
	if err := writeHeader(w, s.Tick); err != nil {
		return fmt.Errorf("serialize: write header: %w", err)
	}

	graphData, err := json.Marshal(s.Graph)
	if err != nil {
		return fmt.Errorf("serialize: marshal graph section: %w", err)
	}
	if err := writeSection(w, sectionGraph, graphData); err != nil {
		return err
	}

	componentsData, err := json.Marshal(s.Components)
	if err != nil {
		return fmt.Errorf("serialize: marshal components section: %w", err)
	}
	if err := writeSection(w, sectionComponents, componentsData); err != nil {
		return err
	}

	transportsData, err := json.Marshal(s.Transports)
	if err != nil {
		return fmt.Errorf("serialize: marshal transports section: %w", err)
	}
	if err := writeSection(w, sectionTransports, transportsData); err != nil {
		return err
	}

	if err := writeSection(w, sectionSimState, nil); err != nil {
		return err
	}

	names := make([]string, 0, len(s.Modules))
	for name := range s.Modules {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writeSection(w, moduleSectionTag+name, s.Modules[name]); err != nil {
			return err
		}
	}
	return nil
}

// ReadSnapshot decodes a Snapshot previously written by WriteTo,
// applying any registered migrations needed to reach schemaVersion,
// and rejecting a bad magic number, unknown version, or section that
// runs past the available input.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	tick, version, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	sections := make(map[string][]byte)
	var order []string
	for {
		name, payload, err := readSection(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		sections[name] = payload
		order = append(order, name)
	}

	if version < schemaVersion {
		if err := applyMigrations(version, sections); err != nil {
			return nil, fmt.Errorf("serialize: migrate from version %d: %w", version, err)
		}
	}

	snap := &Snapshot{Tick: tick, Modules: make(map[string][]byte)}
	if data, ok := sections[sectionGraph]; ok {
		if err := json.Unmarshal(data, &snap.Graph); err != nil {
			return nil, fmt.Errorf("serialize: decode graph section: %w", err)
		}
	}
	if data, ok := sections[sectionComponents]; ok {
		if err := json.Unmarshal(data, &snap.Components); err != nil {
			return nil, fmt.Errorf("serialize: decode components section: %w", err)
		}
	}
	if data, ok := sections[sectionTransports]; ok {
		if err := json.Unmarshal(data, &snap.Transports); err != nil {
			return nil, fmt.Errorf("serialize: decode transports section: %w", err)
		}
	}
	for _, name := range order {
		if tag, found := strings.CutPrefix(name, moduleSectionTag); found {
			snap.Modules[tag] = sections[name]
		}
	}

	return snap, nil
}

// Marshal is a convenience wrapper returning the envelope as bytes
// rather than requiring a caller-supplied io.Writer.
func (s *Snapshot) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if err := s.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Restore rebuilds e's graph, component and transport state from the
// snapshot. Unlike the ordinary queued mutation protocol
// (graph.Graph.ApplyMutations), which always hands out the next free
// slot, Restore places each node and edge at exactly the id the
// snapshot recorded via graph.Graph.RestoreNode/RestoreEdge — so a
// freshly restored engine's StateHash, which folds in each live id's
// raw Index/Generation, reproduces the original engine's StateHash
// exactly, not just its ContentHash. e must be empty (a fresh
// sim.New/NewWithRegistry) — Restore does not purge any pre-existing
// graph content first, and does not run a phase 3/4/5 pass over the
// rehydrated state.
func (s *Snapshot) Restore(e *sim.Engine) error {
	g := e.Graph()
	for _, n := range s.Graph.Nodes {
		g.RestoreNode(n.Id, graph.Node{BuildingType: n.BuildingType})
	}
	for _, ed := range s.Graph.Edges {
		g.RestoreEdge(ed.Id, graph.Edge{From: ed.From, To: ed.To, Filter: ed.Filter})
	}

	for _, rec := range s.Components {
		nid := rec.Node
		if rec.HasProcessor {
			e.SetProcessor(nid, rec.Processor)
		}
		if rec.HasInput {
			// slotCapacity 0 is a placeholder: SetSlots below replaces
			// the whole slice, carrying each slot's own Capacity along.
			inv := inventory.NewInventory(len(rec.Input), 0)
			inv.SetSlots(append([]inventory.Slot(nil), rec.Input...))
			e.SetInputInventory(nid, inv)
		}
		if rec.HasOutput {
			inv := inventory.NewInventory(len(rec.Output), 0)
			inv.SetSlots(append([]inventory.Slot(nil), rec.Output...))
			e.SetOutputInventory(nid, inv)
		}
		if len(rec.Modifiers) > 0 {
			e.SetModifiers(nid, rec.Modifiers)
		}
		if rec.HasProcessor {
			if st, ok := e.Store().State(nid); ok {
				*st = rec.State
			}
		}
	}

	for _, rec := range s.Transports {
		eid := rec.Edge
		if err := e.SetTransport(eid, rec.Config); err != nil {
			return fmt.Errorf("serialize: restore transport %s: %w", eid, err)
		}
		e.RestoreTransportState(eid, rec.State)
	}

	for _, m := range e.Modules() {
		data, ok := s.Modules[m.Name()]
		if !ok {
			continue
		}
		if err := m.LoadState(data); err != nil {
			return fmt.Errorf("serialize: restore module %q: %w", m.Name(), err)
		}
	}

	e.SetTick(s.Tick)
	return nil
}

// ContentHash hashes the snapshot by topological position rather than
// raw id (unlike sim.Engine.StateHash, which folds in each NodeId's
// raw Index/Generation): two snapshots built from independently
// constructed but topologically and behaviorally identical engines
// hash equal here even when their ids were assigned through different
// histories of churn: the goal is detecting behavioral divergence, not
// renumbering.
func ContentHash(s *Snapshot) uint64 {
	h := xxhash.New()

	nodePos := make(map[ids.NodeId]int, len(s.Graph.Nodes))
	for i, n := range s.Graph.Nodes {
		nodePos[n.Id] = i
		writeU32(h, uint32(i))
		writeU32(h, uint32(n.BuildingType))
	}
	edgePos := make(map[ids.EdgeId]int, len(s.Graph.Edges))
	for i, ed := range s.Graph.Edges {
		edgePos[ed.Id] = i
		writeU32(h, uint32(nodePos[ed.From]))
		writeU32(h, uint32(nodePos[ed.To]))
		if ed.Filter != nil {
			writeU32(h, uint32(*ed.Filter)+1)
		}
	}

	for _, rec := range s.Components {
		writeU32(h, uint32(nodePos[rec.Node]))
		writeU32(h, boolToU32(rec.HasProcessor))
		writeU32(h, uint32(rec.Processor.Kind))
		writeU32(h, uint32(rec.State.Kind))
		writeU64(h, uint64(rec.State.Progress))
		for _, slot := range rec.Input {
			writeU32(h, uint32(slot.Item))
			writeU32(h, slot.Qty)
		}
		for _, slot := range rec.Output {
			writeU32(h, uint32(slot.Item))
			writeU32(h, slot.Qty)
		}
		for _, m := range rec.Modifiers {
			writeU32(h, uint32(m.Kind))
			writeU32(h, uint32(m.Stacking))
			writeU64(h, uint64(m.Value))
		}
	}

	for _, rec := range s.Transports {
		writeU32(h, uint32(edgePos[rec.Edge]))
		writeU32(h, uint32(rec.Config.Kind))
		writeU64(h, uint64(rec.State.Buffered))
		writeU64(h, rec.State.LatencyRemaining)
		writeU64(h, uint64(rec.State.Progress))
		writeU32(h, rec.State.Pending)
		writeU64(h, rec.State.Position)
		writeU32(h, rec.State.Cargo)
		for _, slot := range rec.State.Slots {
			writeU32(h, boolToU32(slot.Occupied))
			writeU32(h, uint32(slot.Item))
		}
	}

	names := make([]string, 0, len(s.Modules))
	for name := range s.Modules {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		h.Write([]byte(name))
		h.Write(s.Modules[name])
	}

	return h.Sum64()
}
