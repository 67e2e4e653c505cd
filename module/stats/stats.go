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

// Package stats implements the Stats framework module: it observes
// core events only, maintaining per-node and per-edge lifetime
// counters. The counters are running totals since registration (or
// since LoadState); there are no time windows and no history buffers.
// It is the one framework module this repository implements
// concretely — the others are external collaborators reachable only
// through the module.Module boundary contract, so their domain content
// is out of scope here (see DESIGN.md).
package stats

import (
	"encoding/json"

	"github.com/foundryforge/factorial/event"
	"github.com/foundryforge/factorial/ids"
	"github.com/foundryforge/factorial/module"
)

// NodeStats accumulates one node's lifetime counters.
type NodeStats struct {
	Produced uint64
	Consumed uint64
	Stalls   uint64
	Uptime   uint64 // not updated by any subscribed event; holds only what LoadState restored (zero otherwise)
}

// EdgeStats accumulates one edge's lifetime counters.
type EdgeStats struct {
	Delivered uint64
	FullTicks uint64
}

// Module implements module.Module, subscribing passively to every
// core event kind it cares about and folding them into lifetime counters.
type Module struct {
	nodes map[ids.NodeId]*NodeStats
	edges map[ids.EdgeId]*EdgeStats
}

// New returns an empty Stats module, ready to register.
func New() *Module {
	return &Module{
		nodes: make(map[ids.NodeId]*NodeStats),
		edges: make(map[ids.EdgeId]*EdgeStats),
	}
}

func (m *Module) Name() string { return "stats" }

// Subscribe wires passive handlers for every event kind Stats folds
// into its counters (module.Subscriber, called once at registration).
func (m *Module) Subscribe(bus *event.Bus) {
	bus.OnPassive(event.ItemProduced, event.Post, nil, func(e event.Event) {
		m.node(e.Node).Produced += uint64(e.Qty)
	})
	bus.OnPassive(event.ItemConsumed, event.Post, nil, func(e event.Event) {
		m.node(e.Node).Consumed += uint64(e.Qty)
	})
	bus.OnPassive(event.BuildingStalled, event.Post, nil, func(e event.Event) {
		m.node(e.Node).Stalls++
	})
	bus.OnPassive(event.ItemDelivered, event.Post, nil, func(e event.Event) {
		m.edge(e.Edge).Delivered += uint64(e.Qty)
	})
	bus.OnPassive(event.TransportFull, event.Post, nil, func(e event.Event) {
		m.edge(e.Edge).FullTicks++
	})
}

// OnTick does nothing: Stats is purely reactive to events delivered in
// phase 5 of the *previous* tick plus whatever was emitted earlier in
// the current tick's phases 2-3, all folded as they arrive via Subscribe.
func (m *Module) OnTick(module.Context) {}

func (m *Module) node(id ids.NodeId) *NodeStats {
	s, ok := m.nodes[id]
	if !ok {
		s = &NodeStats{}
		m.nodes[id] = s
	}
	return s
}

func (m *Module) edge(id ids.EdgeId) *EdgeStats {
	s, ok := m.edges[id]
	if !ok {
		s = &EdgeStats{}
		m.edges[id] = s
	}
	return s
}

// Node returns a snapshot of id's counters, if any have been recorded.
func (m *Module) Node(id ids.NodeId) (NodeStats, bool) {
	s, ok := m.nodes[id]
	if !ok {
		return NodeStats{}, false
	}
	return *s, true
}

// Edge returns a snapshot of id's counters, if any have been recorded.
func (m *Module) Edge(id ids.EdgeId) (EdgeStats, bool) {
	s, ok := m.edges[id]
	if !ok {
		return EdgeStats{}, false
	}
	return *s, true
}

// TrackedNodeIds returns every node id with at least one recorded
// counter, in no particular order (callers that need a stable order,
// e.g. a CLI table, sort it themselves).
func (m *Module) TrackedNodeIds() []ids.NodeId {
	out := make([]ids.NodeId, 0, len(m.nodes))
	for id := range m.nodes {
		out = append(out, id)
	}
	return out
}

// TrackedEdgeIds returns every edge id with at least one recorded counter.
func (m *Module) TrackedEdgeIds() []ids.EdgeId {
	out := make([]ids.EdgeId, 0, len(m.edges))
	for id := range m.edges {
		out = append(out, id)
	}
	return out
}

type nodeEntry struct {
	Id    ids.NodeId `json:"id"`
	Stats NodeStats  `json:"stats"`
}

type edgeEntry struct {
	Id    ids.EdgeId `json:"id"`
	Stats EdgeStats  `json:"stats"`
}

type wireFormat struct {
	Nodes []nodeEntry `json:"nodes"`
	Edges []edgeEntry `json:"edges"`
}

// SerializeState encodes every counter as the module's own tagged
// section. JSON is used rather than the core's binary codec since
// module state is opaque to the core and this keeps the format
// trivially forward-compatible across counter additions. Ids are
// carried as their own Index/Generation fields rather than through
// String(), so LoadState recovers exact node/edge identity.
func (m *Module) SerializeState() ([]byte, error) {
	w := wireFormat{
		Nodes: make([]nodeEntry, 0, len(m.nodes)),
		Edges: make([]edgeEntry, 0, len(m.edges)),
	}
	for id, s := range m.nodes {
		w.Nodes = append(w.Nodes, nodeEntry{Id: id, Stats: *s})
	}
	for id, s := range m.edges {
		w.Edges = append(w.Edges, edgeEntry{Id: id, Stats: *s})
	}
	return json.Marshal(w)
}

// LoadState restores counters from SerializeState's output.
func (m *Module) LoadState(data []byte) error {
	var w wireFormat
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m.nodes = make(map[ids.NodeId]*NodeStats, len(w.Nodes))
	m.edges = make(map[ids.EdgeId]*EdgeStats, len(w.Edges))
	for _, e := range w.Nodes {
		s := e.Stats
		m.nodes[e.Id] = &s
	}
	for _, e := range w.Edges {
		s := e.Stats
		m.edges[e.Id] = &s
	}
	return nil
}
