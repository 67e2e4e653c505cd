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

package replay

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-test/deep"

	"github.com/foundryforge/factorial/inventory"
	"github.com/foundryforge/factorial/serialize"
	"github.com/foundryforge/factorial/sim"
)

// deepDetail formats a best-effort field-level diff for the fallback
// case where a subsystem's hash differs but none of the positional
// comparisons above found the offending entry — e.g. a hash collision
// candidate, or a field the positional check doesn't compare yet.
func deepDetail(a, b any) string {
	if d := deep.Equal(a, b); len(d) > 0 {
		return strings.Join(d, "; ")
	}
	return "hash differed but no field-level difference found"
}

// Divergence reports one subsystem-level mismatch between two engines,
// descended to the first offending node or edge where the subsystem
// permits it.
type Divergence struct {
	Subsystem  string
	NodeOrEdge string // formatted id, empty if the subsystem has no single offending entry
	Detail     string
}

// Diff walks a and b's subsystem hashes in the same fixed order
// sim.Engine folds them in, and descends into the first subsystem that
// differs to name the first diverging node or edge. It stops at the
// first differing subsystem: once one subsystem disagrees, later ones
// are likely to cascade from it and add noise rather than signal.
func Diff(a, b *sim.Engine) []Divergence {
	ah, bh := a.SubsystemHashes(), b.SubsystemHashes()

	type subsystem struct {
		name     string
		ah, bh   uint64
		describe func() []Divergence
	}
	snapA, snapB := serialize.Capture(a), serialize.Capture(b)

	subsystems := []subsystem{
		{"graph", ah.Graph, bh.Graph, func() []Divergence { return diffGraph(snapA, snapB) }},
		{"processors", ah.Processors, bh.Processors, func() []Divergence { return diffProcessors(snapA, snapB) }},
		{"processor_states", ah.ProcessorStates, bh.ProcessorStates, func() []Divergence { return diffProcessorStates(snapA, snapB) }},
		{"inventories", ah.Inventories, bh.Inventories, func() []Divergence { return diffInventories(snapA, snapB) }},
		{"transports", ah.Transports, bh.Transports, func() []Divergence { return diffTransports(snapA, snapB) }},
		{"modifiers", ah.Modifiers, bh.Modifiers, func() []Divergence { return diffModifiers(snapA, snapB) }},
		{"sim_state", ah.SimState, bh.SimState, func() []Divergence {
			return []Divergence{{Subsystem: "sim_state", Detail: fmt.Sprintf("tick %d vs %d", a.Tick(), b.Tick())}}
		}},
	}

	for _, s := range subsystems {
		if s.ah != s.bh {
			return s.describe()
		}
	}

	if len(ah.Modules) != len(bh.Modules) {
		return []Divergence{{Subsystem: "modules", Detail: "module set differs between engines"}}
	}
	names := make([]string, 0, len(ah.Modules))
	for name := range ah.Modules {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if ah.Modules[name] != bh.Modules[name] {
			return []Divergence{{Subsystem: "modules", NodeOrEdge: name, Detail: "module state hash differs"}}
		}
	}

	return nil
}

func diffGraph(a, b *serialize.Snapshot) []Divergence {
	n := len(a.Graph.Nodes)
	if len(b.Graph.Nodes) < n {
		n = len(b.Graph.Nodes)
	}
	for i := 0; i < n; i++ {
		if a.Graph.Nodes[i] != b.Graph.Nodes[i] {
			return []Divergence{{Subsystem: "graph", NodeOrEdge: fmt.Sprintf("node[%d]", i), Detail: "building type or id differs"}}
		}
	}
	if len(a.Graph.Nodes) != len(b.Graph.Nodes) {
		return []Divergence{{Subsystem: "graph", Detail: "node count differs"}}
	}
	m := len(a.Graph.Edges)
	if len(b.Graph.Edges) < m {
		m = len(b.Graph.Edges)
	}
	for i := 0; i < m; i++ {
		if !edgeRecordEqual(a.Graph.Edges[i], b.Graph.Edges[i]) {
			return []Divergence{{Subsystem: "graph", NodeOrEdge: fmt.Sprintf("edge[%d]", i), Detail: "topology differs"}}
		}
	}
	if len(a.Graph.Edges) != len(b.Graph.Edges) {
		return []Divergence{{Subsystem: "graph", Detail: "edge count differs"}}
	}
	return []Divergence{{Subsystem: "graph", Detail: deepDetail(a.Graph, b.Graph)}}
}

func edgeRecordEqual(a, b serialize.EdgeRecord) bool {
	if a.From != b.From || a.To != b.To {
		return false
	}
	if (a.Filter == nil) != (b.Filter == nil) {
		return false
	}
	return a.Filter == nil || *a.Filter == *b.Filter
}

func diffProcessors(a, b *serialize.Snapshot) []Divergence {
	n := minLen(len(a.Components), len(b.Components))
	for i := 0; i < n; i++ {
		ca, cb := a.Components[i], b.Components[i]
		if ca.HasProcessor != cb.HasProcessor || ca.Processor.Kind != cb.Processor.Kind {
			return []Divergence{{Subsystem: "processors", NodeOrEdge: fmt.Sprintf("node[%d]", i), Detail: "processor kind differs"}}
		}
	}
	return []Divergence{{Subsystem: "processors", Detail: deepDetail(a.Components, b.Components)}}
}

func diffProcessorStates(a, b *serialize.Snapshot) []Divergence {
	n := minLen(len(a.Components), len(b.Components))
	for i := 0; i < n; i++ {
		ca, cb := a.Components[i], b.Components[i]
		if ca.State.Kind != cb.State.Kind || ca.State.Progress != cb.State.Progress || ca.State.Reason != cb.State.Reason {
			return []Divergence{{Subsystem: "processor_states", NodeOrEdge: fmt.Sprintf("node[%d]", i), Detail: "processor state differs"}}
		}
	}
	return []Divergence{{Subsystem: "processor_states", Detail: deepDetail(a.Components, b.Components)}}
}

func diffInventories(a, b *serialize.Snapshot) []Divergence {
	n := minLen(len(a.Components), len(b.Components))
	for i := 0; i < n; i++ {
		ca, cb := a.Components[i], b.Components[i]
		if !slotsEqual(ca.Input, cb.Input) {
			return []Divergence{{Subsystem: "inventories", NodeOrEdge: fmt.Sprintf("node[%d].input", i), Detail: "input slots differ"}}
		}
		if !slotsEqual(ca.Output, cb.Output) {
			return []Divergence{{Subsystem: "inventories", NodeOrEdge: fmt.Sprintf("node[%d].output", i), Detail: "output slots differ"}}
		}
	}
	return []Divergence{{Subsystem: "inventories", Detail: deepDetail(a.Components, b.Components)}}
}

func slotsEqual(a, b []inventory.Slot) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Item != b[i].Item || a[i].Qty != b[i].Qty || a[i].Capacity != b[i].Capacity {
			return false
		}
		if !a[i].Props.Equal(b[i].Props) {
			return false
		}
	}
	return true
}

func diffTransports(a, b *serialize.Snapshot) []Divergence {
	n := minLen(len(a.Transports), len(b.Transports))
	for i := 0; i < n; i++ {
		ta, tb := a.Transports[i], b.Transports[i]
		if ta.Config.Kind != tb.Config.Kind || ta.State.Buffered != tb.State.Buffered ||
			ta.State.Progress != tb.State.Progress || ta.State.Position != tb.State.Position ||
			ta.State.Cargo != tb.State.Cargo || ta.State.Pending != tb.State.Pending {
			return []Divergence{{Subsystem: "transports", NodeOrEdge: fmt.Sprintf("edge[%d]", i), Detail: "transport state differs"}}
		}
	}
	return []Divergence{{Subsystem: "transports", Detail: deepDetail(a.Transports, b.Transports)}}
}

func diffModifiers(a, b *serialize.Snapshot) []Divergence {
	n := minLen(len(a.Components), len(b.Components))
	for i := 0; i < n; i++ {
		ca, cb := a.Components[i], b.Components[i]
		if len(ca.Modifiers) != len(cb.Modifiers) {
			return []Divergence{{Subsystem: "modifiers", NodeOrEdge: fmt.Sprintf("node[%d]", i), Detail: "modifier count differs"}}
		}
		for j := range ca.Modifiers {
			if ca.Modifiers[j] != cb.Modifiers[j] {
				return []Divergence{{Subsystem: "modifiers", NodeOrEdge: fmt.Sprintf("node[%d].modifier[%d]", i, j), Detail: "modifier value differs"}}
			}
		}
	}
	return []Divergence{{Subsystem: "modifiers", Detail: deepDetail(a.Components, b.Components)}}
}

func minLen(a, b int) int {
	if a < b {
		return a
	}
	return b
}
