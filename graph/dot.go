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
	"fmt"

	"github.com/emicklei/dot"

	"github.com/foundryforge/factorial/ids"
)

// EdgeLabeler returns the label WriteDOT attaches to one edge, e.g.
// its transport kind. Graph itself carries no transport state, so
// callers that want that detail pass a closure over whatever owns it
// (typically sim.Engine.TransportConfig).
type EdgeLabeler func(id ids.EdgeId) (label string, ok bool)

// WriteDOT renders g as a Graphviz DOT document: one node per live
// node, labeled with its building type, and one directed edge per
// live edge, labeled by label if it reports one. This is a read-only
// debug export — it never runs on the tick path and doesn't mutate g.
func WriteDOT(g *Graph, label EdgeLabeler) string {
	gv := dot.NewGraph(dot.Directed)
	gv.Attr("rankdir", "LR")

	nodes := make(map[ids.NodeId]dot.Node, g.NodeCount())
	for _, nid := range g.AllNodeIds() {
		n, _ := g.Node(nid)
		gn := gv.Node(nodeDotId(nid))
		gn.Attr("label", fmt.Sprintf("building %d\n(%s)", n.BuildingType, nid))
		nodes[nid] = gn
	}

	for _, eid := range g.AllEdgeIds() {
		ed, _ := g.Edge(eid)
		from, okFrom := nodes[ed.From]
		to, okTo := nodes[ed.To]
		if !okFrom || !okTo {
			continue
		}
		edge := gv.Edge(from, to)
		if label != nil {
			if l, ok := label(eid); ok {
				edge.Attr("label", l)
			}
		}
		if ed.Filter != nil {
			edge.Attr("xlabel", fmt.Sprintf("item %d", *ed.Filter))
		}
	}

	return gv.String()
}

func nodeDotId(id ids.NodeId) string {
	return fmt.Sprintf("n%d_%d", id.Index, id.Generation)
}
