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

package main

import (
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"

	statsmod "github.com/foundryforge/factorial/module/stats"
)

func renderStatsTables(w io.Writer, m *statsmod.Module) {
	nodeIds := m.TrackedNodeIds()
	sort.Slice(nodeIds, func(i, j int) bool { return nodeIds[i].Less(nodeIds[j]) })

	nodeTable := table.NewWriter()
	nodeTable.SetOutputMirror(w)
	nodeTable.AppendHeader(table.Row{"Node", "Produced", "Consumed", "Stalls", "Uptime"})
	for _, id := range nodeIds {
		s, _ := m.Node(id)
		nodeTable.AppendRow(table.Row{id.String(), s.Produced, s.Consumed, s.Stalls, s.Uptime})
	}
	nodeTable.Render()

	edgeIds := m.TrackedEdgeIds()
	sort.Slice(edgeIds, func(i, j int) bool { return edgeIds[i].Less(edgeIds[j]) })

	edgeTable := table.NewWriter()
	edgeTable.SetOutputMirror(w)
	edgeTable.AppendHeader(table.Row{"Edge", "Delivered", "FullTicks"})
	for _, id := range edgeIds {
		s, _ := m.Edge(id)
		edgeTable.AppendRow(table.Row{id.String(), s.Delivered, s.FullTicks})
	}
	edgeTable.Render()
}
