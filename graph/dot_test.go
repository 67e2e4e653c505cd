// Copyright 2026 The Foundryforge Authors
// This file is part of Factorial.

package graph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foundryforge/factorial/ids"
)

func TestWriteDOTIncludesNodesEdgesAndLabels(t *testing.T) {
	g := New()
	m := NewMutator()
	a := m.QueueAddNode(ids.BuildingTypeId(1))
	b := m.QueueAddNode(ids.BuildingTypeId(2))
	filter := ids.ItemTypeId(7)
	edge := m.QueueConnect(Pending(a), Pending(b), &filter)
	result := g.ApplyMutations(m)
	require.Empty(t, result.Failed)

	edgeId := result.AddedEdges[edge]
	out := WriteDOT(g, func(id ids.EdgeId) (string, bool) {
		if id == edgeId {
			return "flow", true
		}
		return "", false
	})

	require.True(t, strings.Contains(out, "digraph"))
	require.True(t, strings.Contains(out, "building 1"))
	require.True(t, strings.Contains(out, "building 2"))
	require.True(t, strings.Contains(out, "flow"))
	require.True(t, strings.Contains(out, "item 7"))
}
