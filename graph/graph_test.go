// Copyright 2026 The Foundryforge Authors
// This file is part of Factorial.

package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foundryforge/factorial/ids"
)

// TestTopoOrderRespectsEdges checks that every edge's source appears
// before its destination in the cached topological order.
func TestTopoOrderRespectsEdges(t *testing.T) {
	g := New()
	m := NewMutator()
	pa := m.QueueAddNode(1)
	pb := m.QueueAddNode(1)
	pc := m.QueueAddNode(1)
	m.QueueConnect(Pending(pa), Pending(pb), nil)
	m.QueueConnect(Pending(pb), Pending(pc), nil)
	res := g.ApplyMutations(m)
	require.Empty(t, res.Failed)

	a, b, c := res.AddedNodes[pa], res.AddedNodes[pb], res.AddedNodes[pc]
	order := g.TopoOrder()
	require.Len(t, order, 3)

	pos := make(map[ids.NodeId]int, 3)
	for i, id := range order {
		pos[id] = i
	}
	require.Less(t, pos[a], pos[b])
	require.Less(t, pos[b], pos[c])
}

// TestPendingToRealBijection checks that every PendingNodeId and
// PendingEdgeId queued in a batch resolves to exactly one real id, and
// distinct pending ids never collide on the same real id.
func TestPendingToRealBijection(t *testing.T) {
	g := New()
	m := NewMutator()
	const n = 10
	pending := make([]ids.PendingNodeId, n)
	for i := 0; i < n; i++ {
		pending[i] = m.QueueAddNode(ids.BuildingTypeId(i))
	}
	res := g.ApplyMutations(m)
	require.Empty(t, res.Failed)
	require.Len(t, res.AddedNodes, n)

	seen := make(map[ids.NodeId]bool, n)
	for _, p := range pending {
		real, ok := res.AddedNodes[p]
		require.True(t, ok)
		require.False(t, seen[real], "real id reused across distinct pending ids")
		seen[real] = true
	}
}

func TestCyclicRemainderStillOrdered(t *testing.T) {
	g := New()
	m := NewMutator()
	pa := m.QueueAddNode(1)
	pb := m.QueueAddNode(1)
	m.QueueConnect(Pending(pa), Pending(pb), nil)
	m.QueueConnect(Pending(pb), Pending(pa), nil)
	res := g.ApplyMutations(m)
	require.Empty(t, res.Failed)

	order := g.TopoOrder()
	require.Len(t, order, 2)
}

func TestRemoveNodeCascadesEdges(t *testing.T) {
	g := New()
	m := NewMutator()
	pa := m.QueueAddNode(1)
	pb := m.QueueAddNode(1)
	m.QueueConnect(Pending(pa), Pending(pb), nil)
	res := g.ApplyMutations(m)
	a := res.AddedNodes[pa]

	m2 := NewMutator()
	m2.QueueRemoveNode(a)
	res2 := g.ApplyMutations(m2)
	require.Empty(t, res2.Failed)
	require.Equal(t, 1, g.NodeCount())
	require.Equal(t, 0, g.EdgeCount())
}

func TestQueueConnectUnresolvedPendingFails(t *testing.T) {
	g := New()
	m := NewMutator()
	pa := m.QueueAddNode(1)
	bogus := ids.PendingNodeId(999)
	m.QueueConnect(Pending(pa), Pending(bogus), nil)
	res := g.ApplyMutations(m)
	require.Len(t, res.Failed, 1)
	require.Equal(t, ReasonEndpointMissing, res.Failed[0].Reason)
}

func TestDirtySetMarksTouchedNodes(t *testing.T) {
	g := New()
	require.Equal(t, 0, g.Dirty().Len())

	m := NewMutator()
	pa := m.QueueAddNode(1)
	pb := m.QueueAddNode(1)
	m.QueueConnect(Pending(pa), Pending(pb), nil)
	res := g.ApplyMutations(m)
	a, b := res.AddedNodes[pa], res.AddedNodes[pb]

	require.Equal(t, 2, g.Dirty().Len())
	require.True(t, g.Dirty().IsDirty(a))
	require.True(t, g.Dirty().IsDirty(b))

	g.Dirty().Clear()
	require.Equal(t, 0, g.Dirty().Len())
	require.False(t, g.Dirty().IsDirty(a))

	m2 := NewMutator()
	m2.QueueRemoveNode(a)
	g.ApplyMutations(m2)
	require.True(t, g.Dirty().IsDirty(a))
}
