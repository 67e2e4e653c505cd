// Copyright 2026 The Foundryforge Authors
// This file is part of Factorial.

package ids

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNodeArenaGenerationGuard(t *testing.T) {
	a := NewNodeArena[string]()
	id := a.Insert("first")
	require.True(t, a.Contains(id))

	require.True(t, a.Remove(id))
	require.False(t, a.Contains(id))

	id2 := a.Insert("second")
	require.Equal(t, id.Index, id2.Index)
	require.NotEqual(t, id.Generation, id2.Generation)
	require.False(t, a.Contains(id), "stale id must not resolve to the reused slot")

	v, ok := a.Get(id2)
	require.True(t, ok)
	require.Equal(t, "second", *v)
}

func TestNodeArenaIdsAscending(t *testing.T) {
	a := NewNodeArena[int]()
	var inserted []NodeId
	for i := 0; i < 5; i++ {
		inserted = append(inserted, a.Insert(i))
	}
	a.Remove(inserted[2])
	a.Insert(99)

	ids := a.Ids()
	for i := 1; i < len(ids); i++ {
		require.True(t, ids[i-1].Less(ids[i]) || ids[i-1] == ids[i])
	}
	require.Equal(t, 5, a.Len())
}
