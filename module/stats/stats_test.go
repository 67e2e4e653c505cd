// Copyright 2026 The Foundryforge Authors
// This file is part of Factorial.

package stats

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foundryforge/factorial/event"
	"github.com/foundryforge/factorial/ids"
)

func TestSubscribeFoldsProducedAndConsumed(t *testing.T) {
	bus := event.NewBus()
	m := New()
	m.Subscribe(bus)

	node := ids.NodeId{Index: 3, Generation: 1}
	bus.Emit(event.Event{Kind: event.ItemProduced, Node: node, Qty: 5})
	bus.Emit(event.Event{Kind: event.ItemProduced, Node: node, Qty: 2})
	bus.Emit(event.Event{Kind: event.ItemConsumed, Node: node, Qty: 3})
	bus.Dispatch()

	s, ok := m.Node(node)
	require.True(t, ok)
	require.Equal(t, uint64(7), s.Produced)
	require.Equal(t, uint64(3), s.Consumed)
}

func TestSubscribeFoldsStallsAndDeliveries(t *testing.T) {
	bus := event.NewBus()
	m := New()
	m.Subscribe(bus)

	node := ids.NodeId{Index: 1}
	edge := ids.EdgeId{Index: 9, Generation: 2}
	bus.Emit(event.Event{Kind: event.BuildingStalled, Node: node})
	bus.Emit(event.Event{Kind: event.BuildingStalled, Node: node})
	bus.Emit(event.Event{Kind: event.ItemDelivered, Edge: edge, Qty: 4})
	bus.Emit(event.Event{Kind: event.TransportFull, Edge: edge})
	bus.Dispatch()

	ns, ok := m.Node(node)
	require.True(t, ok)
	require.Equal(t, uint64(2), ns.Stalls)

	es, ok := m.Edge(edge)
	require.True(t, ok)
	require.Equal(t, uint64(4), es.Delivered)
	require.Equal(t, uint64(1), es.FullTicks)
}

func TestSerializeStateRoundTrip(t *testing.T) {
	bus := event.NewBus()
	m := New()
	m.Subscribe(bus)

	node := ids.NodeId{Index: 42, Generation: 7}
	edge := ids.EdgeId{Index: 5, Generation: 1}
	bus.Emit(event.Event{Kind: event.ItemProduced, Node: node, Qty: 10})
	bus.Emit(event.Event{Kind: event.ItemDelivered, Edge: edge, Qty: 6})
	bus.Dispatch()

	data, err := m.SerializeState()
	require.NoError(t, err)

	loaded := New()
	require.NoError(t, loaded.LoadState(data))

	ns, ok := loaded.Node(node)
	require.True(t, ok)
	require.Equal(t, uint64(10), ns.Produced)

	es, ok := loaded.Edge(edge)
	require.True(t, ok)
	require.Equal(t, uint64(6), es.Delivered)
}

func TestNodeAndEdgeUnknownReturnsFalse(t *testing.T) {
	m := New()
	_, ok := m.Node(ids.NodeId{Index: 99})
	require.False(t, ok)
	_, ok = m.Edge(ids.EdgeId{Index: 99})
	require.False(t, ok)
}
