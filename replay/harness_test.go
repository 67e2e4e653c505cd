// Copyright 2026 The Foundryforge Authors
// This file is part of Factorial.

package replay

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foundryforge/factorial/fixedpoint"
	"github.com/foundryforge/factorial/graph"
	"github.com/foundryforge/factorial/ids"
	"github.com/foundryforge/factorial/inventory"
	"github.com/foundryforge/factorial/processor"
	"github.com/foundryforge/factorial/sim"
	"github.com/foundryforge/factorial/transport"
)

func buildChain(e *sim.Engine) {
	a := e.QueueAddNode(ids.BuildingTypeId(1))
	b := e.QueueAddNode(ids.BuildingTypeId(2))
	filter := ids.ItemTypeId(1)
	edge := e.QueueConnect(graph.Pending(a), graph.Pending(b), &filter)
	e.Step()

	result := e.LastMutationResult()
	nodeA, nodeB := result.AddedNodes[a], result.AddedNodes[b]
	edgeId := result.AddedEdges[edge]

	e.SetProcessor(nodeA, processor.Processor{
		Kind:   processor.KindSource,
		Source: processor.Source{OutputType: 1, BaseRate: fixedpoint.FromInt64(3)},
	})
	e.SetOutputInventory(nodeA, inventory.NewInventory(1, 1000))

	e.SetProcessor(nodeB, processor.Processor{
		Kind:   processor.KindDemand,
		Demand: processor.Demand{InputType: 1, BaseRate: fixedpoint.FromInt64(3)},
	})
	e.SetInputInventory(nodeB, inventory.NewInventory(1, 1000))

	_ = e.SetTransport(edgeId, transport.Config{
		Kind: transport.KindFlow,
		Flow: transport.FlowConfig{Rate: fixedpoint.FromInt64(3), BufferCapacity: fixedpoint.FromInt64(50)},
	})
}

func TestHarnessRunNeverDivergesOnIdenticalSetup(t *testing.T) {
	h := NewHarness(sim.Strategy{Kind: sim.KindTick}, nil, nil)

	result, err := h.Run(context.Background(), 4, buildChain, 25)
	require.NoError(t, err)
	require.Equal(t, -1, result.DivergedAt)
	require.Empty(t, result.Divergences)
	require.Len(t, result.Engines, 4)
}

func TestHarnessRunDetectsDivergenceAndStopsEarly(t *testing.T) {
	h := NewHarness(sim.Strategy{Kind: sim.KindTick}, nil, nil)

	var callCount atomic.Int32
	setup := func(e *sim.Engine) {
		buildChain(e)
		if callCount.Add(1) == 2 {
			// Perturb the second engine built: a faster source throughput
			// desyncs its inventory and processor state from the rest.
			nodeIds := e.Graph().AllNodeIds()
			e.SetProcessor(nodeIds[0], processor.Processor{
				Kind:   processor.KindSource,
				Source: processor.Source{OutputType: 1, BaseRate: fixedpoint.FromInt64(9)},
			})
		}
	}

	result, err := h.Run(context.Background(), 3, setup, 25)
	require.NoError(t, err)
	require.GreaterOrEqual(t, result.DivergedAt, 0)
	require.NotEmpty(t, result.Divergences)
	// One tick from buildChain's own Step, plus DivergedAt+1 harness
	// ticks: Run stopped at the divergence instead of running all 25.
	require.Equal(t, uint64(result.DivergedAt+2), result.Engines[0].Tick())
}

func TestHarnessRunRejectsZeroEngines(t *testing.T) {
	h := NewHarness(sim.Strategy{Kind: sim.KindTick}, nil, nil)
	_, err := h.Run(context.Background(), 0, buildChain, 5)
	require.Error(t, err)
}
