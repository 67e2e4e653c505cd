// Copyright 2026 The Foundryforge Authors
// This file is part of Factorial.

package replay

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foundryforge/factorial/fixedpoint"
	"github.com/foundryforge/factorial/processor"
	"github.com/foundryforge/factorial/sim"
)

func TestDiffReportsNoDivergenceForIdenticalEngines(t *testing.T) {
	a := sim.New(sim.Strategy{Kind: sim.KindTick}, nil)
	b := sim.New(sim.Strategy{Kind: sim.KindTick}, nil)
	buildChain(a)
	buildChain(b)
	for i := 0; i < 10; i++ {
		a.Step()
		b.Step()
	}

	require.Empty(t, Diff(a, b))
}

func TestDiffLocatesProcessorMismatch(t *testing.T) {
	a := sim.New(sim.Strategy{Kind: sim.KindTick}, nil)
	b := sim.New(sim.Strategy{Kind: sim.KindTick}, nil)
	buildChain(a)
	buildChain(b)

	bNodes := b.Graph().AllNodeIds()
	b.SetProcessor(bNodes[0], processor.Processor{
		Kind:   processor.KindSource,
		Source: processor.Source{OutputType: 1, BaseRate: fixedpoint.FromInt64(9)},
	})

	for i := 0; i < 10; i++ {
		a.Step()
		b.Step()
	}

	divs := Diff(a, b)
	require.NotEmpty(t, divs)
}
