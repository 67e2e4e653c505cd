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

// Package replay drives N independent sim.Engine instances through the
// same setup and tick count concurrently, to confirm determinism or
// locate the first tick and subsystem two runs diverge at. A Harness
// runs several whole engines side by side; only concurrent access to
// one engine instance is off limits.
package replay

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/erigontech/erigon-lib/log/v3"

	"github.com/foundryforge/factorial/registry"
	"github.com/foundryforge/factorial/sim"
)

// Setup builds one engine's initial graph and component configuration.
// It must be side-effect-free beyond e itself (no shared mutable state,
// no wall-clock or randomness) so every engine a Harness builds starts
// identically — Harness calls it once per engine, concurrently.
type Setup func(e *sim.Engine)

// Harness configures how replay builds and steps each engine instance.
type Harness struct {
	Strategy sim.Strategy
	Registry *registry.Registry
	Logger   log.Logger
}

// NewHarness returns a Harness with the given tick strategy. A nil
// logger defaults to log.Root(), matching sim.New's own convention.
func NewHarness(strategy sim.Strategy, reg *registry.Registry, logger log.Logger) *Harness {
	if logger == nil {
		logger = log.Root()
	}
	return &Harness{Strategy: strategy, Registry: reg, Logger: logger}
}

// Result is what Run reports: the built engines (still live, for
// further inspection) and, if any pair diverged before `ticks` ran out,
// the first diverging tick and its Divergence detail.
type Result struct {
	Engines     []*sim.Engine
	DivergedAt  int // -1 if no divergence was observed
	Divergences []Divergence
}

// Run builds n engines via setup (run once per engine, concurrently),
// then steps all of them together for `ticks` ticks, comparing every
// engine's StateHash against engine 0's after each tick and running
// Diff on each engine whose hash differs. It
// returns as soon as any pair diverges, without running the remaining
// ticks, since nothing past the first divergence is useful for
// diagnosis.
func (h *Harness) Run(ctx context.Context, n int, setup Setup, ticks int) (*Result, error) {
	if n < 1 {
		return nil, fmt.Errorf("replay: n must be >= 1, got %d", n)
	}

	engines := make([]*sim.Engine, n)
	buildGroup, _ := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		buildGroup.Go(func() error {
			e := sim.NewWithRegistry(h.Strategy, h.Registry, h.Logger)
			setup(e)
			engines[i] = e
			return nil
		})
	}
	if err := buildGroup.Wait(); err != nil {
		return nil, fmt.Errorf("replay: build engines: %w", err)
	}

	result := &Result{Engines: engines, DivergedAt: -1}

	for tick := 0; tick < ticks; tick++ {
		stepGroup, _ := errgroup.WithContext(ctx)
		for _, e := range engines {
			e := e
			stepGroup.Go(func() error {
				e.Step()
				return nil
			})
		}
		if err := stepGroup.Wait(); err != nil {
			return nil, fmt.Errorf("replay: step tick %d: %w", tick, err)
		}

		var divergences []Divergence
		for i := 1; i < n; i++ {
			if engines[i].StateHash() == engines[0].StateHash() {
				continue
			}
			divergences = append(divergences, Diff(engines[0], engines[i])...)
		}
		if len(divergences) > 0 {
			result.DivergedAt = tick
			result.Divergences = divergences
			h.Logger.Warn("replay: engines diverged", "tick", tick, "count", len(divergences))
			return result, nil
		}
	}

	return result, nil
}
