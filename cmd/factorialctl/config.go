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
	"fmt"
	"os"

	"github.com/c2h5oh/datasize"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/foundryforge/factorial/event"
	"github.com/foundryforge/factorial/sim"
)

// estimatedEventSize is a rough per-event footprint used only to turn
// a human-written byte budget into a ring buffer slot count; it need
// not be exact, since SetCapacity just resizes the ring.
const estimatedEventSize = 64

// EngineConfig is the engine's own TOML config file: tick strategy and
// ring buffer sizing.
type EngineConfig struct {
	Strategy            string            `toml:"strategy"` // "tick" or "delta"
	FixedTimestep        float64           `toml:"fixed_timestep,omitempty"`
	EventRingBudget      datasize.ByteSize `toml:"event_ring_budget,omitempty"`
	SnapshotRingCapacity int               `toml:"snapshot_ring_capacity,omitempty"`
}

// DefaultEngineConfig matches sim's own zero-value defaults (KindTick,
// event.DefaultCapacity-sized rings) so a missing config file is a
// reasonable "just run it" default rather than an error.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Strategy:             "tick",
		SnapshotRingCapacity: 8,
	}
}

func loadEngineConfig(path string) (EngineConfig, error) {
	cfg := DefaultEngineConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return EngineConfig{}, fmt.Errorf("factorialctl: read engine config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return EngineConfig{}, fmt.Errorf("factorialctl: parse engine config %s: %w", path, err)
	}
	return cfg, nil
}

func (c EngineConfig) strategy() (sim.Strategy, error) {
	switch c.Strategy {
	case "", "tick":
		return sim.Strategy{Kind: sim.KindTick}, nil
	case "delta":
		return sim.Strategy{Kind: sim.KindDelta, FixedTimestep: c.FixedTimestep}, nil
	default:
		return sim.Strategy{}, fmt.Errorf("factorialctl: unknown strategy %q", c.Strategy)
	}
}

// applyEventRingBudget resizes every event kind's ring to the capacity
// implied by the config's byte budget, if one was set.
func (c EngineConfig) applyEventRingBudget(bus *event.Bus) {
	if c.EventRingBudget == 0 {
		return
	}
	capacity := int(uint64(c.EventRingBudget.Bytes()) / estimatedEventSize)
	if capacity < 1 {
		capacity = 1
	}
	for k := 0; k < event.NumKinds; k++ {
		bus.SetCapacity(event.Kind(k), capacity)
	}
}

// StatsConfig toggles the concrete Stats framework module.
type StatsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ModulesConfig is the YAML document configuring which framework
// modules a run registers.
type ModulesConfig struct {
	Stats StatsConfig `yaml:"stats"`
}

func DefaultModulesConfig() ModulesConfig {
	return ModulesConfig{Stats: StatsConfig{Enabled: true}}
}

func loadModulesConfig(path string) (ModulesConfig, error) {
	cfg := DefaultModulesConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ModulesConfig{}, fmt.Errorf("factorialctl: read modules config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ModulesConfig{}, fmt.Errorf("factorialctl: parse modules config %s: %w", path, err)
	}
	return cfg, nil
}
