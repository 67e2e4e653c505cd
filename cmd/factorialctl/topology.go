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

	"github.com/pelletier/go-toml/v2"

	"github.com/foundryforge/factorial/fixedpoint"
	"github.com/foundryforge/factorial/graph"
	"github.com/foundryforge/factorial/ids"
	"github.com/foundryforge/factorial/inventory"
	"github.com/foundryforge/factorial/processor"
	"github.com/foundryforge/factorial/registry"
	"github.com/foundryforge/factorial/sim"
	"github.com/foundryforge/factorial/transport"
)

// ProcessorDoc configures one node's processor. Only the fields its
// Kind consults are meaningful, mirroring processor.Processor's own
// tagged-union discipline.
type ProcessorDoc struct {
	Kind           string  `toml:"kind"` // "source", "fixed", "demand", "passthrough"
	Item           string  `toml:"item,omitempty"`
	Recipe         string  `toml:"recipe,omitempty"`
	Rate           float64 `toml:"rate,omitempty"`
	InputCapacity  uint32  `toml:"input_capacity,omitempty"`
	OutputCapacity uint32  `toml:"output_capacity,omitempty"`
}

// NodeDoc is one node in a hand-written topology file. Id is a local
// name used only to wire edges within the same file; it has no
// relation to the ids.NodeId the engine assigns.
type NodeDoc struct {
	Id        string        `toml:"id"`
	Building  string        `toml:"building,omitempty"`
	Processor *ProcessorDoc `toml:"processor,omitempty"`
}

// TransportDoc configures one edge's transport. Only the fields
// matching Kind are meaningful.
type TransportDoc struct {
	Kind           string  `toml:"kind"` // "flow" or "item"
	Rate           float64 `toml:"rate,omitempty"`
	BufferCapacity float64 `toml:"buffer_capacity,omitempty"`
	Latency        uint64  `toml:"latency,omitempty"`
	Speed          float64 `toml:"speed,omitempty"`
	SlotCount      uint32  `toml:"slot_count,omitempty"`
	Lanes          uint8   `toml:"lanes,omitempty"`
}

// EdgeDoc connects two NodeDoc.Id values.
type EdgeDoc struct {
	From      string       `toml:"from"`
	To        string       `toml:"to"`
	Filter    string       `toml:"filter,omitempty"`
	Transport TransportDoc `toml:"transport"`
}

// TopologyDoc is a hand-written production graph: nodes with their
// processor configuration and edges with their transport
// configuration, all name-addressed against a registry.Registry.
type TopologyDoc struct {
	Nodes []NodeDoc `toml:"nodes"`
	Edges []EdgeDoc `toml:"edges"`
}

func loadTopology(path string) (*TopologyDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("factorialctl: read topology %s: %w", path, err)
	}
	var doc TopologyDoc
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("factorialctl: parse topology %s: %w", path, err)
	}
	return &doc, nil
}

// buildEngine constructs a fresh engine from doc against reg.
func buildEngine(reg *registry.Registry, doc *TopologyDoc, strategy sim.Strategy) (*sim.Engine, error) {
	e := sim.NewWithRegistry(strategy, reg, nil)
	if err := applyTopology(e, reg, doc); err != nil {
		return nil, err
	}
	return e, nil
}

// applyTopology queues every node and edge in doc against an
// already-constructed engine in one mutation batch (mirroring the
// engine's own queue-then-apply protocol), then configures processors,
// inventories and transports against the resolved ids. It is shared by
// buildEngine and replay's per-engine Setup, since each harness-built
// engine needs the same topology applied independently.
func applyTopology(e *sim.Engine, reg *registry.Registry, doc *TopologyDoc) error {
	pendingNodes := make(map[string]ids.PendingNodeId, len(doc.Nodes))
	for _, n := range doc.Nodes {
		buildingType := ids.BuildingTypeId(0)
		if n.Building != "" {
			bt, ok := reg.BuildingIdByName(n.Building)
			if !ok {
				return fmt.Errorf("factorialctl: node %q: unknown building %q", n.Id, n.Building)
			}
			buildingType = bt
		}
		pendingNodes[n.Id] = e.QueueAddNode(buildingType)
	}

	pendingEdges := make(map[int]ids.PendingEdgeId, len(doc.Edges))
	for i, ed := range doc.Edges {
		from, ok := pendingNodes[ed.From]
		if !ok {
			return fmt.Errorf("factorialctl: edge %d: unknown node %q", i, ed.From)
		}
		to, ok := pendingNodes[ed.To]
		if !ok {
			return fmt.Errorf("factorialctl: edge %d: unknown node %q", i, ed.To)
		}
		var filter *ids.ItemTypeId
		if ed.Filter != "" {
			id, ok := reg.ItemIdByName(ed.Filter)
			if !ok {
				return fmt.Errorf("factorialctl: edge %d: unknown item %q", i, ed.Filter)
			}
			filter = &id
		}
		pendingEdges[i] = e.QueueConnect(graph.Pending(from), graph.Pending(to), filter)
	}

	e.Step()
	result := e.LastMutationResult()
	if len(result.Failed) > 0 {
		return fmt.Errorf("factorialctl: %d mutation(s) rejected building topology", len(result.Failed))
	}

	nodeIds := make(map[string]ids.NodeId, len(pendingNodes))
	for name, pending := range pendingNodes {
		nodeIds[name] = result.AddedNodes[pending]
	}

	for _, n := range doc.Nodes {
		if n.Processor == nil {
			continue
		}
		nodeId := nodeIds[n.Id]
		p, inCap, outCap, err := resolveProcessor(reg, *n.Processor)
		if err != nil {
			return fmt.Errorf("factorialctl: node %q: %w", n.Id, err)
		}
		e.SetProcessor(nodeId, p)
		if inCap > 0 {
			e.SetInputInventory(nodeId, inventory.NewInventory(1, inCap))
		}
		if outCap > 0 {
			e.SetOutputInventory(nodeId, inventory.NewInventory(1, outCap))
		}
	}

	for i, ed := range doc.Edges {
		edgeId := result.AddedEdges[pendingEdges[i]]
		cfg, err := resolveTransport(ed.Transport)
		if err != nil {
			return fmt.Errorf("factorialctl: edge %d: %w", i, err)
		}
		if err := e.SetTransport(edgeId, cfg); err != nil {
			return fmt.Errorf("factorialctl: edge %d: set transport: %w", i, err)
		}
	}

	return nil
}

func resolveProcessor(reg *registry.Registry, doc ProcessorDoc) (p processor.Processor, inCap, outCap uint32, err error) {
	switch doc.Kind {
	case "source":
		item, ok := reg.ItemIdByName(doc.Item)
		if !ok {
			return p, 0, 0, fmt.Errorf("unknown item %q", doc.Item)
		}
		p = processor.Processor{
			Kind:   processor.KindSource,
			Source: processor.Source{OutputType: item, BaseRate: fixedpoint.FromFloat64(doc.Rate)},
		}
		outCap = doc.OutputCapacity
	case "demand":
		item, ok := reg.ItemIdByName(doc.Item)
		if !ok {
			return p, 0, 0, fmt.Errorf("unknown item %q", doc.Item)
		}
		p = processor.Processor{
			Kind:   processor.KindDemand,
			Demand: processor.Demand{InputType: item, BaseRate: fixedpoint.FromFloat64(doc.Rate)},
		}
		inCap = doc.InputCapacity
	case "fixed":
		recipeId, ok := reg.RecipeIdByName(doc.Recipe)
		if !ok {
			return p, 0, 0, fmt.Errorf("unknown recipe %q", doc.Recipe)
		}
		recipe, _ := reg.Recipe(recipeId)
		p = processor.Processor{
			Kind: processor.KindFixed,
			Fixed: processor.Fixed{
				Inputs:   convertItemQtys(recipe.Inputs),
				Outputs:  convertItemQtys(recipe.Outputs),
				Duration: recipe.Duration,
			},
		}
		inCap, outCap = doc.InputCapacity, doc.OutputCapacity
	case "passthrough":
		p = processor.Processor{Kind: processor.KindPassthrough}
		inCap, outCap = doc.InputCapacity, doc.OutputCapacity
	default:
		return p, 0, 0, fmt.Errorf("unknown processor kind %q", doc.Kind)
	}
	return p, inCap, outCap, nil
}

func convertItemQtys(in []registry.ItemQty) []processor.ItemQty {
	out := make([]processor.ItemQty, len(in))
	for i, q := range in {
		out[i] = processor.ItemQty{Item: q.Item, Qty: q.Qty}
	}
	return out
}

func resolveTransport(doc TransportDoc) (transport.Config, error) {
	switch doc.Kind {
	case "", "flow":
		return transport.Config{
			Kind: transport.KindFlow,
			Flow: transport.FlowConfig{
				Rate:           fixedpoint.FromFloat64(doc.Rate),
				BufferCapacity: fixedpoint.FromFloat64(doc.BufferCapacity),
				Latency:        doc.Latency,
			},
		}, nil
	case "item":
		return transport.Config{
			Kind: transport.KindItem,
			Item: transport.ItemConfig{
				Speed:     fixedpoint.FromFloat64(doc.Speed),
				SlotCount: doc.SlotCount,
				Lanes:     doc.Lanes,
			},
		}, nil
	default:
		return transport.Config{}, fmt.Errorf("unknown transport kind %q", doc.Kind)
	}
}
