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

// Package sim owns the tick loop: Engine wires together graph, component,
// transport and event state and drives them through six phases
// (pre-tick, transport, process, component, post-tick, bookkeeping).
// Engine implements module.Context itself so module.Host never needs
// to know about Engine's concrete shape.
package sim

import (
	"fmt"

	"github.com/erigontech/erigon-lib/log/v3"

	"github.com/foundryforge/factorial/component"
	"github.com/foundryforge/factorial/event"
	"github.com/foundryforge/factorial/graph"
	"github.com/foundryforge/factorial/ids"
	"github.com/foundryforge/factorial/inventory"
	"github.com/foundryforge/factorial/modifier"
	"github.com/foundryforge/factorial/module"
	"github.com/foundryforge/factorial/processor"
	"github.com/foundryforge/factorial/registry"
	"github.com/foundryforge/factorial/transport"
)

// Strategy selects how Advance divides real time into whole ticks
//.
type Strategy struct {
	// Kind discriminates: KindTick runs exactly one tick per Advance
	// call and ignores its dt argument entirely;
	// KindDelta accumulates dt against FixedTimestep.
	Kind          StrategyKind
	FixedTimestep float64 // seconds, KindDelta only
}

type StrategyKind uint8

const (
	KindTick StrategyKind = iota
	KindDelta
)

// Engine is the simulation core. It is not safe for concurrent use
//: the embedder serializes access externally if needed.
type Engine struct {
	graph    *graph.Graph
	store    *component.Store
	registry *registry.Registry
	bus      *event.Bus
	host     *module.Host
	logger   log.Logger

	strategy Strategy
	dtAccum  float64

	transportConfigs map[ids.EdgeId]*transport.Config
	transportStates  map[ids.EdgeId]*transport.State

	hostMutator     *graph.Mutator
	pendingReactive []event.Mutation
	lastMutation    graph.MutationResult

	tick        uint64
	stateHash   uint64
	subsystems  SubsystemHashes
	hashesValid bool
}

// New returns an engine with an empty graph and no content registry
//).
func New(strategy Strategy, logger log.Logger) *Engine {
	return NewWithRegistry(strategy, nil, logger)
}

// NewWithRegistry returns an engine bound to reg, which is consulted
// only by host code (recipe/item name lookups); the tick loop itself
// never reaches into reg.
func NewWithRegistry(strategy Strategy, reg *registry.Registry, logger log.Logger) *Engine {
	if logger == nil {
		logger = log.Root()
	}
	return &Engine{
		graph:            graph.New(),
		store:            component.NewStore(),
		registry:         reg,
		bus:              event.NewBus(),
		host:             module.NewHost(),
		logger:           logger,
		strategy:         strategy,
		transportConfigs: make(map[ids.EdgeId]*transport.Config),
		transportStates:  make(map[ids.EdgeId]*transport.State),
		hostMutator:      graph.NewMutator(),
	}
}

// Accessors satisfying module.Context plus direct host use.
func (e *Engine) Tick() uint64            { return e.tick }
func (e *Engine) Graph() *graph.Graph     { return e.graph }
func (e *Engine) Store() *component.Store { return e.store }
func (e *Engine) Events() *event.Bus      { return e.bus }
func (e *Engine) Registry() *registry.Registry { return e.registry }
func (e *Engine) Logger() log.Logger      { return e.logger }

// Enqueue records a mutation a module's OnTick wants applied next
// tick's pre-tick phase (module.Context; modules never apply mutations
// directly).
func (e *Engine) Enqueue(m event.Mutation) {
	e.pendingReactive = append(e.pendingReactive, m)
}

// RegisterModule adds m to the host, wiring its event subscriptions
// immediately if it implements module.Subscriber.
func (e *Engine) RegisterModule(m module.Module) error {
	return e.host.Register(m, e.bus)
}

// FindModule is the runtime downcast affordance host code uses to get
// a concrete module type back from the generic Module interface.
func FindModule[T module.Module](e *Engine) (T, bool) {
	return module.FindByType[T](e.host)
}

// QueueAddNode, QueueRemoveNode, QueueConnect and QueueDisconnect
// accumulate structural changes applied at the start of the next
// Step call.
func (e *Engine) QueueAddNode(bt ids.BuildingTypeId) ids.PendingNodeId {
	return e.hostMutator.QueueAddNode(bt)
}
func (e *Engine) QueueRemoveNode(id ids.NodeId) { e.hostMutator.QueueRemoveNode(id) }
func (e *Engine) QueueConnect(from, to graph.NodeRef, filter *ids.ItemTypeId) ids.PendingEdgeId {
	return e.hostMutator.QueueConnect(from, to, filter)
}
func (e *Engine) QueueDisconnect(id ids.EdgeId) { e.hostMutator.QueueDisconnect(id) }

// SetProcessor, SetTransport, SetInputInventory, SetOutputInventory
// and SetModifiers are the host-facing configuration calls.
// SetTransport rejects an invalid config (e.g. a zero-travel-time
// Vehicle) without installing it.
func (e *Engine) SetTransport(edgeId ids.EdgeId, cfg transport.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("sim: set_transport %s: %w", edgeId, err)
	}
	c := cfg
	e.transportConfigs[edgeId] = &c
	e.transportStates[edgeId] = transport.NewState(c)
	return nil
}

// TransportConfig returns edgeId's configured transport, if any (used
// by package serialize to capture a snapshot alongside SnapshotTransport's
// state half).
func (e *Engine) TransportConfig(edgeId ids.EdgeId) (transport.Config, bool) {
	cfg, ok := e.transportConfigs[edgeId]
	if !ok {
		return transport.Config{}, false
	}
	return *cfg, true
}

// Modules returns every registered module in registration order (used
// by package serialize to capture and restore per-module state).
func (e *Engine) Modules() []module.Module { return e.host.Modules() }

// RestoreTransportState overwrites edgeId's live transport state in
// place, leaving its configuration untouched. SetTransport must have
// already installed a matching Config (package serialize's restore
// path always calls SetTransport first, since Config, unlike State, is
// not something a fresh NewState call can reconstruct).
func (e *Engine) RestoreTransportState(edgeId ids.EdgeId, st transport.State) bool {
	cur, ok := e.transportStates[edgeId]
	if !ok {
		return false
	}
	*cur = st
	return true
}

// SetTick forces the tick counter, used only by package serialize when
// restoring a snapshot — never by host code driving a live engine.
func (e *Engine) SetTick(t uint64) { e.tick = t }

func (e *Engine) SetProcessor(id ids.NodeId, p processor.Processor) { e.store.SetProcessor(id, p) }
func (e *Engine) SetInputInventory(id ids.NodeId, inv *inventory.Inventory) {
	e.store.SetInputInventory(id, inv)
}
func (e *Engine) SetOutputInventory(id ids.NodeId, inv *inventory.Inventory) {
	e.store.SetOutputInventory(id, inv)
}
func (e *Engine) SetModifiers(id ids.NodeId, mods []modifier.Modifier) {
	e.store.SetModifiers(id, mods)
}

// LastMutationResult reports the outcome of the most recent pre-tick
// mutation application.
func (e *Engine) LastMutationResult() graph.MutationResult { return e.lastMutation }

// NodeCount and EdgeCount are direct passthroughs.
func (e *Engine) NodeCount() int { return e.graph.NodeCount() }
func (e *Engine) EdgeCount() int { return e.graph.EdgeCount() }

// Step runs exactly one tick through the six phases.
func (e *Engine) Step() {
	e.preTick()
	e.transportPhase()
	e.processPhase()
	e.componentPhase()
	e.postTick()
	e.bookkeeping()
}

// Advance accumulates dt against the engine's fixed timestep (KindDelta
// strategy) and runs as many whole ticks as the accumulator allows,
// carrying the fractional residue forward).
// Under KindTick, dt is ignored and exactly one tick runs, matching
// "Tick (1 unit per step)".
func (e *Engine) Advance(dt float64) {
	if e.strategy.Kind == KindTick {
		e.Step()
		return
	}
	step := e.strategy.FixedTimestep
	if step <= 0 {
		return
	}
	e.dtAccum += dt
	for e.dtAccum >= step {
		e.Step()
		e.dtAccum -= step
	}
}

func (e *Engine) preTick() {
	e.lastMutation = graph.MutationResult{
		AddedNodes: make(map[ids.PendingNodeId]ids.NodeId),
		AddedEdges: make(map[ids.PendingEdgeId]ids.EdgeId),
	}

	result := e.graph.ApplyMutations(e.hostMutator)
	e.mergeMutationResult(&result)

	if len(e.pendingReactive) > 0 {
		reactive := graph.NewMutator()
		for _, m := range e.pendingReactive {
			translateMutation(m, reactive)
		}
		e.pendingReactive = e.pendingReactive[:0]
		reactiveResult := e.graph.ApplyMutations(reactive)
		e.mergeMutationResult(&reactiveResult)
	}

	e.purgeRemovedComponents()
}

// mergeMutationResult folds a batch's outcome into lastMutation so a
// host inspecting it after Step sees everything this tick's pre-tick
// phase applied, across both the host-queued and reactive batches.
func (e *Engine) mergeMutationResult(r *graph.MutationResult) {
	for k, v := range r.AddedNodes {
		e.lastMutation.AddedNodes[k] = v
	}
	for k, v := range r.AddedEdges {
		e.lastMutation.AddedEdges[k] = v
	}
	e.lastMutation.Failed = append(e.lastMutation.Failed, r.Failed...)
}

// purgeRemovedComponents drops component/transport state for any node
// or edge no longer present in the graph.
// Iterating every tracked key is acceptable here since removals are
// comparatively rare next to steady-state ticking.
func (e *Engine) purgeRemovedComponents() {
	for eid := range e.transportConfigs {
		if !e.graph.HasEdge(eid) {
			delete(e.transportConfigs, eid)
			delete(e.transportStates, eid)
		}
	}
	for _, nid := range e.store.TrackedNodeIds() {
		if !e.graph.HasNode(nid) {
			e.store.Purge(nid)
		}
	}
}

// transportPhase runs phase 2, grouping edges by Kind so all edges of
// one variant tick together.
func (e *Engine) transportPhase() {
	groups := map[transport.Kind][]ids.EdgeId{}
	for _, eid := range e.graph.AllEdgeIds() {
		cfg, ok := e.transportConfigs[eid]
		if !ok {
			continue
		}
		groups[cfg.Kind] = append(groups[cfg.Kind], eid)
	}
	for _, kind := range []transport.Kind{transport.KindFlow, transport.KindItem, transport.KindBatch, transport.KindVehicle} {
		for _, eid := range groups[kind] {
			e.tickTransport(eid)
		}
	}
}

func (e *Engine) tickTransport(eid ids.EdgeId) {
	edge, ok := e.graph.Edge(eid)
	if !ok {
		return
	}
	cfg := e.transportConfigs[eid]
	st := e.transportStates[eid]
	src, okSrc := e.store.OutputInventory(edge.From)
	dst, okDst := e.store.InputInventory(edge.To)
	if !okSrc || !okDst {
		return
	}
	evs := transport.Tick(eid, cfg, st, src, dst, edge.Filter, e.tick)
	for _, ev := range evs {
		e.bus.Emit(ev)
	}
}

// processPhase runs phase 3: every node's processor ticks in
// topological order.
func (e *Engine) processPhase() {
	for _, nid := range e.graph.TopoOrder() {
		p, ok := e.store.Processor(nid)
		if !ok {
			continue
		}
		st, _ := e.store.State(nid)
		in, _ := e.store.InputInventory(nid)
		out, _ := e.store.OutputInventory(nid)
		eff := e.store.Effective(nid)
		evs := processor.Tick(nid, p, st, in, out, eff, e.tick)
		for _, ev := range evs {
			e.bus.Emit(ev)
		}
	}
}

// componentPhase runs phase 4: every registered module ticks in
// registration order.
func (e *Engine) componentPhase() {
	e.host.Dispatch(e)
}

// postTick runs phase 5: drain every ring and deliver to subscribers;
// mutations reactive handlers return are held for next tick's
// pre-tick, never applied now.
func (e *Engine) postTick() {
	mutations := e.bus.Dispatch()
	e.pendingReactive = append(e.pendingReactive, mutations...)
}

// bookkeeping runs phase 6: advance the tick counter and refresh the
// state hash.
func (e *Engine) bookkeeping() {
	e.tick++
	e.subsystems = e.computeSubsystemHashes()
	e.stateHash = foldSubsystemHashes(e.subsystems)
}

func translateMutation(m event.Mutation, out *graph.Mutator) {
	switch m.Kind {
	case event.MutationAddNode:
		out.QueueAddNode(m.BuildingType)
	case event.MutationRemoveNode:
		out.QueueRemoveNode(m.Node)
	case event.MutationConnect:
		out.QueueConnect(graph.Real(m.From), graph.Real(m.To), m.Filter)
	case event.MutationDisconnect:
		out.QueueDisconnect(m.Edge)
	}
}
