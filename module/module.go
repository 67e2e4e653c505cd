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

// Package module defines the host-module contract: the
// interface a framework module (Power, Fluid, Tech-Tree, Logic,
// Spatial, Stats) implements to tick alongside the core and
// participate in serialization, and the Host that dispatches to every
// registered module in registration order.
//
// module deliberately depends only on graph/component/event, never on
// package sim: sim implements Context and owns the Host, so a module
// can read core state without sim needing to know about any particular
// module's shape.
package module

import (
	"fmt"

	"github.com/foundryforge/factorial/component"
	"github.com/foundryforge/factorial/event"
	"github.com/foundryforge/factorial/graph"
)

// Context is the read/mutate surface a module's OnTick receives. A
// module may read graph and component state and its own already-
// emitted events, and may enqueue mutations for the next tick, but
// must never call graph.Graph.ApplyMutations itself.
type Context interface {
	Tick() uint64
	Graph() *graph.Graph
	Store() *component.Store
	Events() *event.Bus
	Enqueue(m event.Mutation)
}

// Module is a registered subsystem ticking in phase 4.
type Module interface {
	Name() string
	OnTick(ctx Context)
	SerializeState() ([]byte, error)
	LoadState([]byte) error
}

// Subscriber is an optional capability a Module implements when it
// wants to register event-bus subscriptions once, at registration
// time, rather than re-subscribing on every OnTick. Host.Register
// calls Subscribe immediately if m implements this interface.
type Subscriber interface {
	Subscribe(bus *event.Bus)
}

// Host stores modules in registration order and dispatches OnTick to
// each in phase 4.
type Host struct {
	modules []Module
	byName  map[string]Module
}

// NewHost returns an empty host.
func NewHost() *Host {
	return &Host{byName: make(map[string]Module)}
}

// Register adds m to the host. Names must be unique. If bus is
// non-nil and m implements Subscriber, m.Subscribe(bus) runs
// immediately so the module's event subscriptions are live starting
// with the very next tick's post-tick dispatch.
func (h *Host) Register(m Module, bus *event.Bus) error {
	if _, exists := h.byName[m.Name()]; exists {
		return fmt.Errorf("module: duplicate registration for %q", m.Name())
	}
	h.modules = append(h.modules, m)
	h.byName[m.Name()] = m
	if bus != nil {
		if s, ok := m.(Subscriber); ok {
			s.Subscribe(bus)
		}
	}
	return nil
}

// Dispatch calls OnTick on every registered module, in registration order.
func (h *Host) Dispatch(ctx Context) {
	for _, m := range h.modules {
		m.OnTick(ctx)
	}
}

// ByName retrieves a registered module by the name it was registered under.
func (h *Host) ByName(name string) (Module, bool) {
	m, ok := h.byName[name]
	return m, ok
}

// Modules returns every registered module in registration order, for
// serialization.
func (h *Host) Modules() []Module {
	return append([]Module(nil), h.modules...)
}

// FindByType returns the first registered module assignable to T, the
// runtime downcast affordance host code uses to get a concrete module
// type back (e.g. the Power module) rather than the Module interface.
func FindByType[T Module](h *Host) (T, bool) {
	var zero T
	for _, m := range h.modules {
		if t, ok := m.(T); ok {
			return t, true
		}
	}
	return zero, false
}
