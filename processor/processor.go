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

// Package processor implements the five processor variants: Source, Fixed, Property, Demand and Passthrough, each a
// tagged-union payload with its own tick function dispatched in
// topological order during phase 3. Tagged unions are used instead of
// an interface hierarchy so every variant's state stays inline and the
// simulation loop can group nodes by variant for cache locality.
package processor

import (
	"github.com/foundryforge/factorial/event"
	"github.com/foundryforge/factorial/fixedpoint"
	"github.com/foundryforge/factorial/ids"
	"github.com/foundryforge/factorial/inventory"
	"github.com/foundryforge/factorial/modifier"
)

// Kind discriminates the processor variant a node carries.
type Kind uint8

const (
	KindSource Kind = iota
	KindFixed
	KindProperty
	KindDemand
	KindPassthrough
)

// DepletionKind discriminates a Source's resource model.
type DepletionKind uint8

const (
	Infinite DepletionKind = iota
	Finite
	Decaying
)

// ItemQty pairs an item type with a quantity, used by Fixed's inputs/outputs.
type ItemQty struct {
	Item ids.ItemTypeId
	Qty  uint32
}

// Source models extraction: item 0 node of a chain.
type Source struct {
	OutputType        ids.ItemTypeId
	BaseRate          fixedpoint.F64
	Depletion         DepletionKind
	Remaining         fixedpoint.F64 // Finite
	HalfLife          uint64         // Decaying, in ticks
	Elapsed           uint64         // Decaying: ticks since construction
	Accumulated       fixedpoint.F64
	InitialProperties inventory.PropertyPayload
}

// Fixed models a recipe-driven assembler.
type Fixed struct {
	Inputs   []ItemQty
	Outputs  []ItemQty
	Duration uint64
}

// TransformKind discriminates a Property processor's per-unit adjustment.
type TransformKind uint8

const (
	Set TransformKind = iota
	AddTransform
	MulTransform
)

// Property models a one-item-per-tick property transformer.
type Property struct {
	InputType  ids.ItemTypeId
	OutputType ids.ItemTypeId
	Transform  TransformKind
	PropId     ids.PropertyId
	Value      fixedpoint.F32
}

// Demand models a sink: item 0 node of a chain, consuming without producing.
type Demand struct {
	InputType     ids.ItemTypeId
	BaseRate      fixedpoint.F64
	Accumulated   fixedpoint.F64
	ConsumedTotal uint64
	AcceptedTypes []ids.ItemTypeId // nil means single-type (InputType only)
}

// Processor is the tagged union a component store attaches to a node.
type Processor struct {
	Kind        Kind
	Source      Source
	Fixed       Fixed
	Property    Property
	Demand      Demand
}

// StateKind discriminates ProcessorState.
type StateKind uint8

const (
	Idle StateKind = iota
	Working
	Stalled
)

// State is the per-node processor state machine.
type State struct {
	Kind     StateKind
	Progress fixedpoint.F64     // Working
	Reason   event.StallReason  // Stalled
}

// Tick runs one node's processor for one simulation tick, given its
// folded modifier scalars, mutating p, st and the two inventories in
// place, and returns the events produced. Called in topological order
// during phase 3; a processor only ever touches its own node's
// inventories.
func Tick(nodeId ids.NodeId, p *Processor, st *State, in, out *inventory.Inventory, eff modifier.Effective, tick uint64) []event.Event {
	switch p.Kind {
	case KindSource:
		return tickSource(nodeId, &p.Source, st, out, eff, tick)
	case KindFixed:
		return tickFixed(nodeId, &p.Fixed, st, in, out, eff, tick)
	case KindProperty:
		return tickProperty(nodeId, &p.Property, st, in, out, tick)
	case KindDemand:
		return tickDemand(nodeId, &p.Demand, st, in, eff, tick)
	case KindPassthrough:
		return tickPassthrough(nodeId, st, in, out, tick)
	default:
		return nil
	}
}

func emitStallChange(nodeId ids.NodeId, st *State, tick uint64, wasStalled bool, newKind StateKind, reason event.StallReason) []event.Event {
	var evs []event.Event
	isStalled := newKind == Stalled
	if isStalled && (!wasStalled || st.Reason != reason) {
		evs = append(evs, event.Event{Kind: event.BuildingStalled, Tick: tick, Node: nodeId, Reason: reason})
	} else if !isStalled && wasStalled {
		evs = append(evs, event.Event{Kind: event.BuildingResumed, Tick: tick, Node: nodeId})
	}
	st.Kind = newKind
	st.Reason = reason
	return evs
}

func tickSource(nodeId ids.NodeId, s *Source, st *State, out *inventory.Inventory, eff modifier.Effective, tick uint64) []event.Event {
	wasStalled := st.Kind == Stalled
	var evs []event.Event

	if s.Depletion == Finite && s.Remaining.IsZero() {
		evs = append(evs, emitStallChange(nodeId, st, tick, wasStalled, Stalled, event.Depleted)...)
		return evs
	}

	rate := s.BaseRate
	if s.Depletion == Decaying && s.HalfLife > 0 {
		steps := s.Elapsed / s.HalfLife
		for i := uint64(0); i < steps; i++ {
			rate, _ = rate.Div(fixedpoint.FromInt64(2))
		}
	}
	s.Elapsed++

	effectiveRate, _ := rate.Mul(eff.Speed)
	s.Accumulated = s.Accumulated.SaturatingAdd(effectiveRate)

	qty := uint32(s.Accumulated.Floor())
	var emitted uint32
	if qty > 0 {
		emitted = out.Insert(s.OutputType, qty, s.InitialProperties)
		s.Accumulated, _ = s.Accumulated.Sub(fixedpoint.FromInt64(int64(emitted)))
	}

	if emitted > 0 {
		evs = append(evs, event.Event{Kind: event.ItemProduced, Tick: tick, Node: nodeId, Item: s.OutputType, Qty: emitted})
		if s.Depletion == Finite {
			s.Remaining, _ = s.Remaining.Sub(fixedpoint.FromInt64(int64(emitted)))
			if s.Remaining.Cmp(fixedpoint.Zero) <= 0 {
				s.Remaining = fixedpoint.Zero
			}
		}
		evs = append(evs, emitStallChange(nodeId, st, tick, wasStalled, Working, 0)...)
		return evs
	}

	if qty > 0 && emitted == 0 {
		evs = append(evs, emitStallChange(nodeId, st, tick, wasStalled, Stalled, event.OutputFull)...)
		return evs
	}

	evs = append(evs, emitStallChange(nodeId, st, tick, wasStalled, Idle, 0)...)
	return evs
}

func tickFixed(nodeId ids.NodeId, f *Fixed, st *State, in, out *inventory.Inventory, eff modifier.Effective, tick uint64) []event.Event {
	wasStalled := st.Kind == Stalled
	var evs []event.Event

	if st.Kind == Idle || st.Kind == Stalled {
		for _, o := range f.Outputs {
			qty := scaleCeil(o.Qty, eff.Productivity)
			if !out.CanAccept(o.Item, qty, nil) {
				evs = append(evs, emitStallChange(nodeId, st, tick, wasStalled, Stalled, event.OutputFull)...)
				return evs
			}
		}
		for _, in_ := range f.Inputs {
			qty := scaleCeil(in_.Qty, eff.Efficiency)
			if !in.CanRemove(in_.Item, qty) {
				evs = append(evs, emitStallChange(nodeId, st, tick, wasStalled, Stalled, event.MissingInputs)...)
				return evs
			}
		}
		for _, in_ := range f.Inputs {
			qty := scaleCeil(in_.Qty, eff.Efficiency)
			taken := in.Remove(in_.Item, qty)
			evs = append(evs, event.Event{Kind: event.ItemConsumed, Tick: tick, Node: nodeId, Item: in_.Item, Qty: taken})
		}
		st.Kind = Working
		st.Progress = fixedpoint.Zero
		evs = append(evs, event.Event{Kind: event.RecipeStarted, Tick: tick, Node: nodeId})
		if wasStalled {
			evs = append(evs, event.Event{Kind: event.BuildingResumed, Tick: tick, Node: nodeId})
		}
		return evs
	}

	// Working
	st.Progress = st.Progress.SaturatingAdd(eff.Speed)
	effectiveDuration := effectiveDuration(f.Duration, eff.Speed)
	if st.Progress.Cmp(effectiveDuration) < 0 {
		return nil
	}

	for _, o := range f.Outputs {
		qty := scaleFloorMinOne(o.Qty, eff.Productivity)
		out.Insert(o.Item, qty, nil)
		evs = append(evs, event.Event{Kind: event.ItemProduced, Tick: tick, Node: nodeId, Item: o.Item, Qty: qty})
	}
	st.Kind = Idle
	st.Progress = fixedpoint.Zero
	evs = append(evs, event.Event{Kind: event.RecipeCompleted, Tick: tick, Node: nodeId})
	return evs
}

func tickProperty(nodeId ids.NodeId, p *Property, st *State, in, out *inventory.Inventory, tick uint64) []event.Event {
	wasStalled := st.Kind == Stalled
	props, ok := in.PeekOne(p.InputType)
	if !ok {
		return emitStallChange(nodeId, st, tick, wasStalled, Stalled, event.MissingInputs)
	}

	newProps := applyTransform(props, p.PropId, p.Transform, p.Value)
	if !out.CanAccept(p.OutputType, 1, newProps) {
		// Leave the input unit in place: every other stalling path
		// (Fixed, Demand, transports) leaves state unchanged on a
		// stall, and an output-full condition is no different.
		return emitStallChange(nodeId, st, tick, wasStalled, Stalled, event.OutputFull)
	}
	in.RemoveOne(p.InputType)
	out.Insert(p.OutputType, 1, newProps)

	evs := []event.Event{
		{Kind: event.ItemConsumed, Tick: tick, Node: nodeId, Item: p.InputType, Qty: 1},
		{Kind: event.ItemProduced, Tick: tick, Node: nodeId, Item: p.OutputType, Qty: 1},
	}
	evs = append(evs, emitStallChange(nodeId, st, tick, wasStalled, Working, 0)...)
	return evs
}

func applyTransform(props inventory.PropertyPayload, propId ids.PropertyId, kind TransformKind, value fixedpoint.F32) inventory.PropertyPayload {
	out := append(inventory.PropertyPayload(nil), props...)
	found := false
	for i := range out {
		if out[i].Id != propId {
			continue
		}
		found = true
		switch kind {
		case Set:
			out[i].Value = value
		case AddTransform:
			out[i].Value, _ = out[i].Value.Add(value)
		case MulTransform:
			out[i].Value, _ = out[i].Value.Mul(value)
		}
	}
	if !found {
		out = inventory.NewPropertyPayload(append(out, inventory.PropertyValue{Id: propId, Value: value})...)
	}
	return out
}

func tickDemand(nodeId ids.NodeId, d *Demand, st *State, in *inventory.Inventory, eff modifier.Effective, tick uint64) []event.Event {
	wasStalled := st.Kind == Stalled
	effectiveRate, _ := d.BaseRate.Mul(eff.Speed)
	d.Accumulated = d.Accumulated.SaturatingAdd(effectiveRate)
	whole := uint32(d.Accumulated.Floor())
	if whole == 0 {
		return emitStallChange(nodeId, st, tick, wasStalled, Idle, 0)
	}

	types := d.AcceptedTypes
	if types == nil {
		types = []ids.ItemTypeId{d.InputType}
	}

	var consumed uint32
	for _, t := range types {
		if consumed >= whole {
			break
		}
		taken := in.Remove(t, whole-consumed)
		consumed += taken
	}

	if consumed == 0 {
		return emitStallChange(nodeId, st, tick, wasStalled, Stalled, event.MissingInputs)
	}

	d.Accumulated, _ = d.Accumulated.Sub(fixedpoint.FromInt64(int64(consumed)))
	d.ConsumedTotal += uint64(consumed)

	evs := []event.Event{{Kind: event.ItemConsumed, Tick: tick, Node: nodeId, Qty: consumed}}
	evs = append(evs, emitStallChange(nodeId, st, tick, wasStalled, Working, 0)...)
	return evs
}

func tickPassthrough(nodeId ids.NodeId, st *State, in, out *inventory.Inventory, tick uint64) []event.Event {
	wasStalled := st.Kind == Stalled
	var moved uint32
	blocked := false
	for {
		item, props, ok := in.RemoveAny()
		if !ok {
			break
		}
		taken := out.Insert(item, 1, props)
		if taken == 0 {
			in.Insert(item, 1, props)
			blocked = true
			break
		}
		moved++
	}

	var evs []event.Event
	switch {
	case moved == 0 && blocked:
		evs = append(evs, emitStallChange(nodeId, st, tick, wasStalled, Stalled, event.OutputFull)...)
	case moved == 0:
		evs = append(evs, emitStallChange(nodeId, st, tick, wasStalled, Idle, 0)...)
	default:
		evs = append(evs, event.Event{Kind: event.ItemProduced, Tick: tick, Node: nodeId, Qty: moved})
		evs = append(evs, emitStallChange(nodeId, st, tick, wasStalled, Working, 0)...)
	}
	return evs
}

func scaleCeil(qty uint32, factor fixedpoint.F64) uint32 {
	scaled, _ := fixedpoint.FromInt64(int64(qty)).Mul(factor)
	out := uint32(scaled.Ceil())
	if out < 1 {
		out = 1
	}
	return out
}

func scaleFloorMinOne(qty uint32, factor fixedpoint.F64) uint32 {
	scaled, _ := fixedpoint.FromInt64(int64(qty)).Mul(factor)
	out := uint32(scaled.Floor())
	if out < 1 {
		out = 1
	}
	return out
}

// effectiveDuration is max(1, ceil(duration/speed)).
func effectiveDuration(duration uint64, speed fixedpoint.F64) fixedpoint.F64 {
	if speed.IsZero() {
		return fixedpoint.FromInt64(int64(duration))
	}
	d, _ := fixedpoint.FromInt64(int64(duration)).Div(speed)
	ticks := d.Ceil()
	if ticks < 1 {
		ticks = 1
	}
	return fixedpoint.FromInt64(ticks)
}
