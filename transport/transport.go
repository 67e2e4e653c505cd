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

// Package transport implements the four transport variants: Flow, Item (belt), Batch and Vehicle, each a tagged
// payload/state pair with its own tick function. Transports run in
// phase 2, before processors, so a delivery made this tick is visible
// as fresh input when phase 3 runs.
package transport

import (
	"github.com/foundryforge/factorial/event"
	"github.com/foundryforge/factorial/fixedpoint"
	"github.com/foundryforge/factorial/ids"
	"github.com/foundryforge/factorial/inventory"
)

// Kind discriminates the transport variant an edge carries.
type Kind uint8

const (
	KindFlow Kind = iota
	KindItem
	KindBatch
	KindVehicle
)

func (k Kind) String() string {
	switch k {
	case KindFlow:
		return "flow"
	case KindItem:
		return "item"
	case KindBatch:
		return "batch"
	case KindVehicle:
		return "vehicle"
	default:
		return "unknown"
	}
}

// Config is the immutable per-edge configuration. Only the
// field matching Kind is meaningful.
type Config struct {
	Kind    Kind
	Flow    FlowConfig
	Item    ItemConfig
	Batch   BatchConfig
	Vehicle VehicleConfig
}

type FlowConfig struct {
	Rate           fixedpoint.F64
	BufferCapacity fixedpoint.F64
	Latency        uint64
}

type ItemConfig struct {
	Speed     fixedpoint.F64
	SlotCount uint32
	Lanes     uint8
}

type BatchConfig struct {
	BatchSize uint32
	CycleTime uint64
}

type VehicleConfig struct {
	Capacity   uint32
	TravelTime uint64
}

// Validate rejects configurations that are undefined behavior: a
// Vehicle with travel_time==0 has no well-defined phase cycle, so
// set_transport must reject it rather than silently accepting a
// config that would divide the tick loop by a degenerate case.
func (c Config) Validate() error {
	if c.Kind == KindVehicle && c.Vehicle.TravelTime == 0 {
		return errVehicleZeroTravelTime
	}
	return nil
}

var errVehicleZeroTravelTime = transportError("vehicle transport requires travel_time > 0")

type transportError string

func (e transportError) Error() string { return string(e) }

// ItemSlot is one belt slot: either empty, or carrying a single unit
// of an item with its property payload.
type ItemSlot struct {
	Occupied bool
	Item     ids.ItemTypeId
	Props    inventory.PropertyPayload
}

// State is the mutable per-edge transport state.
type State struct {
	Kind Kind

	// Flow
	Buffered         fixedpoint.F64
	LatencyRemaining uint64

	// Item
	Slots        []ItemSlot // length SlotCount*Lanes
	AdvanceAccum fixedpoint.F64

	// Batch
	Progress uint64
	Pending  uint32

	// Vehicle
	Position  uint64
	Cargo     uint32
	Returning bool
}

// NewState allocates the zeroed state matching cfg's kind.
func NewState(cfg Config) *State {
	st := &State{Kind: cfg.Kind}
	if cfg.Kind == KindItem {
		st.Slots = make([]ItemSlot, int(cfg.Item.SlotCount)*int(cfg.Item.Lanes))
	}
	if cfg.Kind == KindFlow {
		st.LatencyRemaining = cfg.Flow.Latency
	}
	return st
}

// Tick runs one edge's transport for one simulation tick, moving items
// from src's output inventory toward dst's input inventory subject to
// filter, and returns the events produced. Called in phase 2, grouped
// by Kind so all edges of one variant run in a tight loop.
func Tick(edgeId ids.EdgeId, cfg *Config, st *State, src, dst *inventory.Inventory, filter *ids.ItemTypeId, tick uint64) []event.Event {
	switch cfg.Kind {
	case KindFlow:
		return tickFlow(edgeId, &cfg.Flow, st, src, dst, filter, tick)
	case KindItem:
		return tickItem(edgeId, &cfg.Item, st, src, dst, filter, tick)
	case KindBatch:
		return tickBatch(edgeId, &cfg.Batch, st, src, dst, filter, tick)
	case KindVehicle:
		return tickVehicle(edgeId, &cfg.Vehicle, st, src, dst, filter, tick)
	default:
		return nil
	}
}

func tickFlow(edgeId ids.EdgeId, cfg *FlowConfig, st *State, src, dst *inventory.Inventory, filter *ids.ItemTypeId, tick uint64) []event.Event {
	var evs []event.Event

	pulled := pullUpTo(src, filter, cfg.Rate)
	room, _ := cfg.BufferCapacity.Sub(st.Buffered)
	pulledCapped := fixedpoint.Min(pulled, fixedpoint.Max(room, fixedpoint.Zero))
	if pulled.Cmp(pulledCapped) > 0 {
		// source gave us more than buffer_capacity allows; give back the excess
		excess, _ := pulled.Sub(pulledCapped)
		refundToSource(src, filter, excess)
		evs = append(evs, event.Event{Kind: event.TransportFull, Tick: tick, Edge: edgeId})
	}
	st.Buffered = st.Buffered.SaturatingAdd(pulledCapped)

	if cfg.Latency > 0 && st.LatencyRemaining > 0 {
		st.LatencyRemaining--
		return evs
	}

	pushQty := fixedpoint.Min(cfg.Rate, st.Buffered)
	pushWhole := uint32(pushQty.Floor())
	if pushWhole == 0 {
		return evs
	}
	item := ids.ItemTypeId(0)
	if filter != nil {
		item = *filter
	}
	delivered := dst.Insert(item, pushWhole, nil)
	st.Buffered, _ = st.Buffered.Sub(fixedpoint.FromInt64(int64(delivered)))
	if delivered == 0 {
		return evs
	}
	evs = append(evs, event.Event{Kind: event.ItemDelivered, Tick: tick, Edge: edgeId, Item: item, Qty: delivered})
	return evs
}

// pullUpTo removes up to rate whole units of filter (or, absent a
// filter, item type 0 — a single-commodity Flow edge in practice; a
// filter should be set for any edge carrying more than one item type)
// from src and returns the quantity actually pulled as an F64.
func pullUpTo(src *inventory.Inventory, filter *ids.ItemTypeId, rate fixedpoint.F64) fixedpoint.F64 {
	item := ids.ItemTypeId(0)
	if filter != nil {
		item = *filter
	}
	wholeRate := uint32(rate.Floor())
	if wholeRate == 0 {
		return fixedpoint.Zero
	}
	taken := src.Remove(item, wholeRate)
	return fixedpoint.FromInt64(int64(taken))
}

func refundToSource(src *inventory.Inventory, filter *ids.ItemTypeId, qty fixedpoint.F64) {
	item := ids.ItemTypeId(0)
	if filter != nil {
		item = *filter
	}
	whole := uint32(qty.Floor())
	if whole > 0 {
		src.Insert(item, whole, nil)
	}
}

func tickItem(edgeId ids.EdgeId, cfg *ItemConfig, st *State, src, dst *inventory.Inventory, filter *ids.ItemTypeId, tick uint64) []event.Event {
	var evs []event.Event
	lanes := int(cfg.Lanes)
	if lanes == 0 {
		lanes = 1
	}
	perLane := int(cfg.SlotCount)

	st.AdvanceAccum = st.AdvanceAccum.SaturatingAdd(cfg.Speed)
	steps := uint32(st.AdvanceAccum.Floor())
	if steps > 0 {
		st.AdvanceAccum, _ = st.AdvanceAccum.Sub(fixedpoint.FromInt64(int64(steps)))
	}

	item := ids.ItemTypeId(0)
	if filter != nil {
		item = *filter
	}

	for lane := 0; lane < lanes; lane++ {
		base := lane * perLane

		// output end: slot 0 tries to deliver before any shifting, so a
		// blocked destination stalls the whole lane this tick.
		out := &st.Slots[base+0]
		delivered := false
		if out.Occupied {
			taken := dst.Insert(out.Item, 1, out.Props)
			if taken > 0 {
				evs = append(evs, event.Event{Kind: event.ItemDelivered, Tick: tick, Edge: edgeId, Item: out.Item, Qty: 1})
				*out = ItemSlot{}
				delivered = true
			} else {
				evs = append(evs, event.Event{Kind: event.TransportFull, Tick: tick, Edge: edgeId})
			}
		}

		// shift register: advance occupied slots toward slot 0 by up to
		// `steps` positions, one position per step, never passing a
		// still-occupied slot ahead of it (natural back-pressure).
		for s := uint32(0); s < steps; s++ {
			moved := delivered
			for i := 0; i < perLane-1; i++ {
				if !st.Slots[base+i].Occupied && st.Slots[base+i+1].Occupied {
					st.Slots[base+i] = st.Slots[base+i+1]
					st.Slots[base+i+1] = ItemSlot{}
					moved = true
				}
			}
			if !moved {
				break
			}
		}

		// input end: last slot tries to pick up from source.
		in := &st.Slots[base+perLane-1]
		if !in.Occupied {
			if props, ok := src.RemoveOne(item); ok {
				in.Occupied = true
				in.Item = item
				in.Props = props
			}
		}
	}
	return evs
}

func tickBatch(edgeId ids.EdgeId, cfg *BatchConfig, st *State, src, dst *inventory.Inventory, filter *ids.ItemTypeId, tick uint64) []event.Event {
	var evs []event.Event
	item := ids.ItemTypeId(0)
	if filter != nil {
		item = *filter
	}

	st.Progress++
	if st.Progress < cfg.CycleTime {
		room := cfg.BatchSize - st.Pending
		if room > 0 {
			taken := src.Remove(item, room)
			st.Pending += taken
		}
		return evs
	}

	if st.Pending > 0 {
		delivered := dst.Insert(item, st.Pending, nil)
		st.Pending -= delivered
		if delivered > 0 {
			evs = append(evs, event.Event{Kind: event.ItemDelivered, Tick: tick, Edge: edgeId, Item: item, Qty: delivered})
		}
		if st.Pending > 0 {
			evs = append(evs, event.Event{Kind: event.TransportFull, Tick: tick, Edge: edgeId})
			return evs // retry next tick rather than starting a new cycle on a partial delivery
		}
	}
	st.Progress = 0
	return evs
}

func tickVehicle(edgeId ids.EdgeId, cfg *VehicleConfig, st *State, src, dst *inventory.Inventory, filter *ids.ItemTypeId, tick uint64) []event.Event {
	var evs []event.Event
	item := ids.ItemTypeId(0)
	if filter != nil {
		item = *filter
	}
	round := 2 * cfg.TravelTime

	switch {
	case st.Position == 0 && !st.Returning:
		room := cfg.Capacity - st.Cargo
		if room > 0 {
			taken := src.Remove(item, room)
			st.Cargo += taken
		}
		st.Position++
	case st.Position < cfg.TravelTime && !st.Returning:
		st.Position++
	case st.Position == cfg.TravelTime && !st.Returning:
		if st.Cargo > 0 {
			delivered := dst.Insert(item, st.Cargo, nil)
			st.Cargo -= delivered
			if delivered > 0 {
				evs = append(evs, event.Event{Kind: event.ItemDelivered, Tick: tick, Edge: edgeId, Item: item, Qty: delivered})
			}
		}
		st.Returning = true
		st.Position++
	case st.Position < round:
		st.Position++
	default:
		st.Position = 0
		st.Returning = false
	}
	return evs
}
