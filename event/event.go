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

// Package event implements the typed, per-kind event bus: fixed-capacity
// ring buffers per event kind, passive and reactive subscribers
// ordered by priority then registration, suppression, and the
// one-tick-delay mutation protocol reactive handlers use to touch the
// graph.
package event

import "github.com/foundryforge/factorial/ids"

// Kind enumerates the closed set of event kinds the core emits.
type Kind uint8

const (
	ItemProduced Kind = iota
	ItemConsumed
	RecipeStarted
	RecipeCompleted
	BuildingStalled
	BuildingResumed
	ItemDelivered
	TransportFull
	NodeAdded
	NodeRemoved
	EdgeAdded
	EdgeRemoved
	numKinds
)

// NumKinds is the number of distinct event kinds, for callers that
// need to iterate every kind (e.g. resizing every ring uniformly).
const NumKinds = int(numKinds)

func (k Kind) String() string {
	switch k {
	case ItemProduced:
		return "ItemProduced"
	case ItemConsumed:
		return "ItemConsumed"
	case RecipeStarted:
		return "RecipeStarted"
	case RecipeCompleted:
		return "RecipeCompleted"
	case BuildingStalled:
		return "BuildingStalled"
	case BuildingResumed:
		return "BuildingResumed"
	case ItemDelivered:
		return "ItemDelivered"
	case TransportFull:
		return "TransportFull"
	case NodeAdded:
		return "NodeAdded"
	case NodeRemoved:
		return "NodeRemoved"
	case EdgeAdded:
		return "EdgeAdded"
	case EdgeRemoved:
		return "EdgeRemoved"
	default:
		return "Unknown"
	}
}

// StallReason names why a processor or transport is not progressing.
// It is carried by BuildingStalled events and mirrored in
// processor.State.
type StallReason uint8

const (
	MissingInputs StallReason = iota
	OutputFull
	NoPower
	Depleted
)

// Event is the single wire shape for every kind. Only the fields
// relevant to Kind are populated; this trades a few unused words per
// event for one concrete type instead of twelve, while still giving
// each kind its own ring, counters and suppression flag via Bus.
type Event struct {
	Kind   Kind
	Tick   uint64
	Node   ids.NodeId
	Edge   ids.EdgeId
	Item   ids.ItemTypeId
	Qty    uint32
	Recipe ids.RecipeId
	Reason StallReason
}

// ring is a fixed-capacity circular buffer for one event kind. When
// full, the oldest entry is overwritten and Dropped increments —
// explicit drop semantics rather than unbounded growth.
type ring struct {
	buf           []Event
	head          int
	count         int
	capacity      int
	totalEmitted  uint64
	dropped       uint64
	suppressed    bool
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]Event, capacity), capacity: capacity}
}

func (r *ring) push(e Event) {
	r.totalEmitted++
	if r.suppressed {
		return
	}
	if r.count == r.capacity {
		r.head = (r.head + 1) % r.capacity
		r.dropped++
		r.buf[(r.head+r.count-1)%r.capacity] = e
		return
	}
	idx := (r.head + r.count) % r.capacity
	r.buf[idx] = e
	r.count++
}

func (r *ring) drain() []Event {
	if r.count == 0 {
		return nil
	}
	out := make([]Event, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.head+i)%r.capacity]
	}
	r.head = 0
	r.count = 0
	return out
}

// DefaultCapacity is the per-kind ring buffer capacity used unless the
// host overrides it via Bus.SetCapacity.
const DefaultCapacity = 1024

// Priority orders subscriber delivery within a kind: Pre before
// Normal before Post; ties broken by registration order.
type Priority uint8

const (
	Pre Priority = iota
	Normal
	Post
)

// Mutation is a single graph change a reactive handler wants applied
// at the start of the next tick. The four variants mirror
// graph.Mutator's queue_* operations.
type Mutation struct {
	Kind         MutationKind
	BuildingType ids.BuildingTypeId // AddNode
	Node         ids.NodeId         // RemoveNode
	From, To     ids.NodeId         // Connect
	Filter       *ids.ItemTypeId    // Connect
	Edge         ids.EdgeId         // Disconnect
}

type MutationKind uint8

const (
	MutationAddNode MutationKind = iota
	MutationRemoveNode
	MutationConnect
	MutationDisconnect
)

// subKind distinguishes a passive observer from a reactive one within
// the single priority-then-registration-ordered subscriber list a kind
// keeps: the spec's delivery order is one merged sequence, not a
// passive pass followed by a reactive pass.
type subKind uint8

const (
	subPassive subKind = iota
	subReactive
)

type sub struct {
	kind            subKind
	priority        Priority
	seq             int
	filter          func(Event) bool
	passiveHandler  func(Event)
	reactiveHandler func(Event) []Mutation
}

// Bus owns one ring per kind plus its subscriber list.
type Bus struct {
	rings   [numKinds]*ring
	subs    [numKinds][]sub
	nextSeq int
}

// NewBus allocates a bus with DefaultCapacity rings for every kind.
func NewBus() *Bus {
	b := &Bus{}
	for k := Kind(0); k < numKinds; k++ {
		b.rings[k] = newRing(DefaultCapacity)
	}
	return b
}

// SetCapacity resizes kind's ring, discarding any buffered events.
func (b *Bus) SetCapacity(kind Kind, capacity int) {
	b.rings[kind] = newRing(capacity)
}

// Suppress elides all future buffering and delivery for kind; emitted
// counts still increment, but nothing is stored or delivered.
func (b *Bus) Suppress(kind Kind) { b.rings[kind].suppressed = true }

// Unsuppress re-enables buffering and delivery for kind.
func (b *Bus) Unsuppress(kind Kind) { b.rings[kind].suppressed = false }

// Emit records e under e.Kind. sim.Engine calls it with the events
// that transport and processor ticks return during phases 2 and 3.
func (b *Bus) Emit(e Event) { b.rings[e.Kind].push(e) }

// TotalEmitted and Dropped expose a kind's lifetime counters.
func (b *Bus) TotalEmitted(kind Kind) uint64 { return b.rings[kind].totalEmitted }
func (b *Bus) Dropped(kind Kind) uint64      { return b.rings[kind].dropped }

// Buffer returns a copy of kind's currently buffered events in FIFO
// order without draining them, for a host that wants to peek at what's
// pending between ticks. Unlike Dispatch, which empties the ring as it
// delivers, Buffer leaves the ring untouched.
func (b *Bus) Buffer(kind Kind) []Event {
	r := b.rings[kind]
	out := make([]Event, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.head+i)%r.capacity]
	}
	return out
}

// OnPassive registers a read-only subscriber for kind.
func (b *Bus) OnPassive(kind Kind, priority Priority, filter func(Event) bool, handler func(Event)) {
	b.subs[kind] = append(b.subs[kind], sub{kind: subPassive, priority: priority, seq: b.nextSeq, filter: filter, passiveHandler: handler})
	b.nextSeq++
	sortSubs(b.subs[kind])
}

// OnReactive registers a subscriber that may enqueue mutations for the
// next tick in response to kind.
func (b *Bus) OnReactive(kind Kind, priority Priority, filter func(Event) bool, handler func(Event) []Mutation) {
	b.subs[kind] = append(b.subs[kind], sub{kind: subReactive, priority: priority, seq: b.nextSeq, filter: filter, reactiveHandler: handler})
	b.nextSeq++
	sortSubs(b.subs[kind])
}

func sortSubs(subs []sub) {
	for i := 1; i < len(subs); i++ {
		for j := i; j > 0 && less(subs[j].priority, subs[j].seq, subs[j-1].priority, subs[j-1].seq); j-- {
			subs[j], subs[j-1] = subs[j-1], subs[j]
		}
	}
}

func less(pa Priority, sa int, pb Priority, sb int) bool {
	if pa != pb {
		return pa < pb
	}
	return sa < sb
}

// Dispatch drains every kind's ring in kind order and delivers each
// event to every subscriber of that kind, passive and reactive alike,
// in one merged priority-then-registration order — a Pre-priority
// reactive subscriber runs ahead of a Post-priority passive one of the
// same kind. Returns every mutation reactive handlers produced; these
// are destined for the next tick's pre-tick phase, never applied now.
func (b *Bus) Dispatch() []Mutation {
	var pending []Mutation
	for k := Kind(0); k < numKinds; k++ {
		events := b.rings[k].drain()
		for _, e := range events {
			for _, s := range b.subs[k] {
				if s.filter != nil && !s.filter(e) {
					continue
				}
				if s.kind == subPassive {
					s.passiveHandler(e)
				} else {
					pending = append(pending, s.reactiveHandler(e)...)
				}
			}
		}
	}
	return pending
}
