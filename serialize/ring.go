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

package serialize

import (
	"bytes"
	"fmt"

	"github.com/google/btree"
	"github.com/klauspost/compress/zstd"
)

// ringEntry is one stored snapshot, keyed by tick for the btree's
// ordering and carrying its envelope bytes already zstd-compressed —
// compression runs once, when the entry is pushed, never on the
// steady-state tick path.
type ringEntry struct {
	tick uint64
	data []byte // zstd-compressed envelope
}

func ringEntryLess(a, b ringEntry) bool { return a.tick < b.tick }

// SnapshotRing keeps the last Capacity snapshots pushed to it, ordered
// by tick, evicting the oldest on overflow.
type SnapshotRing struct {
	capacity int
	tree     *btree.BTreeG[ringEntry]
	order    []uint64 // push order, for FIFO eviction

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewSnapshotRing returns a ring holding at most capacity snapshots.
func NewSnapshotRing(capacity int) (*SnapshotRing, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("serialize: new zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("serialize: new zstd decoder: %w", err)
	}
	return &SnapshotRing{
		capacity: capacity,
		tree:     btree.NewG(32, ringEntryLess),
		encoder:  enc,
		decoder:  dec,
	}, nil
}

// Close releases the ring's zstd decoder goroutines.
func (r *SnapshotRing) Close() {
	r.decoder.Close()
}

// Push compresses and stores s, evicting the oldest entry first if the
// ring is already at capacity. A later push at the same tick (e.g. a
// corrected snapshot) replaces the earlier one in place.
func (r *SnapshotRing) Push(s *Snapshot) error {
	raw, err := s.Marshal()
	if err != nil {
		return fmt.Errorf("serialize: marshal snapshot for ring: %w", err)
	}
	compressed := r.encoder.EncodeAll(raw, nil)

	if _, existed := r.tree.Get(ringEntry{tick: s.Tick}); !existed {
		r.order = append(r.order, s.Tick)
	}
	r.tree.ReplaceOrInsert(ringEntry{tick: s.Tick, data: compressed})

	for len(r.order) > r.capacity {
		oldest := r.order[0]
		r.order = r.order[1:]
		r.tree.Delete(ringEntry{tick: oldest})
	}
	return nil
}

// Get decompresses and decodes the snapshot stored at tick, if still present.
func (r *SnapshotRing) Get(tick uint64) (*Snapshot, bool, error) {
	entry, ok := r.tree.Get(ringEntry{tick: tick})
	if !ok {
		return nil, false, nil
	}
	raw, err := r.decoder.DecodeAll(entry.data, nil)
	if err != nil {
		return nil, false, fmt.Errorf("serialize: decompress ring entry at tick %d: %w", tick, err)
	}
	snap, err := ReadSnapshot(bytes.NewReader(raw))
	if err != nil {
		return nil, false, fmt.Errorf("serialize: decode ring entry at tick %d: %w", tick, err)
	}
	return snap, true, nil
}

// Ticks returns every tick currently held, ascending.
func (r *SnapshotRing) Ticks() []uint64 {
	out := make([]uint64, 0, r.tree.Len())
	r.tree.Ascend(func(e ringEntry) bool {
		out = append(out, e.tick)
		return true
	})
	return out
}

// Len reports how many snapshots the ring currently holds.
func (r *SnapshotRing) Len() int { return r.tree.Len() }

// Latest returns the most recently pushed (highest-tick) snapshot, if any.
func (r *SnapshotRing) Latest() (*Snapshot, bool, error) {
	max, ok := r.tree.Max()
	if !ok {
		return nil, false, nil
	}
	return r.Get(max.tick)
}
