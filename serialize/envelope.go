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

// Package serialize implements the engine's versioned snapshot
// envelope: a binary container of length-prefixed,
// named sections wrapping one tick's worth of sim.Engine state, plus
// a bounded ring of such snapshots for desync diagnostics and
// checkpoint/restore. Deserialization rejects a bad magic number, an
// unknown major schema version, or truncated input rather than
// silently reading garbage.
package serialize

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// magic identifies a Factorial snapshot envelope; chosen so a
// misidentified file (e.g. a raw JSON dump) fails the very first
// four-byte read instead of partially decoding.
const magic uint32 = 0x46414354 // "FACT"

// schemaVersion is bumped whenever a section's wire shape changes
// incompatibly. A reader rejects a version it has no migration path
// for (see migration.go).
const schemaVersion uint16 = 1

var (
	// ErrBadMagic is returned when the leading magic number doesn't match.
	ErrBadMagic = errors.New("serialize: bad magic number")
	// ErrUnknownVersion is returned when no migration reaches the reader's
	// supported version from the envelope's schema version.
	ErrUnknownVersion = errors.New("serialize: unknown schema version")
	// ErrTruncated is returned when a section's declared length runs past
	// the remaining input.
	ErrTruncated = errors.New("serialize: truncated input")
)

// section names, in the fixed order they are always written.
const (
	sectionGraph      = "graph"
	sectionComponents = "components"
	sectionTransports = "transports"
	sectionSimState   = "sim_state"
	moduleSectionTag  = "module:"
)

// writeSection writes one length-prefixed named section: a
// length-prefixed name, a u32 payload length, then the payload itself.
func writeSection(w io.Writer, name string, payload []byte) error {
	if err := writeString(w, name); err != nil {
		return fmt.Errorf("serialize: write section name %q: %w", name, err)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("serialize: write section length %q: %w", name, err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("serialize: write section payload %q: %w", name, err)
	}
	return nil
}

func writeString(w io.Writer, s string) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.EOF {
			// no bytes at all: a clean end of input between sections
			return "", io.EOF
		}
		return "", errors.Wrap(ErrTruncated, err.Error())
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", errors.Wrap(ErrTruncated, err.Error())
	}
	return string(buf), nil
}

// readSection reads one named, length-prefixed section.
func readSection(r io.Reader) (name string, payload []byte, err error) {
	name, err = readString(r)
	if err != nil {
		return "", nil, err
	}
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", nil, errors.Wrap(ErrTruncated, err.Error())
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	payload = make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return "", nil, errors.Wrap(ErrTruncated, err.Error())
	}
	return name, payload, nil
}

// writeHeader writes the envelope's fixed-width preamble: magic,
// schema version, and the tick the snapshot was captured at.
func writeHeader(w io.Writer, tick uint64) error {
	var buf [4 + 2 + 8]byte
	binary.BigEndian.PutUint32(buf[0:4], magic)
	binary.BigEndian.PutUint16(buf[4:6], schemaVersion)
	binary.BigEndian.PutUint64(buf[6:14], tick)
	_, err := w.Write(buf[:])
	return err
}

// readHeader reads and validates the preamble, returning the
// snapshot's tick and the schema version it was written with (the
// caller migrates forward from there; see migration.go).
func readHeader(r io.Reader) (tick uint64, version uint16, err error) {
	var buf [4 + 2 + 8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, 0, errors.Wrap(ErrTruncated, err.Error())
	}
	gotMagic := binary.BigEndian.Uint32(buf[0:4])
	if gotMagic != magic {
		return 0, 0, ErrBadMagic
	}
	version = binary.BigEndian.Uint16(buf[4:6])
	if version != schemaVersion && !canMigrate(version) {
		return 0, 0, fmt.Errorf("%w: %d", ErrUnknownVersion, version)
	}
	tick = binary.BigEndian.Uint64(buf[6:14])
	return tick, version, nil
}
