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

// Migration upgrades the raw section bytes of a snapshot written with
// an older schema version so the current reader's decoders can parse
// them. Registered in ascending "from" order; ReadSnapshot applies
// every migration from the envelope's version up to schemaVersion in
// sequence before decoding any section.
type Migration struct {
	From int // the schema version this migration upgrades from
	Run  func(sections map[string][]byte) error
}

// migrations holds every registered upgrade path, in ascending From
// order. There are none yet: schemaVersion is still 1, the format this
// repository shipped with. A future incompatible section change adds
// an entry here rather than bumping readers to reject old snapshots
// outright.
var migrations []Migration

// canMigrate reports whether a snapshot written at schema version
// `from` can be brought forward to the version this build reads,
// i.e. every intermediate version has a registered Migration.
func canMigrate(from uint16) bool {
	if from > schemaVersion {
		return false
	}
	have := map[int]bool{}
	for _, m := range migrations {
		have[m.From] = true
	}
	for v := int(from); v < int(schemaVersion); v++ {
		if !have[v] {
			return false
		}
	}
	return true
}

// applyMigrations runs every registered migration from `from` up to
// schemaVersion, in order, mutating sections in place.
func applyMigrations(from uint16, sections map[string][]byte) error {
	for v := int(from); v < int(schemaVersion); v++ {
		for _, m := range migrations {
			if m.From != v {
				continue
			}
			if err := m.Run(sections); err != nil {
				return err
			}
		}
	}
	return nil
}
