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

package contentio

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/erigontech/erigon-lib/log/v3"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/foundryforge/factorial/fixedpoint"
	"github.com/foundryforge/factorial/ids"
	"github.com/foundryforge/factorial/registry"
)

// ErrUnknownPropertySize is returned for a PropertyDoc.Size value that
// doesn't name one of registry's four storage widths.
var ErrUnknownPropertySize = errors.New("contentio: unknown property size")

// ErrUnresolvedReference is returned when a recipe or building names
// an item or recipe that no loaded document ever defined.
var ErrUnresolvedReference = errors.New("contentio: unresolved reference")

// Loader reads content files and registers their definitions into a
// registry.Builder, resolving name references (recipe input/output
// item names, building recipe names) itself since Builder only
// validates cross-references by id at Build time.
type Loader struct {
	logger log.Logger

	items      []ItemDoc
	pendingRec []RecipeDoc
	pendingBld []BuildingDoc

	itemIds   map[string]ids.ItemTypeId
	recipeIds map[string]ids.RecipeId
}

// NewLoader returns an empty Loader. A nil logger defaults to log.Root().
func NewLoader(logger log.Logger) *Loader {
	if logger == nil {
		logger = log.Root()
	}
	return &Loader{
		logger:    logger,
		itemIds:   make(map[string]ids.ItemTypeId),
		recipeIds: make(map[string]ids.RecipeId),
	}
}

// LoadDir reads every *.toml file directly under dir, in sorted
// filename order, merging their documents into b. Per-file reads
// retry with exponential backoff (readFileWithRetry) to tolerate a
// sibling process still writing the file when LoadDir runs; a file
// that remains unreadable past the retry budget fails LoadDir.
func (l *Loader) LoadDir(dir string, b *registry.Builder) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("contentio: read dir %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".toml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := readFileWithRetry(path)
		if err != nil {
			return fmt.Errorf("contentio: read %s: %w", path, err)
		}
		var doc Document
		if err := toml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("contentio: parse %s: %w", path, err)
		}
		l.merge(doc)
	}

	return l.Finish(b)
}

// LoadDocument merges one already-decoded document in, for callers
// that obtained content from something other than a directory of
// files (embedded assets, a network fetch already retried upstream).
func (l *Loader) LoadDocument(doc Document) { l.merge(doc) }

func (l *Loader) merge(doc Document) {
	l.items = append(l.items, doc.Items...)
	l.pendingRec = append(l.pendingRec, doc.Recipes...)
	l.pendingBld = append(l.pendingBld, doc.Buildings...)
}

// Finish registers every merged item, then recipe, then building into
// b, resolving names against ids assigned in registration order. It
// is not idempotent: a second call registers every merged definition
// again. Loader is single-use per Builder.
func (l *Loader) Finish(b *registry.Builder) error {
	for _, it := range l.items {
		props := make([]registry.PropertyDef, 0, len(it.Properties))
		for _, p := range it.Properties {
			size, err := parsePropertySize(p.Size)
			if err != nil {
				return fmt.Errorf("contentio: item %q: %w", it.Name, err)
			}
			props = append(props, registry.PropertyDef{
				Name:    p.Name,
				Size:    size,
				Default: fixedpoint.FromFloat64(p.Default),
			})
		}
		id := b.RegisterItem(registry.ItemTypeDef{Name: it.Name, Properties: props})
		l.itemIds[it.Name] = id
	}

	for _, r := range l.pendingRec {
		inputs, err := l.resolveItemQtys(r.Inputs)
		if err != nil {
			return fmt.Errorf("contentio: recipe %q: %w", r.Name, err)
		}
		outputs, err := l.resolveItemQtys(r.Outputs)
		if err != nil {
			return fmt.Errorf("contentio: recipe %q: %w", r.Name, err)
		}
		id := b.RegisterRecipe(registry.RecipeDef{
			Name:     r.Name,
			Inputs:   inputs,
			Outputs:  outputs,
			Duration: r.Duration,
		})
		l.recipeIds[r.Name] = id
	}

	for _, bd := range l.pendingBld {
		var recipeId *ids.RecipeId
		if bd.Recipe != "" {
			id, ok := l.recipeIds[bd.Recipe]
			if !ok {
				return fmt.Errorf("contentio: building %q: %w: recipe %q", bd.Name, ErrUnresolvedReference, bd.Recipe)
			}
			recipeId = &id
		}
		b.RegisterBuilding(registry.BuildingTemplateDef{Name: bd.Name, Recipe: recipeId})
	}

	l.logger.Debug("content loaded", "items", len(l.items), "recipes", len(l.pendingRec), "buildings", len(l.pendingBld))
	return nil
}

func (l *Loader) resolveItemQtys(docs []ItemQtyDoc) ([]registry.ItemQty, error) {
	out := make([]registry.ItemQty, 0, len(docs))
	for _, d := range docs {
		id, ok := l.itemIds[d.Item]
		if !ok {
			return nil, fmt.Errorf("%w: item %q", ErrUnresolvedReference, d.Item)
		}
		out = append(out, registry.ItemQty{Item: id, Qty: d.Qty})
	}
	return out, nil
}

func parsePropertySize(s string) (registry.PropertySize, error) {
	switch s {
	case "f64":
		return registry.SizeF64, nil
	case "f32":
		return registry.SizeF32, nil
	case "u32":
		return registry.SizeU32, nil
	case "u8":
		return registry.SizeU8, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPropertySize, s)
	}
}

// readFileWithRetry reads path, retrying with exponential backoff on
// failure. It exists for content directories populated by another
// process (an exporter, a live content pipeline), where a read can fail
// transiently. Only the read is retried: a file that reads but does not
// parse as TOML fails LoadDir at once.
func readFileWithRetry(path string) ([]byte, error) {
	var data []byte
	operation := func() error {
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		data = b
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 10 * time.Millisecond
	policy.MaxInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = 2 * time.Second

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return data, nil
}
