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

// Package registry holds the immutable content catalog: item types,
// recipes and building templates. A Builder accumulates definitions
// during registration; Build freezes them into a Registry whose
// definitions never change afterwards and which is safe to share across
// engines, snapshots and replays. The one piece of state it still writes
// after Build is an internal LRU cache of item-name lookups.
package registry

import (
	"fmt"
	"sort"

	"github.com/erigontech/erigon-lib/log/v3"
	"github.com/google/btree"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/foundryforge/factorial/fixedpoint"
	"github.com/foundryforge/factorial/ids"
)

// PropertySize names the storage width of a stateful item property.
type PropertySize uint8

const (
	SizeF64 PropertySize = iota
	SizeF32
	SizeU32
	SizeU8
)

// PropertyDef describes one property slot carried by a stateful item.
type PropertyDef struct {
	Name    string
	Size    PropertySize
	Default fixedpoint.F64 // interpreted per Size at read time
}

// ItemTypeDef describes one item type. An item with no Properties is
// fungible (stacks by quantity alone); one with any Properties is
// stateful and each unit carries a property payload.
type ItemTypeDef struct {
	Name       string
	Properties []PropertyDef
}

func (d ItemTypeDef) Stateful() bool { return len(d.Properties) > 0 }

// ItemQty pairs an item type with a quantity, used by recipe inputs/outputs.
type ItemQty struct {
	Item ids.ItemTypeId
	Qty  uint32
}

// RecipeDef describes a Fixed-processor recipe.
type RecipeDef struct {
	Name     string
	Inputs   []ItemQty
	Outputs  []ItemQty
	Duration uint64 // Ticks
}

// BuildingTemplateDef describes a building kind. Recipe is nil for
// building kinds whose processor variant (Source, Property, Demand,
// Passthrough) doesn't consult a registered recipe.
type BuildingTemplateDef struct {
	Name   string
	Recipe *ids.RecipeId
}

// Sentinel error kinds returned during finalization.
var (
	ErrNotFound       = errors.New("registry: not found")
	ErrDuplicateName  = errors.New("registry: duplicate name")
	ErrInvalidItemRef = errors.New("registry: invalid item reference")
	ErrInvalidRecipe  = errors.New("registry: invalid recipe reference")
)

// NotFoundError reports a name lookup miss.
type NotFoundError struct{ Name string }

func (e *NotFoundError) Error() string { return fmt.Sprintf("registry: name not found: %q", e.Name) }
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// DuplicateNameError reports two defs of the same kind sharing a name.
type DuplicateNameError struct {
	Name string
	Kind string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("registry: duplicate %s name: %q", e.Kind, e.Name)
}
func (e *DuplicateNameError) Unwrap() error { return ErrDuplicateName }

// InvalidItemRefError reports a recipe/building referencing an unknown item.
type InvalidItemRefError struct{ Id ids.ItemTypeId }

func (e *InvalidItemRefError) Error() string {
	return fmt.Sprintf("registry: invalid item reference: %d", e.Id)
}
func (e *InvalidItemRefError) Unwrap() error { return ErrInvalidItemRef }

// InvalidRecipeRefError reports a building referencing an unknown recipe.
type InvalidRecipeRefError struct{ Id ids.RecipeId }

func (e *InvalidRecipeRefError) Error() string {
	return fmt.Sprintf("registry: invalid recipe reference: %d", e.Id)
}
func (e *InvalidRecipeRefError) Unwrap() error { return ErrInvalidRecipe }

type nameEntry struct {
	name string
	id   uint32
}

func nameEntryLess(a, b nameEntry) bool {
	if a.name != b.name {
		return a.name < b.name
	}
	return a.id < b.id
}

// Builder accumulates definitions during registration.
// It is not safe for concurrent use; content loaders run single-threaded.
type Builder struct {
	items     []ItemTypeDef
	recipes   []RecipeDef
	buildings []BuildingTemplateDef

	itemNames     *btree.BTreeG[nameEntry]
	recipeNames   *btree.BTreeG[nameEntry]
	buildingNames *btree.BTreeG[nameEntry]

	logger log.Logger
}

// NewBuilder returns an empty Builder. A nil logger defaults to log.Root().
func NewBuilder(logger log.Logger) *Builder {
	if logger == nil {
		logger = log.Root()
	}
	return &Builder{
		itemNames:     btree.NewG(32, nameEntryLess),
		recipeNames:   btree.NewG(32, nameEntryLess),
		buildingNames: btree.NewG(32, nameEntryLess),
		logger:        logger,
	}
}

// RegisterItem appends an item type definition and returns its id.
// Name collisions are reported at Build time, not here, so a content
// loader can register out of order and let finalize collect every error.
func (b *Builder) RegisterItem(def ItemTypeDef) ids.ItemTypeId {
	id := ids.ItemTypeId(len(b.items))
	b.items = append(b.items, def)
	b.itemNames.ReplaceOrInsert(nameEntry{def.Name, uint32(id)})
	return id
}

func (b *Builder) RegisterRecipe(def RecipeDef) ids.RecipeId {
	id := ids.RecipeId(len(b.recipes))
	b.recipes = append(b.recipes, def)
	b.recipeNames.ReplaceOrInsert(nameEntry{def.Name, uint32(id)})
	return id
}

func (b *Builder) RegisterBuilding(def BuildingTemplateDef) ids.BuildingTypeId {
	id := ids.BuildingTypeId(len(b.buildings))
	b.buildings = append(b.buildings, def)
	b.buildingNames.ReplaceOrInsert(nameEntry{def.Name, uint32(id)})
	return id
}

// Build validates cross-references and name uniqueness, then freezes
// the content into a Registry. All errors found are returned together
// (wrapped in a single *BuildErrors), so a content loader sees every
// problem in one pass rather than fixing them one at a time.
func (b *Builder) Build() (*Registry, error) {
	var errs []error

	errs = append(errs, checkDuplicates(b.itemNames, "item")...)
	errs = append(errs, checkDuplicates(b.recipeNames, "recipe")...)
	errs = append(errs, checkDuplicates(b.buildingNames, "building")...)

	for i, r := range b.recipes {
		for _, in := range r.Inputs {
			if int(in.Item) >= len(b.items) {
				errs = append(errs, &InvalidItemRefError{Id: in.Item})
			}
		}
		for _, out := range r.Outputs {
			if int(out.Item) >= len(b.items) {
				errs = append(errs, &InvalidItemRefError{Id: out.Item})
			}
		}
		_ = i
	}
	for _, bd := range b.buildings {
		if bd.Recipe != nil && int(*bd.Recipe) >= len(b.recipes) {
			errs = append(errs, &InvalidRecipeRefError{Id: *bd.Recipe})
		}
	}

	if len(errs) > 0 {
		return nil, &BuildErrors{Errors: errs}
	}

	itemByName := make(map[string]ids.ItemTypeId, len(b.items))
	for i, d := range b.items {
		itemByName[d.Name] = ids.ItemTypeId(i)
	}
	recipeByName := make(map[string]ids.RecipeId, len(b.recipes))
	for i, d := range b.recipes {
		recipeByName[d.Name] = ids.RecipeId(i)
	}
	buildingByName := make(map[string]ids.BuildingTypeId, len(b.buildings))
	for i, d := range b.buildings {
		buildingByName[d.Name] = ids.BuildingTypeId(i)
	}

	nameCache, _ := lru.New[string, uint32](256)

	b.logger.Debug("registry finalized", "items", len(b.items), "recipes", len(b.recipes), "buildings", len(b.buildings))

	return &Registry{
		items:          append([]ItemTypeDef(nil), b.items...),
		recipes:        append([]RecipeDef(nil), b.recipes...),
		buildings:      append([]BuildingTemplateDef(nil), b.buildings...),
		itemByName:     itemByName,
		recipeByName:   recipeByName,
		buildingByName: buildingByName,
		nameCache:      nameCache,
	}, nil
}

func checkDuplicates(tree *btree.BTreeG[nameEntry], kind string) []error {
	var errs []error
	var prev string
	first := true
	tree.Ascend(func(e nameEntry) bool {
		if !first && e.name == prev {
			errs = append(errs, &DuplicateNameError{Name: e.name, Kind: kind})
		}
		prev = e.name
		first = false
		return true
	})
	return errs
}

// BuildErrors aggregates every failure Build found in one pass.
type BuildErrors struct{ Errors []error }

func (e *BuildErrors) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	sort.Strings(msgs)
	return fmt.Sprintf("registry: %d validation error(s): %v", len(msgs), msgs)
}

// Registry is the frozen content catalog. Every definition and name
// map is set once at Build and never written again. nameCache is the
// exception: ItemIdByName adds to it on each cache miss. The cache is
// safe for concurrent use, so a single Registry can still be shared by
// many engines, snapshots and replays.
type Registry struct {
	items     []ItemTypeDef
	recipes   []RecipeDef
	buildings []BuildingTemplateDef

	itemByName     map[string]ids.ItemTypeId
	recipeByName   map[string]ids.RecipeId
	buildingByName map[string]ids.BuildingTypeId

	nameCache *lru.Cache[string, uint32]
}

func (r *Registry) ItemCount() int     { return len(r.items) }
func (r *Registry) RecipeCount() int   { return len(r.recipes) }
func (r *Registry) BuildingCount() int { return len(r.buildings) }

func (r *Registry) Item(id ids.ItemTypeId) (ItemTypeDef, bool) {
	if int(id) >= len(r.items) {
		return ItemTypeDef{}, false
	}
	return r.items[id], true
}

func (r *Registry) Recipe(id ids.RecipeId) (RecipeDef, bool) {
	if int(id) >= len(r.recipes) {
		return RecipeDef{}, false
	}
	return r.recipes[id], true
}

func (r *Registry) Building(id ids.BuildingTypeId) (BuildingTemplateDef, bool) {
	if int(id) >= len(r.buildings) {
		return BuildingTemplateDef{}, false
	}
	return r.buildings[id], true
}

// ItemIdByName looks up an item id by name, consulting a small LRU
// front-cache before the canonical map — content tools tend to re-query
// the same handful of names (recipe inputs/outputs) repeatedly.
func (r *Registry) ItemIdByName(name string) (ids.ItemTypeId, bool) {
	if v, ok := r.nameCache.Get("item:" + name); ok {
		return ids.ItemTypeId(v), true
	}
	id, ok := r.itemByName[name]
	if ok {
		r.nameCache.Add("item:"+name, uint32(id))
	}
	return id, ok
}

func (r *Registry) RecipeIdByName(name string) (ids.RecipeId, bool) {
	id, ok := r.recipeByName[name]
	return id, ok
}

func (r *Registry) BuildingIdByName(name string) (ids.BuildingTypeId, bool) {
	id, ok := r.buildingByName[name]
	return id, ok
}
