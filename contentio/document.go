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

// Package contentio loads registry content (item types, recipes,
// building templates) from human-authored TOML files into a
// registry.Builder. It sits outside the simulation core: nothing here
// runs on the tick path, and a content directory can be read once at
// startup and discarded.
package contentio

// PropertyDoc is one stateful-item property slot, as written in a
// content file.
type PropertyDoc struct {
	Name    string  `toml:"name"`
	Size    string  `toml:"size"` // "f64", "f32", "u32", or "u8"
	Default float64 `toml:"default"`
}

// ItemDoc is one item type definition, named rather than id-addressed
// since content files are hand-written.
type ItemDoc struct {
	Name       string        `toml:"name"`
	Properties []PropertyDoc `toml:"properties,omitempty"`
}

// ItemQtyDoc pairs an item name with a quantity, used by recipe
// inputs and outputs.
type ItemQtyDoc struct {
	Item string `toml:"item"`
	Qty  uint32 `toml:"qty"`
}

// RecipeDoc is one Fixed-processor recipe.
type RecipeDoc struct {
	Name     string       `toml:"name"`
	Inputs   []ItemQtyDoc `toml:"inputs,omitempty"`
	Outputs  []ItemQtyDoc `toml:"outputs,omitempty"`
	Duration uint64       `toml:"duration"`
}

// BuildingDoc is one building template. Recipe is empty for kinds
// whose processor variant doesn't consult a recipe.
type BuildingDoc struct {
	Name   string `toml:"name"`
	Recipe string `toml:"recipe,omitempty"`
}

// Document is the shape of one content file. A directory of content
// is loaded as many Documents and merged before any name is resolved,
// so items, recipes and buildings may be split freely across files in
// whatever grouping an author finds convenient.
type Document struct {
	Items     []ItemDoc     `toml:"items,omitempty"`
	Recipes   []RecipeDoc   `toml:"recipes,omitempty"`
	Buildings []BuildingDoc `toml:"buildings,omitempty"`
}
