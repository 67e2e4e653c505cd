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

package registry

import (
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/require"

	"github.com/foundryforge/factorial/ids"
)

// TestBuildNeverPanicsOnRandomDefinitions throws random item, recipe
// and building definitions at a Builder — including out-of-range item
// and recipe references, duplicate names, and nil/empty slices — and
// checks Build either succeeds cleanly or returns *BuildErrors, never
// panicking on malformed input a content file could plausibly contain.
func TestBuildNeverPanicsOnRandomDefinitions(t *testing.T) {
	f := fuzz.New().NilChance(0.2).NumElements(0, 4)

	for i := 0; i < 200; i++ {
		b := NewBuilder(nil)

		var itemNames []string
		f.Fuzz(&itemNames)
		for _, n := range itemNames {
			var props []PropertyDef
			f.Fuzz(&props)
			b.RegisterItem(ItemTypeDef{Name: n, Properties: props})
		}

		var recipeCount int
		f.NilChance(0).Fuzz(&recipeCount)
		recipeCount %= 5
		if recipeCount < 0 {
			recipeCount = -recipeCount
		}
		for j := 0; j < recipeCount; j++ {
			var name string
			var qty int32
			f.Fuzz(&name)
			f.Fuzz(&qty)
			b.RegisterRecipe(RecipeDef{
				Name:     name,
				Inputs:   []ItemQty{{Item: ids.ItemTypeId(qty), Qty: 1}},
				Duration: 1,
			})
		}

		var buildingCount int
		f.Fuzz(&buildingCount)
		buildingCount %= 5
		if buildingCount < 0 {
			buildingCount = -buildingCount
		}
		for j := 0; j < buildingCount; j++ {
			var name string
			var recipeRef int32
			f.Fuzz(&name)
			f.Fuzz(&recipeRef)
			id := ids.RecipeId(recipeRef)
			b.RegisterBuilding(BuildingTemplateDef{Name: name, Recipe: &id})
		}

		reg, err := b.Build()
		if err != nil {
			_, ok := err.(*BuildErrors)
			require.True(t, ok, "Build must only ever fail with *BuildErrors, got %T", err)
			continue
		}
		require.NotNil(t, reg)
	}
}
