// Copyright 2026 The Foundryforge Authors
// This file is part of Factorial.

package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foundryforge/factorial/ids"
)

func TestBuildSucceeds(t *testing.T) {
	b := NewBuilder(nil)
	ore := b.RegisterItem(ItemTypeDef{Name: "ore"})
	plate := b.RegisterItem(ItemTypeDef{Name: "plate"})
	recipe := b.RegisterRecipe(RecipeDef{
		Name:     "smelt",
		Inputs:   []ItemQty{{Item: ore, Qty: 2}},
		Outputs:  []ItemQty{{Item: plate, Qty: 1}},
		Duration: 5,
	})
	b.RegisterBuilding(BuildingTemplateDef{Name: "smelter", Recipe: &recipe})

	reg, err := b.Build()
	require.NoError(t, err)
	require.Equal(t, 2, reg.ItemCount())
	require.Equal(t, 1, reg.RecipeCount())
	require.Equal(t, 1, reg.BuildingCount())

	id, ok := reg.ItemIdByName("ore")
	require.True(t, ok)
	require.Equal(t, ore, id)
}

func TestBuildCatchesDuplicateName(t *testing.T) {
	b := NewBuilder(nil)
	b.RegisterItem(ItemTypeDef{Name: "ore"})
	b.RegisterItem(ItemTypeDef{Name: "ore"})

	_, err := b.Build()
	require.Error(t, err)
	buildErr, ok := err.(*BuildErrors)
	require.True(t, ok)
	require.Len(t, buildErr.Errors, 1)
}

func TestBuildCatchesInvalidItemRef(t *testing.T) {
	b := NewBuilder(nil)
	b.RegisterRecipe(RecipeDef{
		Name:    "bogus",
		Inputs:  []ItemQty{{Item: ids.ItemTypeId(99), Qty: 1}},
		Outputs: nil,
	})
	_, err := b.Build()
	require.Error(t, err)
}

func TestBuildCatchesInvalidRecipeRef(t *testing.T) {
	b := NewBuilder(nil)
	bogus := ids.RecipeId(7)
	b.RegisterBuilding(BuildingTemplateDef{Name: "x", Recipe: &bogus})
	_, err := b.Build()
	require.Error(t, err)
}
