// Copyright 2026 The Foundryforge Authors
// This file is part of Factorial.

package serialize

import "testing"

import "github.com/stretchr/testify/require"

func TestCanMigrateCurrentVersionAlwaysTrue(t *testing.T) {
	require.True(t, canMigrate(schemaVersion))
}

func TestCanMigrateUnknownFutureVersionFalse(t *testing.T) {
	require.False(t, canMigrate(schemaVersion+1))
}
