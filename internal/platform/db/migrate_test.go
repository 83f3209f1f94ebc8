package db

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	src, err := newMigrationSource()
	require.NoError(t, err)
	defer func() { _ = src.Close() }()

	version, err := src.First()
	require.NoError(t, err)
	assert.EqualValues(t, 1, version)

	up, name, err := src.ReadUp(version)
	require.NoError(t, err)
	body, err := io.ReadAll(up)
	_ = up.Close()
	require.NoError(t, err)
	assert.Equal(t, "permission_matrix", name)
	assert.Contains(t, string(body), "CREATE TABLE")

	down, _, err := src.ReadDown(version)
	require.NoError(t, err)
	_ = down.Close()
}
