package identity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreate_StableAcrossCalls(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	first, err := LoadOrCreate(dir)
	require.NoError(t, err)
	_, err = uuid.Parse(first)
	require.NoError(t, err)

	second, err := LoadOrCreate(dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoadOrCreate_DistinctInstalls(t *testing.T) {
	a, err := LoadOrCreate(t.TempDir())
	require.NoError(t, err)
	b, err := LoadOrCreate(t.TempDir())
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestLoadOrCreate_RejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, fileName), []byte("garbage"), 0o600))

	_, err := LoadOrCreate(dir)
	assert.Error(t, err)
}
