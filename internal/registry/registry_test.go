package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndGet(t *testing.T) {
	r, err := Init(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, r.Register("user-1", "Alice"))
	assert.Equal(t, "Alice", r.Get("user-1"))
	assert.Equal(t, "", r.Get("missing"))
}

func TestRegisterUnchangedNameIsNoop(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	require.NoError(t, err)

	require.NoError(t, r.Register("user-1", "Alice"))
	path := filepath.Join(dir, "names.json")
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, r.Register("user-1", "Alice"))
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSnapshotIsACopy(t *testing.T) {
	r, err := Init(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, r.Register("user-1", "Alice"))

	snap := r.Snapshot()
	snap["user-1"] = "Mutated"
	assert.Equal(t, "Alice", r.Get("user-1"))
}

func TestLoadReflectsCrossProcessWrite(t *testing.T) {
	dir := t.TempDir()
	writer, err := Init(dir)
	require.NoError(t, err)
	require.NoError(t, writer.Register("user-1", "Alice"))

	reader, err := Init(dir)
	require.NoError(t, err)
	assert.Equal(t, "Alice", reader.Get("user-1"))

	require.NoError(t, writer.Register("user-2", "Bob"))
	require.NoError(t, reader.Load())
	assert.Equal(t, "Bob", reader.Get("user-2"))
}

func TestInitMissingFileIsNotError(t *testing.T) {
	_, err := Init(filepath.Join(t.TempDir(), "nested", "deeper"))
	require.NoError(t, err)
}
