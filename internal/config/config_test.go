package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
dataPath: /tmp/orbits
store: sqlite
seed: 42
model:
  inner: 7
  axisSize: 3
logJSON: true
`), 0o644))

	c, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/orbits", c.DataPath)
	assert.Equal(t, "sqlite", c.Store)
	assert.Equal(t, int64(42), *c.Seed)
	assert.Equal(t, Model{Inner: 7, AxisSize: 3}, c.Model)
	assert.True(t, c.LogJSON)
	assert.Equal(t, 8, c.SampleSize)
	assert.Equal(t, 10, c.CentralizerGenerators)
	assert.Equal(t, "info", c.LogLevel)
}

func TestLoadSeed(t *testing.T) {
	dir := t.TempDir()
	zero := filepath.Join(dir, "zero.yaml")
	require.NoError(t, os.WriteFile(zero, []byte("seed: 0\n"), 0o644))
	c, err := Load(zero, false)
	require.NoError(t, err)
	assert.Equal(t, int64(0), *c.Seed)

	unset := filepath.Join(dir, "unset.yaml")
	require.NoError(t, os.WriteFile(unset, []byte("store: memory\n"), 0o644))
	c, err = Load(unset, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), *c.Seed)
}

func TestLoadMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	c, err := Load(missing, true)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)

	_, err = Load(missing, false)
	assert.Error(t, err)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: localhost\n"), 0o644))
	_, err := Load(path, false)
	assert.Error(t, err)
}
