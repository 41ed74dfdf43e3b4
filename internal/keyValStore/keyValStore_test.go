package keyValStore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyValStore(t *testing.T) {
	for _, inMemory := range []bool{true, false} {
		kv, err := NewKeyValStore(StoreConfig{Paths: []string{t.TempDir()}, InMemory: inMemory})
		require.NoError(t, err)

		require.NoError(t, kv.Write([]byte("orbits/2A"), []byte{1, 2, 3}))
		require.NoError(t, kv.WriteBatch([][2][]byte{
			{[]byte("orbits/2B"), []byte{4}},
			{[]byte("transitions"), []byte{5}},
		}))

		v, err := kv.Read([]byte("orbits/2A"))
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3}, v)

		keys, err := kv.KeysWithPrefix([]byte("orbits/"))
		require.NoError(t, err)
		assert.Equal(t, [][]byte{[]byte("orbits/2A"), []byte("orbits/2B")}, keys)

		require.NoError(t, kv.Delete([]byte("orbits/2A")))
		_, err = kv.Read([]byte("orbits/2A"))
		assert.ErrorIs(t, err, ErrKeyNotFound)

		exists, err := kv.BatchCheckKeyExistence([][]byte{[]byte("orbits/2A"), []byte("transitions")})
		require.NoError(t, err)
		assert.Equal(t, map[string]bool{"orbits/2A": false, "transitions": true}, exists)

		reads, writes := kv.Stats()
		assert.Positive(t, reads)
		assert.Equal(t, uint64(4), writes)
		require.NoError(t, kv.Close())
	}
}

func TestCheckConfig(t *testing.T) {
	_, err := NewKeyValStore(StoreConfig{})
	assert.Error(t, err)

	_, err = NewKeyValStore(StoreConfig{Paths: []string{"/does/not/exist"}})
	assert.Error(t, err)

	_, err = NewKeyValStore(StoreConfig{Paths: []string{t.TempDir()}, MinimumFreeSpace: 1 << 40})
	assert.Error(t, err)
}
