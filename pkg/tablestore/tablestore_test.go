package tablestore

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openAll(t *testing.T) map[string]Store {
	t.Helper()
	stores := make(map[string]Store)
	for _, backend := range []string{BackendMemory, BackendSQLite, BackendBadger, BackendBadgerMemory} {
		for _, above := range []int{-1, 16} {
			s, err := Open(Config{Backend: backend, Path: t.TempDir(), CompressAbove: above})
			require.NoError(t, err, backend)
			name := backend
			if above > 0 {
				name += "+lzma"
			}
			stores[name] = s
			t.Cleanup(func() { s.Close() })
		}
	}
	return stores
}

func TestStores(t *testing.T) {
	ctx := context.Background()
	big := bytes.Repeat([]byte("2A 2B 2C "), 200)
	for name, s := range openAll(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "orbits/2A")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Put(ctx, "orbits/2A", []byte{1, 2, 3}))
			require.NoError(t, s.Put(ctx, "orbits/2B", big))
			require.NoError(t, s.Put(ctx, "transitions", []byte("x")))
			require.NoError(t, s.Put(ctx, "orbits/2A", []byte{4, 5}))

			v, err := s.Get(ctx, "orbits/2A")
			require.NoError(t, err)
			assert.Equal(t, []byte{4, 5}, v)
			v, err = s.Get(ctx, "orbits/2B")
			require.NoError(t, err)
			assert.Equal(t, big, v)

			ok, err := s.Has(ctx, "transitions")
			require.NoError(t, err)
			assert.True(t, ok)

			keys, err := s.Keys(ctx, "orbits/")
			require.NoError(t, err)
			assert.Equal(t, []string{"orbits/2A", "orbits/2B"}, keys)

			require.NoError(t, DeletePrefix(ctx, s, "orbits/"))
			ok, err = s.Has(ctx, "orbits/2B")
			require.NoError(t, err)
			assert.False(t, ok)
			keys, err = s.Keys(ctx, "")
			require.NoError(t, err)
			assert.Equal(t, []string{"transitions"}, keys)
		})
	}
}

func TestPutAll(t *testing.T) {
	ctx := context.Background()
	values := map[string][]byte{
		"suborbit_map":   {1},
		"suborbit_reps":  bytes.Repeat([]byte{2}, 100),
		"suborbit_sizes": {},
	}
	for name, s := range openAll(t) {
		t.Run(name, func(t *testing.T) {
			_, ok := s.(Batcher)
			assert.True(t, ok)
			require.NoError(t, PutAll(ctx, s, values))
			for k, want := range values {
				v, err := s.Get(ctx, k)
				require.NoError(t, err, k)
				assert.Equal(t, len(want), len(v), k)
				assert.True(t, bytes.Equal(want, v), k)
			}
		})
	}

	// stores without batches get one put per value
	rec := &recording{Store: NewMemory()}
	require.NoError(t, PutAll(ctx, rec, values))
	assert.Equal(t, []string{"suborbit_map", "suborbit_reps", "suborbit_sizes"}, rec.puts)
}

// recording hides the batch support of its store and records the puts.
type recording struct {
	Store
	puts []string
}

func (r *recording) Put(ctx context.Context, key string, value []byte) error {
	r.puts = append(r.puts, key)
	return r.Store.Put(ctx, key, value)
}

func TestBadgerCloseLogsStats(t *testing.T) {
	ctx := context.Background()
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	s, err := Open(Config{Backend: BackendBadgerMemory, CompressAbove: -1, Logger: log})
	require.NoError(t, err)

	require.NoError(t, PutAll(ctx, s, map[string][]byte{"a": {1}, "b": {2}}))
	_, err = s.Get(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "closing badger table store", entry.Message)
	assert.Equal(t, uint64(2), entry.Data["writes"])
	assert.Equal(t, uint64(1), entry.Data["reads"])
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(Config{Backend: "etcd", Path: t.TempDir()})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestCompressedShrinksLargeValues(t *testing.T) {
	ctx := context.Background()
	raw := NewMemory()
	s := Compressed(raw, 64)
	value := bytes.Repeat([]byte{7}, 10000)
	require.NoError(t, s.Put(ctx, "k", value))

	stored, err := raw.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, headerLZMA, stored[0])
	assert.Less(t, len(stored), len(value)/10)

	require.NoError(t, raw.Put(ctx, "bad", []byte{9, 1}))
	_, err = s.Get(ctx, "bad")
	assert.ErrorIs(t, err, ErrBadHeader)
}

func TestLoadOrCompute(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	calls := 0
	compute := func(context.Context) ([]byte, error) {
		calls++
		return []byte("table"), nil
	}

	for i := 0; i < 3; i++ {
		v, err := LoadOrCompute(ctx, s, "sizes", compute)
		require.NoError(t, err)
		assert.Equal(t, []byte("table"), v)
	}
	assert.Equal(t, 1, calls)

	boom := errors.New("boom")
	_, err := LoadOrCompute(ctx, s, "other", func(context.Context) ([]byte, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	_, err = LoadOrCompute(ctx, lossy{s}, "lost", compute)
	assert.ErrorIs(t, err, ErrStillMissing)
}

// lossy drops every write.
type lossy struct{ Store }

func (lossy) Put(context.Context, string, []byte) error { return nil }

func TestBlobs(t *testing.T) {
	ctx := context.Background()
	for name, s := range openAll(t) {
		t.Run(name, func(t *testing.T) {
			text := strings.Repeat("orb:  3 (0,1)\n", 50)
			require.NoError(t, PutBlob(ctx, s, "certificate", strings.NewReader(text), 100))

			var out bytes.Buffer
			require.NoError(t, GetBlob(ctx, s, "certificate", &out))
			assert.Equal(t, text, out.String())

			keys, err := s.Keys(ctx, "certificate/chunk/")
			require.NoError(t, err)
			assert.Len(t, keys, 7)

			// a shorter blob replaces all old chunks
			require.NoError(t, PutBlob(ctx, s, "certificate", strings.NewReader("end:\n"), 100))
			keys, err = s.Keys(ctx, "certificate/chunk/")
			require.NoError(t, err)
			assert.Len(t, keys, 1)

			require.NoError(t, DeleteBlob(ctx, s, "certificate"))
			assert.ErrorIs(t, GetBlob(ctx, s, "certificate", &out), ErrNotFound)
		})
	}
}
