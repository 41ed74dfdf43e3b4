// Package tablestore persists the named tables of a computation. A table is
// an opaque blob under a string key and is always replaced as a whole.
package tablestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
)

var (
	ErrNotFound       = errors.New("tablestore: key not found")
	ErrStillMissing   = errors.New("tablestore: key still missing after compute")
	ErrUnknownBackend = errors.New("tablestore: unknown backend")
)

// Backends accepted by Open.
const (
	BackendBadger       = "badger"
	BackendBadgerMemory = "badger-memory"
	BackendSQLite       = "sqlite"
	BackendMemory       = "memory"
)

// DefaultCompressAbove is the value size from which tables are compressed.
const DefaultCompressAbove = 4096

// Store is a key value store for tables.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Has(ctx context.Context, key string) (bool, error)
	// Keys returns the keys starting with prefix in ascending order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Batcher is implemented by stores that can write several tables in one
// batch.
type Batcher interface {
	PutBatch(ctx context.Context, values map[string][]byte) error
}

// PutAll stores every value, as one batch if s is a Batcher.
func PutAll(ctx context.Context, s Store, values map[string][]byte) error {
	if b, ok := s.(Batcher); ok {
		return b.PutBatch(ctx, values)
	}
	for _, k := range sortedKeys(values) {
		if err := s.Put(ctx, k, values[k]); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(values map[string][]byte) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type Config struct {
	Backend string // badger (default), badger-memory, sqlite or memory
	Path    string // directory holding the store files
	// MinimumFreeGB is the free disk space the badger backend requires.
	MinimumFreeGB int
	// CompressAbove is the value size from which values are xz compressed,
	// DefaultCompressAbove when zero, never when negative.
	CompressAbove int
	Logger        *logrus.Logger
}

// Open opens the store described by cfg.
func Open(cfg Config) (Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendBadger
	}
	if cfg.Backend != BackendMemory && cfg.Backend != BackendBadgerMemory {
		if cfg.Path == "" {
			return nil, errors.New("tablestore: no path provided in configuration")
		}
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("tablestore: create %s: %w", cfg.Path, err)
		}
	}

	var (
		s   Store
		err error
	)
	switch cfg.Backend {
	case BackendBadger:
		s, err = openBadger(cfg, false)
	case BackendBadgerMemory:
		s, err = openBadger(cfg, true)
	case BackendSQLite:
		s, err = openSQLite(filepath.Join(cfg.Path, "tables.db"))
	case BackendMemory:
		s = NewMemory()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	cfg.Logger.WithFields(logrus.Fields{
		"backend": cfg.Backend,
		"path":    cfg.Path,
	}).Debug("table store opened")

	switch {
	case cfg.CompressAbove < 0:
		return s, nil
	case cfg.CompressAbove == 0:
		return Compressed(s, DefaultCompressAbove), nil
	default:
		return Compressed(s, cfg.CompressAbove), nil
	}
}

// LoadOrCompute returns the table under key. If it is missing, compute is
// called, its result stored and the key loaded again.
func LoadOrCompute(ctx context.Context, s Store, key string, compute func(context.Context) ([]byte, error)) ([]byte, error) {
	v, err := s.Get(ctx, key)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	v, err = compute(ctx)
	if err != nil {
		return nil, fmt.Errorf("compute %s: %w", key, err)
	}
	if err := s.Put(ctx, key, v); err != nil {
		return nil, fmt.Errorf("store %s: %w", key, err)
	}

	v, err = s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrStillMissing, key)
	}
	return v, err
}

// DeletePrefix removes every key starting with prefix.
func DeletePrefix(ctx context.Context, s Store, prefix string) error {
	keys, err := s.Keys(ctx, prefix)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := s.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}
