package tablestore

import (
	"context"
	"errors"

	"github.com/i5heu/axis-orbits/internal/keyValStore"
	"github.com/sirupsen/logrus"
)

type badgerStore struct {
	kv  *keyValStore.KeyValStore
	log *logrus.Logger
}

func openBadger(cfg Config, inMemory bool) (Store, error) {
	kv, err := keyValStore.NewKeyValStore(keyValStore.StoreConfig{
		Paths:            []string{cfg.Path},
		MinimumFreeSpace: cfg.MinimumFreeGB,
		InMemory:         inMemory,
		Logger:           cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &badgerStore{kv: kv, log: cfg.Logger}, nil
}

func (b *badgerStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := b.kv.Read([]byte(key))
	if errors.Is(err, keyValStore.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return v, err
}

func (b *badgerStore) Put(ctx context.Context, key string, value []byte) error {
	return b.kv.Write([]byte(key), value)
}

func (b *badgerStore) PutBatch(ctx context.Context, values map[string][]byte) error {
	batch := make([][2][]byte, 0, len(values))
	for _, k := range sortedKeys(values) {
		batch = append(batch, [2][]byte{[]byte(k), values[k]})
	}
	return b.kv.WriteBatch(batch)
}

func (b *badgerStore) Delete(ctx context.Context, key string) error {
	return b.kv.Delete([]byte(key))
}

func (b *badgerStore) Has(ctx context.Context, key string) (bool, error) {
	exists, err := b.kv.BatchCheckKeyExistence([][]byte{[]byte(key)})
	if err != nil {
		return false, err
	}
	return exists[key], nil
}

func (b *badgerStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	raw, err := b.kv.KeysWithPrefix([]byte(prefix))
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(raw))
	for i, k := range raw {
		keys[i] = string(k)
	}
	return keys, nil
}

func (b *badgerStore) Close() error {
	reads, writes := b.kv.Stats()
	b.log.WithFields(logrus.Fields{
		"reads":  reads,
		"writes": writes,
	}).Debug("closing badger table store")
	return b.kv.Close()
}
