package tablestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/ulikunitz/xz/lzma"
)

var ErrBadHeader = errors.New("tablestore: unknown value header")

// Value headers written by the compressed store.
const (
	headerRaw  byte = 0
	headerLZMA byte = 1
)

type compressed struct {
	Store
	above int
}

// Compressed wraps s so that values of at least above bytes are stored lzma
// compressed. Every value gets a one byte header, so a compressed store can
// only read values it wrote itself.
func Compressed(s Store, above int) Store {
	return &compressed{Store: s, above: above}
}

func (c *compressed) encode(key string, value []byte) ([]byte, error) {
	if len(value) < c.above {
		return append([]byte{headerRaw}, value...), nil
	}
	packed, err := compressData(value)
	if err != nil {
		return nil, fmt.Errorf("compress %s: %w", key, err)
	}
	return append([]byte{headerLZMA}, packed...), nil
}

func (c *compressed) Put(ctx context.Context, key string, value []byte) error {
	v, err := c.encode(key, value)
	if err != nil {
		return err
	}
	return c.Store.Put(ctx, key, v)
}

func (c *compressed) PutBatch(ctx context.Context, values map[string][]byte) error {
	encoded := make(map[string][]byte, len(values))
	for k, value := range values {
		v, err := c.encode(k, value)
		if err != nil {
			return err
		}
		encoded[k] = v
	}
	return PutAll(ctx, c.Store, encoded)
}

func (c *compressed) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := c.Store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(v) == 0 {
		return nil, fmt.Errorf("%w: empty value under %s", ErrBadHeader, key)
	}
	switch v[0] {
	case headerRaw:
		return v[1:], nil
	case headerLZMA:
		out, err := decompressData(v[1:])
		if err != nil {
			return nil, fmt.Errorf("decompress %s: %w", key, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %d under %s", ErrBadHeader, v[0], key)
	}
}

func compressData(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := lzma.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	_, err = w.Write(data)
	if err != nil {
		return nil, err
	}

	err = w.Close()
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decompressData(data []byte) ([]byte, error) {
	r, err := lzma.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	_, err = buf.ReadFrom(r)
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
