package tablestore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/i5heu/axis-orbits/internal/chunker"
	"google.golang.org/protobuf/encoding/protowire"
)

// PutBlob stores the contents of r under key, split into chunks of
// chunkSize bytes stored under key + "/chunk/<n>". The chunks of a previous
// blob under key are removed first.
func PutBlob(ctx context.Context, s Store, key string, r io.Reader, chunkSize int) error {
	if err := DeleteBlob(ctx, s, key); err != nil {
		return err
	}
	c := chunker.NewChunker(r, chunkSize)
	chunks := make(map[string][]byte)
	var count, total uint64
	for {
		chunk, err := c.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("split %s: %w", key, err)
		}
		chunks[chunkKey(key, count)] = chunk
		count++
		total += uint64(len(chunk))
	}
	if err := PutAll(ctx, s, chunks); err != nil {
		return err
	}
	head := protowire.AppendVarint(nil, count)
	head = protowire.AppendVarint(head, total)
	return s.Put(ctx, key, head)
}

// GetBlob writes the blob stored under key to w.
func GetBlob(ctx context.Context, s Store, key string, w io.Writer) error {
	count, total, err := blobHead(ctx, s, key)
	if err != nil {
		return err
	}
	var written uint64
	for i := uint64(0); i < count; i++ {
		chunk, err := s.Get(ctx, chunkKey(key, i))
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: chunk %d of %s", ErrNotFound, i, key)
		}
		if err != nil {
			return err
		}
		n, err := w.Write(chunk)
		if err != nil {
			return err
		}
		written += uint64(n)
	}
	if written != total {
		return fmt.Errorf("tablestore: blob %s has %d bytes, header says %d", key, written, total)
	}
	return nil
}

// DeleteBlob removes a blob and its chunks. Missing blobs are ignored.
func DeleteBlob(ctx context.Context, s Store, key string) error {
	if err := DeletePrefix(ctx, s, key+"/chunk/"); err != nil {
		return err
	}
	return s.Delete(ctx, key)
}

func blobHead(ctx context.Context, s Store, key string) (count, total uint64, err error) {
	head, err := s.Get(ctx, key)
	if err != nil {
		return 0, 0, err
	}
	count, n := protowire.ConsumeVarint(head)
	if n < 0 {
		return 0, 0, fmt.Errorf("tablestore: blob header of %s: %w", key, protowire.ParseError(n))
	}
	total, m := protowire.ConsumeVarint(head[n:])
	if m < 0 {
		return 0, 0, fmt.Errorf("tablestore: blob header of %s: %w", key, protowire.ParseError(m))
	}
	return count, total, nil
}

func chunkKey(key string, i uint64) string {
	return fmt.Sprintf("%s/chunk/%08d", key, i)
}
