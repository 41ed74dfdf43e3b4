package chunker

import (
	"io"

	boxochunker "github.com/ipfs/boxo/chunker"
)

// DefaultSize is the chunk size used when none is given.
const DefaultSize = 256 * 1024

// Chunker splits a stream of data into chunks.
type Chunker interface {
	// Next returns the next chunk of data.
	// It returns io.EOF when there are no more chunks.
	Next() ([]byte, error)
}

// NewChunker creates a Chunker cutting r into pieces of size bytes using the
// size splitter from boxo/chunker. A size of zero or less selects DefaultSize.
func NewChunker(r io.Reader, size int) Chunker {
	if size <= 0 {
		size = DefaultSize
	}
	return &boxoChunkerWrapper{
		splitter: boxochunker.NewSizeSplitter(r, int64(size)),
	}
}

type boxoChunkerWrapper struct {
	splitter boxochunker.Splitter
}

func (c *boxoChunkerWrapper) Next() ([]byte, error) {
	return c.splitter.NextBytes()
}
