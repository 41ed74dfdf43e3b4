package chunker

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChunker(t *testing.T) {
	data := bytes.Repeat([]byte("axis: 2A ()\n"), 100)
	c := NewChunker(bytes.NewReader(data), 256)

	var joined []byte
	var n int
	for {
		chunk, err := c.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		assert.LessOrEqual(t, len(chunk), 256)
		joined = append(joined, chunk...)
		n++
	}
	assert.Equal(t, data, joined)
	assert.Equal(t, 5, n)
}
