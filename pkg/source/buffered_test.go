package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferedReturnsWindowWithoutAdvancing(t *testing.T) {
	b := NewBuffered([]byte("window"))

	c1, hasMore1, err := b.NextChunk(2)
	assert.NoError(t, err)
	assert.Equal(t, []byte("window"), c1)
	assert.False(t, hasMore1)

	c2, _, err := b.NextChunk(0)
	assert.NoError(t, err)
	assert.Equal(t, c1, c2)
}

func TestBufferedUpdateReplacesWindow(t *testing.T) {
	b := NewBuffered([]byte("first"))
	assert.True(t, b.HasMoreData())

	b.Update([]byte("second"))
	chunk, _, err := b.NextChunk(0)
	assert.NoError(t, err)
	assert.Equal(t, []byte("second"), chunk)

	b.Update(nil)
	assert.False(t, b.HasMoreData())
}

func TestBufferedIsReadOnly(t *testing.T) {
	b := NewBuffered([]byte("x"))
	_, err := b.WriteChunk([]byte("y"))
	assert.Error(t, err)
}
