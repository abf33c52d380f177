package source

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ovformat "github.com/openvocs/ovformat"
)

func TestFileWriteThenReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roundtrip.bin")

	w, err := Open(path, ovformat.ModeWrite)
	require.NoError(t, err)

	data := []byte("openvocs format pipeline")
	n, err := w.WriteChunk(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	require.NoError(t, w.Close())

	r, err := Open(path, ovformat.ModeRead)
	require.NoError(t, err)
	defer r.Close()

	var got []byte
	for r.HasMoreData() {
		chunk, _, err := r.NextChunk(5)
		require.NoError(t, err)
		if len(chunk) == 0 {
			break
		}
		got = append(got, chunk...)
	}
	assert.Equal(t, data, got)
}

func TestFileOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overwrite.bin")

	w, err := Open(path, ovformat.ModeWrite)
	require.NoError(t, err)

	_, err = w.WriteChunk([]byte("0123456789"))
	require.NoError(t, err)

	_, err = w.Overwrite(2, []byte("XY"))
	require.NoError(t, err)

	mem, err := w.Memory()
	require.NoError(t, err)
	assert.Equal(t, []byte("01XY456789"), mem)
	require.NoError(t, w.Close())
}
