package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	payloads := map[string][]byte{
		"empty":      {},
		"short":      []byte("ABCDEF"),
		"zero heavy": make([]byte, 4096),
		"repetitive": bytes.Repeat([]byte("record-"), 500),
	}

	for _, name := range []string{None, Snappy, Zstd, LZ4} {
		algo, err := Lookup(name)
		require.NoError(t, err)

		for label, data := range payloads {
			t.Run(name+"/"+label, func(t *testing.T) {
				frame, err := Seal(algo, data)
				require.NoError(t, err)
				assert.Equal(t, algo.Tag(), frame[0])

				out, err := Open(frame)
				require.NoError(t, err)
				assert.True(t, bytes.Equal(data, out), "payload mismatch")
			})
		}
	}
}

func TestLookup(t *testing.T) {
	a, err := Lookup("")
	require.NoError(t, err)
	assert.Equal(t, None, a.Name())

	a, err = Lookup("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, Zstd, a.Name())

	_, err = Lookup("brotli")
	assert.Error(t, err)

	assert.Equal(t, []string{LZ4, None, Snappy, Zstd}, Names())
}

func TestOpenRejectsBadFrames(t *testing.T) {
	_, err := Open(nil)
	assert.Error(t, err)

	_, err = Open([]byte{0x7f, 1, 2})
	assert.ErrorContains(t, err, "unknown compression tag")
}

func TestCompressionShrinksRepetitiveData(t *testing.T) {
	data := bytes.Repeat([]byte{0}, 8192)
	for _, name := range []string{Snappy, Zstd, LZ4} {
		algo, err := Lookup(name)
		require.NoError(t, err)
		frame, err := Seal(algo, data)
		require.NoError(t, err)
		assert.Less(t, len(frame), len(data), name)
	}
}
