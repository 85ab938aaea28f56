package dataset

import (
	"errors"
	"testing"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/keyds/pkg/access"
	"github.com/ssargent/keyds/pkg/codec"
)

func seedDuplicates(t *testing.T, m access.Method) *Handle {
	t.Helper()
	h := allocTest(t, m)
	for _, r := range [][]byte{
		record("010", "a"),
		record("010", "b"),
		record("010", "c"),
		record("020", "d"),
	} {
		require.NoError(t, h.Write(r))
	}
	return h
}

func names(t *testing.T, h *Handle) []string {
	t.Helper()
	c := codec.NewCodec(h.Layout())
	recs, err := h.Scan(nil, KeyFirst, 0)
	require.NoError(t, err)
	var out []string
	for _, r := range recs {
		v, err := c.Decode(r)
		require.NoError(t, err)
		out = append(out, v["key"]+":"+v["name"])
	}
	return out
}

func TestFindUpdate_ConsecutiveDuplicates(t *testing.T) {
	h := seedDuplicates(t, access.NewMemory(access.WithDuplicateKeys()))
	c := codec.NewCodec(h.Layout())
	patch, err := c.EncodePatch(codec.Values{"name": "x"})
	require.NoError(t, err)

	n, err := h.FindUpdate([]byte("010"), patch)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"010:x", "010:x", "010:x", "020:d"}, names(t, h))

	n, err = h.FindUpdate([]byte("030"), patch)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestFindUpdate_NilPatch(t *testing.T) {
	h := seedDuplicates(t, access.NewMemory(access.WithDuplicateKeys()))
	_, err := h.FindUpdate([]byte("010"), nil)
	assert.Error(t, err)
}

func TestFindDelete_ConsecutiveDuplicates(t *testing.T) {
	h := seedDuplicates(t, access.NewMemory(access.WithDuplicateKeys()))

	n, err := h.FindDelete([]byte("010"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"020:d"}, names(t, h))

	n, err = h.FindDelete([]byte("030"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestFindDelete_LastRecordStopsAtEndOfData(t *testing.T) {
	h := seedDuplicates(t, access.NewMemory(access.WithDuplicateKeys()))
	n, err := h.FindDelete([]byte("020"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFindDelete_PartialFailure(t *testing.T) {
	calls := 0
	boom := errors.New("device error")
	mem := access.NewMemory(access.WithDuplicateKeys(), access.WithFault(func(op string, key []byte) error {
		if op != "delete" {
			return nil
		}
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	}))
	h := seedDuplicates(t, mem)

	n, err := h.FindDelete([]byte("010"))
	assert.Equal(t, 1, n)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, CodeIO, CodeOf(err))
	assert.Equal(t, []string{"010:b", "010:c", "020:d"}, names(t, h))
}

func TestFindApply_Pebble(t *testing.T) {
	m := access.NewPebble(access.WithFS(vfs.NewMem()), access.WithSync(false))
	h := allocTest(t, m)
	require.NoError(t, h.Write(record("010", "a")))
	require.NoError(t, h.Write(record("020", "b")))

	c := codec.NewCodec(h.Layout())
	patch, err := c.EncodePatch(codec.Values{"name": "zz"})
	require.NoError(t, err)

	n, err := h.FindUpdate([]byte("010"), patch)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = h.FindDelete([]byte("020"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, []string{"010:zz"}, names(t, h))
}
