package access

import (
	"errors"
	"fmt"
	"testing"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/keyds/pkg/compress"
)

var testAttrs = Attributes{RecordLength: 8, KeyOffset: 2, KeyLength: 3}

// rec builds an 8 byte record "<tag><key><pad>" for the test attributes
func rec(tag, key string) []byte {
	b := make([]byte, 8)
	copy(b, tag)
	copy(b[2:5], key)
	return b
}

func methods() map[string]func() Method {
	return map[string]func() Method{
		"memory": func() Method { return NewMemory() },
		"pebble": func() Method { return NewPebble(WithFS(vfs.NewMem()), WithSync(false)) },
		"pebble-snappy": func() Method {
			a, _ := compress.Lookup(compress.Snappy)
			return NewPebble(WithFS(vfs.NewMem()), WithCompression(a))
		},
	}
}

func openNew(t *testing.T, m Method) File {
	t.Helper()
	require.NoError(t, m.Allocate("/data/ds1", testAttrs))
	f, err := m.Open("/data/ds1", ReadWrite)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func readAll(t *testing.T, f File) []string {
	t.Helper()
	var keys []string
	for {
		r, err := f.Read()
		if IsEndOfData(err) {
			return keys
		}
		require.NoError(t, err)
		keys = append(keys, string(r[2:5]))
	}
}

func TestMethod_Catalog(t *testing.T) {
	for name, newMethod := range methods() {
		t.Run(name, func(t *testing.T) {
			m := newMethod()

			ok, err := m.Exists("/data/ds1")
			require.NoError(t, err)
			assert.False(t, ok)

			_, err = m.Open("/data/ds1", ReadWrite)
			assert.True(t, IsNotAllocated(err), "got %v", err)

			require.NoError(t, m.Allocate("/data/ds1", testAttrs))
			ok, err = m.Exists("/data/ds1")
			require.NoError(t, err)
			assert.True(t, ok)

			err = m.Allocate("/data/ds1", testAttrs)
			var ae *Error
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, FeedbackAllocated, ae.Feedback)

			f, err := m.Open("/data/ds1", ReadWrite)
			require.NoError(t, err)
			assert.Equal(t, testAttrs, f.Attributes())

			// an open dataset still exists and cannot be removed
			ok, err = m.Exists("/data/ds1")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.True(t, IsInUse(m.Deallocate("/data/ds1")))

			require.NoError(t, f.Close())
			require.NoError(t, m.Deallocate("/data/ds1"))
			ok, err = m.Exists("/data/ds1")
			require.NoError(t, err)
			assert.False(t, ok)

			assert.True(t, IsNotAllocated(m.Deallocate("/data/ds1")))
		})
	}
}

func TestMethod_AllocateValidatesAttributes(t *testing.T) {
	for name, newMethod := range methods() {
		t.Run(name, func(t *testing.T) {
			err := newMethod().Allocate("/data/bad", Attributes{RecordLength: 4, KeyOffset: 2, KeyLength: 3})
			assert.Error(t, err)
		})
	}
}

func TestFile_WriteReadLocate(t *testing.T) {
	for name, newMethod := range methods() {
		t.Run(name, func(t *testing.T) {
			f := openNew(t, newMethod())

			for _, k := range []string{"030", "010", "020"} {
				require.NoError(t, f.Write(rec("r", k)))
			}
			assert.True(t, IsDuplicateKey(f.Write(rec("x", "020"))))

			assert.Equal(t, []string{"010", "020", "030"}, readAll(t, f))

			require.NoError(t, f.Locate([]byte("020"), KeyEqual))
			r, err := f.Read()
			require.NoError(t, err)
			assert.Equal(t, rec("r", "020"), r)

			assert.True(t, IsNoRecord(f.Locate([]byte("015"), KeyEqual)))

			require.NoError(t, f.Locate([]byte("015"), KeyGreaterOrEqual))
			r, err = f.Read()
			require.NoError(t, err)
			assert.Equal(t, "020", string(r[2:5]))

			assert.True(t, IsNoRecord(f.Locate([]byte("031"), KeyGreaterOrEqual)))

			require.NoError(t, f.Locate(nil, KeyFirst))
			assert.Equal(t, []string{"010", "020", "030"}, readAll(t, f))

			require.NoError(t, f.Locate(nil, KeyLast))
			assert.Equal(t, []string{"030"}, readAll(t, f))
		})
	}
}

func TestFile_ShortKeyIsPadded(t *testing.T) {
	for name, newMethod := range methods() {
		t.Run(name, func(t *testing.T) {
			f := openNew(t, newMethod())
			require.NoError(t, f.Write(rec("r", "1")))

			require.NoError(t, f.Locate([]byte("1"), KeyEqual))
			r, err := f.Read()
			require.NoError(t, err)
			assert.Equal(t, rec("r", "1"), r)
		})
	}
}

func TestFile_UpdateDelete(t *testing.T) {
	for name, newMethod := range methods() {
		t.Run(name, func(t *testing.T) {
			f := openNew(t, newMethod())
			for _, k := range []string{"010", "020", "030"} {
				require.NoError(t, f.Write(rec("r", k)))
			}

			assert.True(t, IsNotPositioned(f.Update(rec("u", "010"))))
			assert.True(t, IsNotPositioned(f.Delete()))

			require.NoError(t, f.Locate([]byte("010"), KeyEqual))
			_, err := f.Read()
			require.NoError(t, err)

			var ae *Error
			require.ErrorAs(t, f.Update(rec("u", "011")), &ae)
			assert.Equal(t, FeedbackKeyChanged, ae.Feedback)

			require.NoError(t, f.Update(rec("u", "010")))
			// update consumes the positioning read
			assert.True(t, IsNotPositioned(f.Update(rec("v", "010"))))

			r, err := f.Read()
			require.NoError(t, err)
			assert.Equal(t, "020", string(r[2:5]))
			require.NoError(t, f.Delete())

			r, err = f.Read()
			require.NoError(t, err)
			assert.Equal(t, "030", string(r[2:5]))

			require.NoError(t, f.Locate(nil, KeyFirst))
			r, err = f.Read()
			require.NoError(t, err)
			assert.Equal(t, rec("u", "010"), r)
			assert.Equal(t, []string{"030"}, readAll(t, f))
		})
	}
}

func TestFile_RecordLength(t *testing.T) {
	for name, newMethod := range methods() {
		t.Run(name, func(t *testing.T) {
			f := openNew(t, newMethod())
			var ae *Error
			require.ErrorAs(t, f.Write([]byte("short")), &ae)
			assert.Equal(t, FeedbackRecordLength, ae.Feedback)
			assert.True(t, ae.Logical())
		})
	}
}

func TestFile_ReadOnly(t *testing.T) {
	for name, newMethod := range methods() {
		t.Run(name, func(t *testing.T) {
			m := newMethod()
			f := openNew(t, m)
			require.NoError(t, f.Write(rec("r", "010")))
			require.NoError(t, f.Close())

			ro, err := m.Open("/data/ds1", ReadOnly)
			require.NoError(t, err)
			defer ro.Close()

			var ae *Error
			require.ErrorAs(t, ro.Write(rec("r", "020")), &ae)
			assert.Equal(t, FeedbackInputOnly, ae.Feedback)

			assert.Equal(t, []string{"010"}, readAll(t, ro))
		})
	}
}

func TestFile_Persistence(t *testing.T) {
	m := NewPebble(WithFS(vfs.NewMem()))
	f := openNew(t, m)
	require.NoError(t, f.Write(rec("r", "010")))
	require.NoError(t, f.Close())

	f, err := m.Open("/data/ds1", ReadWrite)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"010"}, readAll(t, f))
}

func TestFile_CloseTwice(t *testing.T) {
	for name, newMethod := range methods() {
		t.Run(name, func(t *testing.T) {
			m := newMethod()
			require.NoError(t, m.Allocate("/data/ds1", testAttrs))
			f, err := m.Open("/data/ds1", ReadWrite)
			require.NoError(t, err)
			require.NoError(t, f.Close())
			assert.Error(t, f.Close())
		})
	}
}

func TestMemory_DuplicateKeys(t *testing.T) {
	m := NewMemory(WithDuplicateKeys())
	f := openNew(t, m)

	require.NoError(t, f.Write(rec("a", "010")))
	require.NoError(t, f.Write(rec("b", "010")))
	require.NoError(t, f.Write(rec("c", "005")))

	require.NoError(t, f.Locate([]byte("010"), KeyEqual))
	r, err := f.Read()
	require.NoError(t, err)
	assert.Equal(t, rec("a", "010"), r)

	// inserting before the cursor keeps it on the same record
	require.NoError(t, f.Write(rec("d", "001")))
	r, err = f.Read()
	require.NoError(t, err)
	assert.Equal(t, rec("b", "010"), r)

	assert.Len(t, m.Keys("/data/ds1"), 4)
}

func TestMemory_Fault(t *testing.T) {
	boom := errors.New("disk on fire")
	m := NewMemory(WithFault(func(op string, key []byte) error {
		if op == "write" && string(key) == "666" {
			return boom
		}
		return nil
	}))
	f := openNew(t, m)

	require.NoError(t, f.Write(rec("r", "010")))
	err := f.Write(rec("r", "666"))
	var ae *Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, RCPhysical, ae.RC)
	assert.ErrorIs(t, err, boom)
}

func TestError_Format(t *testing.T) {
	e := logicalError("read", FeedbackEndOfData, "end of data")
	assert.Equal(t, "read failed: errno=0 errno2=0x00080004 rc=8 feedback=4: end of data", e.Error())

	p := physicalError("write", fmt.Errorf("sync: %w", errors.New("io")))
	assert.Equal(t, RCPhysical, p.RC)
	assert.False(t, p.Logical())
}

func TestLocateMode_Parse(t *testing.T) {
	for _, m := range []LocateMode{KeyEqual, KeyGreaterOrEqual, KeyFirst, KeyLast} {
		got, err := ParseLocateMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseLocateMode("lt")
	assert.Error(t, err)
}
