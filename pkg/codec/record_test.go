package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCustomerCodec(t *testing.T, opts ...Option) *Codec {
	t.Helper()
	l, err := NewLayout(customerDefs())
	require.NoError(t, err)
	return NewCodec(l, opts...)
}

func TestCodec_RoundTrip(t *testing.T) {
	c := newCustomerCodec(t)

	tests := []struct {
		name string
		in   Values
		want Values
	}{
		{
			name: "all fields",
			in:   Values{"key": "00100", "name": "JOHN", "amount": "0x01a2"},
			want: Values{"key": "00100", "name": "JOHN", "amount": "01a2"},
		},
		{
			name: "full width",
			in:   Values{"key": "ABCDEFGH", "name": "0123456789", "amount": "DEADBEEF"},
			want: Values{"key": "ABCDEFGH", "name": "0123456789", "amount": "deadbeef"},
		},
		{
			name: "missing optional fields",
			in:   Values{"key": "K", "name": "N"},
			want: Values{"key": "K", "name": "N", "amount": "00"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := c.Encode(tt.in)
			require.NoError(t, err)
			assert.Len(t, rec, 22)

			got, err := c.Decode(rec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCodec_StringZeroFill(t *testing.T) {
	c := newCustomerCodec(t)
	rec, err := c.Encode(Values{"key": "AB", "name": "X"})
	require.NoError(t, err)

	assert.Equal(t, []byte{'A', 'B', 0, 0, 0, 0, 0, 0}, rec[0:8])
	assert.Equal(t, byte('X'), rec[8])
	assert.Equal(t, make([]byte, 9), rec[9:18])
}

func TestCodec_DecodeTrimsAtFirstZero(t *testing.T) {
	c := newCustomerCodec(t)
	rec := make([]byte, 22)
	copy(rec, "AB\x00CD")
	copy(rec[8:], "N")

	got, err := c.Decode(rec)
	require.NoError(t, err)
	assert.Equal(t, "AB", got["key"])
}

func TestCodec_HexNormalization(t *testing.T) {
	c := newCustomerCodec(t)

	tests := []struct {
		in      string
		stored  []byte
		decoded string
	}{
		{"0xABC", []byte{0xab, 0xc0, 0, 0}, "abc0"},
		{"X1", []byte{0x10, 0, 0, 0}, "10"},
		{"0X00000001", []byte{0, 0, 0, 1}, "00000001"},
		{"", []byte{0, 0, 0, 0}, "00"},
		{"ff00ff00", []byte{0xff, 0, 0xff, 0}, "ff00ff"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			rec, err := c.Encode(Values{"key": "k", "name": "n", "amount": tt.in})
			require.NoError(t, err)
			assert.Equal(t, tt.stored, rec[18:22])

			got, err := c.Decode(rec)
			require.NoError(t, err)
			assert.Equal(t, tt.decoded, got["amount"])
		})
	}
}

func TestCodec_ValidationErrors(t *testing.T) {
	c := newCustomerCodec(t)

	tests := []struct {
		name   string
		values Values
		field  string
		reason string
	}{
		{"string too long", Values{"key": "123456789", "name": "n"}, "key", "length of 'key' is 9, must be 8 or less."},
		{"string too short", Values{"key": "k", "name": ""}, "name", "length of 'name' is 0, must be 1 or more."},
		{"missing required", Values{"key": "k"}, "name", "length of 'name' is 0, must be 1 or more."},
		{"hex too long", Values{"key": "k", "name": "n", "amount": "0x0102030405"}, "amount", "length of 'amount' is 10, must be 8 or less."},
		{"hex bad digit", Values{"key": "k", "name": "n", "amount": "12g4"}, "amount", "invalid character 'g'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := c.Encode(tt.values)
			assert.Nil(t, rec)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.Contains(t, ve.Reason, tt.reason)
		})
	}
}

func TestCodec_UnknownNames(t *testing.T) {
	c := newCustomerCodec(t)

	rec, err := c.Encode(Values{"key": "k", "name": "n", "zip": "1"})
	require.NoError(t, err)
	got, err := c.Decode(rec)
	require.NoError(t, err)
	assert.NotContains(t, got, "zip")
	assert.Equal(t, "n", got["name"])

	p, err := c.EncodePatch(Values{"name": "m", "zip": "1"})
	require.NoError(t, err)
	assert.Len(t, p.Spans(), 1)

	strict := NewCodec(c.Layout(), WithStrictNames())
	_, err = strict.Encode(Values{"key": "k", "name": "n", "zip": "1"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "zip", ve.Field)
	assert.Contains(t, ve.Reason, "not defined")

	_, err = strict.EncodePatch(Values{"zip": "1"})
	assert.ErrorAs(t, err, &ve)
}

func TestCodec_HexMinLength(t *testing.T) {
	l := MustLayout([]FieldDef{
		{Name: "key", Type: "string", MaxLength: intp(2)},
		{Name: "tag", Type: "hexadecimal", MinLength: intp(2), MaxLength: intp(4)},
	})
	c := NewCodec(l)

	_, err := c.Encode(Values{"key": "k", "tag": "01"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 1, ve.Length)
	assert.Equal(t, 2, ve.Bound)

	_, err = c.Encode(Values{"key": "k", "tag": "010"})
	assert.NoError(t, err)

	// empty hex is unset
	_, err = c.Encode(Values{"key": "k"})
	assert.NoError(t, err)
}

func TestCodec_EncodeComplete(t *testing.T) {
	c := newCustomerCodec(t)

	_, err := c.EncodeComplete(Values{"key": "k", "name": "n"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "amount", ve.Field)

	rec, err := c.EncodeComplete(Values{"key": "k", "name": "n", "amount": "1"})
	require.NoError(t, err)
	assert.Len(t, rec, 22)
}

func TestCodec_EncodePatch(t *testing.T) {
	c := newCustomerCodec(t)
	orig, err := c.Encode(Values{"key": "00100", "name": "JOHN", "amount": "ff"})
	require.NoError(t, err)

	p, err := c.EncodePatch(Values{"name": "MARY"})
	require.NoError(t, err)
	assert.False(t, p.Empty())
	assert.Equal(t, []Span{{Offset: 8, Length: 10}}, p.Spans())

	patched := p.Apply(orig)
	got, err := c.Decode(patched)
	require.NoError(t, err)
	assert.Equal(t, Values{"key": "00100", "name": "MARY", "amount": "ff"}, got)

	// the original buffer is untouched
	again, err := c.Decode(orig)
	require.NoError(t, err)
	assert.Equal(t, "JOHN", again["name"])
}

func TestPatch_ApplyKeepsTail(t *testing.T) {
	c := newCustomerCodec(t)
	p, err := c.EncodePatch(Values{"amount": "01"})
	require.NoError(t, err)

	native := append(bytes.Repeat([]byte{'z'}, 22), 'T', 'A', 'I', 'L')
	out := p.Apply(native)
	assert.Len(t, out, 26)
	assert.Equal(t, []byte("TAIL"), out[22:])
	assert.Equal(t, []byte{1, 0, 0, 0}, out[18:22])
}

func TestPatch_Empty(t *testing.T) {
	c := newCustomerCodec(t)
	p, err := c.EncodePatch(Values{})
	require.NoError(t, err)
	assert.True(t, p.Empty())

	var nilPatch *Patch
	assert.True(t, nilPatch.Empty())
}

func TestCodec_EncodeKey(t *testing.T) {
	c := newCustomerCodec(t)

	key, err := c.EncodeKey("001")
	require.NoError(t, err)
	assert.Equal(t, []byte{'0', '0', '1', 0, 0, 0, 0, 0}, key)

	_, err = c.EncodeKey("")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "length of 'key' is 0, must be 1 or more.", ve.Reason)

	_, err = c.EncodeKey("123456789")
	assert.ErrorAs(t, err, &ve)

	s, err := c.DecodeKey(key)
	require.NoError(t, err)
	assert.Equal(t, "001", s)
}

func TestCodec_EncodeHexKey(t *testing.T) {
	l := MustLayout([]FieldDef{
		{Name: "key", Type: "hexadecimal", MaxLength: intp(4)},
		{Name: "v", Type: "string", MaxLength: intp(4)},
	})
	c := NewCodec(l)

	key, err := c.EncodeKey("0xF1F2")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xf1, 0xf2, 0, 0}, key)

	_, err = c.EncodeKey("0x")
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestCodec_KeyFromBytes(t *testing.T) {
	c := newCustomerCodec(t)

	key, err := c.KeyFromBytes([]byte{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 0, 0, 0, 0, 0, 0}, key)

	_, err = c.KeyFromBytes(nil)
	assert.Error(t, err)
	_, err = c.KeyFromBytes(make([]byte, 9))
	assert.Error(t, err)
}

func TestCodec_DecodeShortRecord(t *testing.T) {
	c := newCustomerCodec(t)
	_, err := c.Decode(make([]byte, 10))
	assert.ErrorIs(t, err, ErrShortRecord)
}

func TestCodec_DecodeLongRecord(t *testing.T) {
	c := newCustomerCodec(t)
	rec, err := c.Encode(Values{"key": "k", "name": "n"})
	require.NoError(t, err)

	got, err := c.Decode(append(rec, 'x', 'y'))
	require.NoError(t, err)
	assert.Equal(t, "k", got["key"])
}

func TestCodec_EBCDIC(t *testing.T) {
	c := newCustomerCodec(t, WithTranscoder(EBCDIC1047))

	rec, err := c.Encode(Values{"key": "A1", "name": "hi"})
	require.NoError(t, err)
	// 'A' is 0xC1 and '1' is 0xF1 in code page 1047
	assert.Equal(t, []byte{0xc1, 0xf1}, rec[0:2])

	got, err := c.Decode(rec)
	require.NoError(t, err)
	assert.Equal(t, "A1", got["key"])
	assert.Equal(t, "hi", got["name"])

	key, err := c.EncodeKey("A1")
	require.NoError(t, err)
	assert.Equal(t, rec[0:8], key)
}

func TestValidationError_WithOp(t *testing.T) {
	c := newCustomerCodec(t)
	_, err := c.Encode(Values{"key": "k"})
	require.Error(t, err)

	err = WithOp(err, "write")
	assert.Equal(t, "write error: length of 'name' is 0, must be 1 or more.", err.Error())

	plain := ErrShortRecord
	assert.Equal(t, plain, WithOp(plain, "write"))
}

func TestLookupTranscoder(t *testing.T) {
	tc, err := LookupTranscoder("")
	require.NoError(t, err)
	assert.Equal(t, "identity", tc.Name())

	tc, err = LookupTranscoder("IBM-1047")
	require.NoError(t, err)
	assert.Equal(t, "ibm-1047", tc.Name())

	tc, err = LookupTranscoder("cp037")
	require.NoError(t, err)
	assert.Equal(t, "ibm-037", tc.Name())

	_, err = LookupTranscoder("klingon")
	assert.Error(t, err)
}
