//go:build fuzz
// +build fuzz

package codec

import (
	"testing"
)

// FuzzDecode checks that arbitrary buffers never panic the decoder
func FuzzDecode(f *testing.F) {
	c := NewCodec(MustLayout(customerDefs()))

	f.Add(make([]byte, 22))
	f.Add([]byte("ABCDEFGHJOHN\x00\x00\x00\x00\x00\x00\x01\x02\x03\x04"))
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		values, err := c.Decode(data)
		if err != nil {
			return
		}
		if len(values) != 3 {
			t.Fatalf("decoded %d fields, want 3", len(values))
		}
	})
}

// FuzzEncodeHex checks that any accepted hex value survives a round trip
func FuzzEncodeHex(f *testing.F) {
	c := NewCodec(MustLayout(customerDefs()))

	f.Add("0x01")
	f.Add("deadbeef")
	f.Add("X")
	f.Add("zz")

	f.Fuzz(func(t *testing.T, amount string) {
		rec, err := c.Encode(Values{"key": "k", "name": "n", "amount": amount})
		if err != nil {
			return
		}
		values, err := c.Decode(rec)
		if err != nil {
			t.Fatalf("decode of encoded record failed: %v", err)
		}
		again, err := c.Encode(values)
		if err != nil {
			t.Fatalf("re-encode failed: %v", err)
		}
		if string(again) != string(rec) {
			t.Fatalf("round trip mismatch: %x != %x", again, rec)
		}
	})
}
