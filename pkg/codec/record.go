package codec

import (
	"bytes"
	"fmt"
	"sort"
)

// Values maps field names to their external string form
type Values map[string]string

// Codec encodes and decodes records of one layout
type Codec struct {
	layout *Layout
	tc     Transcoder
	strict bool
}

// Option configures a Codec
type Option func(*Codec)

// WithTranscoder sets the transcoder applied to string fields and keys
func WithTranscoder(tc Transcoder) Option {
	return func(c *Codec) {
		if tc != nil {
			c.tc = tc
		}
	}
}

// WithStrictNames makes Encode and EncodePatch reject field names the
// layout does not define. By default they are ignored.
func WithStrictNames() Option {
	return func(c *Codec) {
		c.strict = true
	}
}

// NewCodec creates a codec for layout
func NewCodec(layout *Layout, opts ...Option) *Codec {
	c := &Codec{layout: layout, tc: Identity}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Layout returns the codec's layout
func (c *Codec) Layout() *Layout { return c.layout }

// Transcoder returns the codec's transcoder
func (c *Codec) Transcoder() Transcoder { return c.tc }

// Encode packs values into a new record. Missing fields are encoded as
// empty, which fails for fields with a non-zero minLength. Names outside the
// layout are skipped unless the codec was built WithStrictNames.
func (c *Codec) Encode(values Values) ([]byte, error) {
	if err := c.checkNames(values); err != nil {
		return nil, err
	}
	rec := make([]byte, c.layout.RecordLength())
	for _, f := range c.layout.fields {
		if err := c.encodeField(f, values[f.Name], rec[f.Offset:f.Offset+f.MaxLength]); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// EncodeComplete is Encode, but every field of the layout must be present
func (c *Codec) EncodeComplete(values Values) ([]byte, error) {
	for _, f := range c.layout.fields {
		if _, ok := values[f.Name]; !ok {
			return nil, invalid(f.Name, fmt.Sprintf("field '%s' must be specified.", f.Name))
		}
	}
	return c.Encode(values)
}

// EncodePatch encodes only the fields present in values
func (c *Codec) EncodePatch(values Values) (*Patch, error) {
	if err := c.checkNames(values); err != nil {
		return nil, err
	}
	p := &Patch{buf: make([]byte, c.layout.RecordLength())}
	for _, f := range c.layout.fields {
		v, ok := values[f.Name]
		if !ok {
			continue
		}
		if err := c.encodeField(f, v, p.buf[f.Offset:f.Offset+f.MaxLength]); err != nil {
			return nil, err
		}
		p.spans = append(p.spans, Span{Offset: f.Offset, Length: f.MaxLength})
	}
	return p, nil
}

// Decode unpacks a record into values. Buffers longer than the layout are
// accepted; the excess is ignored.
func (c *Codec) Decode(rec []byte) (Values, error) {
	if len(rec) < c.layout.RecordLength() {
		return nil, fmt.Errorf("decode %d bytes, want %d: %w", len(rec), c.layout.RecordLength(), ErrShortRecord)
	}
	values := make(Values, len(c.layout.fields))
	for _, f := range c.layout.fields {
		v, err := c.decodeField(f, rec[f.Offset:f.Offset+f.MaxLength])
		if err != nil {
			return nil, err
		}
		values[f.Name] = v
	}
	return values, nil
}

// EncodeKey converts a key string with the key field's rules and zero-pads
// it to the key length.
func (c *Codec) EncodeKey(key string) ([]byte, error) {
	f := c.layout.Key()
	buf := make([]byte, f.MaxLength)
	if f.Type == FieldHex {
		n, err := hexToBytes(f, key, buf)
		if err != nil {
			return nil, err
		}
		if n < f.MinLength {
			return nil, tooShort(f.Name, n, f.MinLength)
		}
		return buf, nil
	}
	if err := c.encodeField(f, key, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// KeyFromBytes accepts a raw key of 1 to KeyLength bytes and zero-pads it
func (c *Codec) KeyFromBytes(b []byte) ([]byte, error) {
	f := c.layout.Key()
	if len(b) == 0 {
		return nil, tooShort(f.Name, 0, 1)
	}
	if len(b) > f.MaxLength {
		return nil, tooLong(f.Name, len(b), f.MaxLength)
	}
	buf := make([]byte, f.MaxLength)
	copy(buf, b)
	return buf, nil
}

// DecodeKey renders key bytes in the key field's external form
func (c *Codec) DecodeKey(key []byte) (string, error) {
	f := c.layout.Key()
	if len(key) > f.MaxLength {
		key = key[:f.MaxLength]
	}
	return c.decodeField(f, key)
}

func (c *Codec) checkNames(values Values) error {
	if !c.strict {
		return nil
	}
	var unknown []string
	for name := range values {
		if _, ok := c.layout.index[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return invalid(unknown[0], fmt.Sprintf("field '%s' is not defined in the schema.", unknown[0]))
}

// encodeField writes v into dst, which is exactly f.MaxLength bytes
func (c *Codec) encodeField(f Field, v string, dst []byte) error {
	switch f.Type {
	case FieldHex:
		_, err := hexToBytes(f, v, dst)
		return err
	case FieldString:
		b, err := c.tc.ToStorage([]byte(v))
		if err != nil {
			return invalid(f.Name, fmt.Sprintf("value of '%s' cannot be encoded: %v", f.Name, err))
		}
		if len(b) < f.MinLength {
			return tooShort(f.Name, len(b), f.MinLength)
		}
		if len(b) > f.MaxLength {
			return tooLong(f.Name, len(b), f.MaxLength)
		}
		n := copy(dst, b)
		clear(dst[n:])
		return nil
	default:
		return invalid(f.Name, fmt.Sprintf("unexpected data type %d for %s.", int(f.Type), f.Name))
	}
}

func (c *Codec) decodeField(f Field, src []byte) (string, error) {
	switch f.Type {
	case FieldHex:
		return bytesToHex(src), nil
	case FieldString:
		if i := bytes.IndexByte(src, 0); i >= 0 {
			src = src[:i]
		}
		b, err := c.tc.FromStorage(src)
		if err != nil {
			return "", fmt.Errorf("decode field %s: %w", f.Name, err)
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("decode field %s: unexpected data type %d", f.Name, int(f.Type))
	}
}

// Span is a byte range of a record
type Span struct {
	Offset int
	Length int
}

// Patch holds a partial encode: the encoded bytes of a subset of fields
type Patch struct {
	buf   []byte
	spans []Span
}

// Spans returns the byte ranges the patch overwrites
func (p *Patch) Spans() []Span { return p.spans }

// Empty reports whether the patch changes nothing
func (p *Patch) Empty() bool { return p == nil || len(p.spans) == 0 }

// Apply returns a copy of rec with the patch's spans overwritten. rec may be
// longer than the layout; the tail is preserved.
func (p *Patch) Apply(rec []byte) []byte {
	out := make([]byte, max(len(rec), len(p.buf)))
	copy(out, rec)
	for _, s := range p.spans {
		copy(out[s.Offset:s.Offset+s.Length], p.buf[s.Offset:s.Offset+s.Length])
	}
	return out
}
