// Package codec provides the schema-driven record layout and the binary
// record codec for keyds datasets.
//
// A dataset record is a fixed-width byte buffer. Its shape is described by a
// Layout: an ordered list of fields, each with a type, a minimum and a maximum
// length. Fields are packed back to back in declaration order, so each field's
// byte offset is the sum of the maximum lengths of the fields before it and
// the record length is the sum of all maximum lengths.
//
// # Field Types
//
// Two field types exist:
//
//   - string: stored as up to maxLength bytes, zero-filled. On decode the
//     field is trimmed at the first zero byte. Strings pass through a
//     Transcoder on their way in and out, so a dataset can be stored in
//     EBCDIC while callers work in UTF-8.
//   - hexadecimal: supplied and returned as a hex string. On encode the
//     optional 0x or x prefix is dropped, an odd digit count is padded with a
//     trailing zero nibble and the bytes are zero-padded to maxLength. On
//     decode trailing 00 byte pairs are stripped, leaving at least one pair.
//
// # Key Field
//
// One field is the dataset key: the field named "key" or, when no such field
// exists, the first field. The key must be at least one byte long, so its
// minLength defaults to 1 and an explicit minLength of 0 is rejected.
//
// # Schema Files
//
// Schemas are YAML or JSON documents. The original object form is supported,
// with field order taken from the document:
//
//	{
//	  "key":    {"type": "string", "maxLength": 8},
//	  "name":   {"type": "string", "minLength": 1, "maxLength": 20},
//	  "amount": {"type": "hexadecimal", "maxLength": 4}
//	}
//
// as is an explicit list form:
//
//	fields:
//	  - name: key
//	    type: string
//	    maxLength: 8
//
// # Usage
//
//	layout, err := codec.LoadSchema("customers.yaml")
//	if err != nil {
//	    return err
//	}
//	c := codec.NewCodec(layout, codec.WithTranscoder(codec.EBCDIC1047))
//
//	rec, err := c.Encode(codec.Values{"key": "00100", "name": "JOHN"})
//	if err != nil {
//	    return err // *ValidationError
//	}
//	values, err := c.Decode(rec)
//
// # Thread Safety
//
// Layouts and Codecs are immutable after construction and safe to share
// between goroutines.
package codec
