package codec

import (
	"fmt"
	"strings"
)

// FieldType is the storage type of a record field
type FieldType int

const (
	FieldString FieldType = iota + 1
	FieldHex
)

func (t FieldType) String() string {
	switch t {
	case FieldString:
		return "string"
	case FieldHex:
		return "hexadecimal"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// ParseFieldType converts a schema type name into a FieldType
func ParseFieldType(s string) (FieldType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string":
		return FieldString, nil
	case "hexadecimal":
		return FieldHex, nil
	default:
		return 0, fmt.Errorf("\"type\" must be either \"string\" or \"hexadecimal\"")
	}
}

// Field describes one fixed-width field of a record
type Field struct {
	Name      string
	Type      FieldType
	MinLength int
	MaxLength int
	Offset    int // byte offset within the record
}

// FieldDef is the schema form of a field, before offsets are assigned
type FieldDef struct {
	Name      string `yaml:"name" json:"name"`
	Type      string `yaml:"type" json:"type"`
	MinLength *int   `yaml:"minLength,omitempty" json:"minLength,omitempty"`
	MaxLength *int   `yaml:"maxLength" json:"maxLength"`
}

// KeyFieldName is the field name that marks the dataset key
const KeyFieldName = "key"

// Layout is the immutable byte layout of a dataset record
type Layout struct {
	fields       []Field
	index        map[string]int
	keyIndex     int
	recordLength int
}

// NewLayout builds a layout from field definitions in on-disk order
func NewLayout(defs []FieldDef) (*Layout, error) {
	if len(defs) == 0 {
		return nil, &SchemaError{Reason: "schema has no fields"}
	}

	l := &Layout{
		fields: make([]Field, 0, len(defs)),
		index:  make(map[string]int, len(defs)),
	}

	offset := 0
	for i, d := range defs {
		item := i + 1
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return nil, &SchemaError{Item: item, Reason: "field name must be specified"}
		}
		if _, dup := l.index[name]; dup {
			return nil, &SchemaError{Item: item, Field: name, Reason: "duplicate field name"}
		}

		minLength := 0
		if d.MinLength != nil {
			minLength = *d.MinLength
			if minLength < 0 {
				return nil, &SchemaError{Item: item, Field: name, Reason: "minLength value cannot be negative"}
			}
		}
		if d.MaxLength == nil {
			return nil, &SchemaError{Item: item, Field: name, Reason: "maxLength must be specified"}
		}
		maxLength := *d.MaxLength
		if maxLength <= 0 {
			return nil, &SchemaError{Item: item, Field: name, Reason: "maxLength value must be greater than 0"}
		}
		if minLength > maxLength {
			return nil, &SchemaError{Item: item, Field: name, Reason: "minLength cannot be greater than maxLength"}
		}
		if strings.TrimSpace(d.Type) == "" {
			return nil, &SchemaError{Item: item, Field: name, Reason: "\"type\" must be specified (string or hexadecimal)"}
		}
		ft, err := ParseFieldType(d.Type)
		if err != nil {
			return nil, &SchemaError{Item: item, Field: name, Reason: err.Error()}
		}

		l.index[name] = len(l.fields)
		l.fields = append(l.fields, Field{
			Name:      name,
			Type:      ft,
			MinLength: minLength,
			MaxLength: maxLength,
			Offset:    offset,
		})
		offset += maxLength
	}
	l.recordLength = offset

	if i, ok := l.index[KeyFieldName]; ok {
		l.keyIndex = i
	}
	key := &l.fields[l.keyIndex]
	if defs[l.keyIndex].MinLength == nil {
		key.MinLength = 1
	} else if key.MinLength == 0 {
		return nil, &SchemaError{
			Item:   l.keyIndex + 1,
			Field:  key.Name,
			Reason: fmt.Sprintf("minLength of key '%s' must be greater than 0", key.Name),
		}
	}

	return l, nil
}

// MustLayout is NewLayout for static schemas; it panics on error
func MustLayout(defs []FieldDef) *Layout {
	l, err := NewLayout(defs)
	if err != nil {
		panic(err)
	}
	return l
}

// Fields returns a copy of the layout's fields in on-disk order
func (l *Layout) Fields() []Field {
	out := make([]Field, len(l.fields))
	copy(out, l.fields)
	return out
}

// Field looks up a field by name
func (l *Layout) Field(name string) (Field, bool) {
	i, ok := l.index[name]
	if !ok {
		return Field{}, false
	}
	return l.fields[i], true
}

// NumFields returns the number of fields
func (l *Layout) NumFields() int { return len(l.fields) }

// Key returns the key field
func (l *Layout) Key() Field { return l.fields[l.keyIndex] }

// KeyIndex returns the position of the key field
func (l *Layout) KeyIndex() int { return l.keyIndex }

// KeyOffset returns the byte offset of the key within a record
func (l *Layout) KeyOffset() int { return l.fields[l.keyIndex].Offset }

// KeyLength returns the key length in bytes
func (l *Layout) KeyLength() int { return l.fields[l.keyIndex].MaxLength }

// RecordLength returns the total record length in bytes
func (l *Layout) RecordLength() int { return l.recordLength }

// KeyOf returns the key bytes of rec. The result aliases rec.
func (l *Layout) KeyOf(rec []byte) []byte {
	off := l.KeyOffset()
	if len(rec) < off+l.KeyLength() {
		return nil
	}
	return rec[off : off+l.KeyLength()]
}

// Defs returns the layout as schema definitions, with the key's effective
// minLength made explicit.
func (l *Layout) Defs() []FieldDef {
	defs := make([]FieldDef, len(l.fields))
	for i, f := range l.fields {
		minLength, maxLength := f.MinLength, f.MaxLength
		defs[i] = FieldDef{
			Name:      f.Name,
			Type:      f.Type.String(),
			MinLength: &minLength,
			MaxLength: &maxLength,
		}
	}
	return defs
}
