package codec

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type fieldAttrs struct {
	Type      string `yaml:"type"`
	MinLength *int   `yaml:"minLength"`
	MaxLength *int   `yaml:"maxLength"`
}

type schemaDoc struct {
	Fields []FieldDef `yaml:"fields"`
}

// ParseSchema parses a YAML or JSON schema document into a layout. Field
// order is the order of appearance in the document.
func ParseSchema(data []byte) (*Layout, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &SchemaError{Reason: fmt.Sprintf("invalid schema document: %v", err)}
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, &SchemaError{Reason: "schema has no fields"}
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, &SchemaError{Reason: "schema must be an object"}
	}

	if len(doc.Content) == 2 && doc.Content[0].Value == "fields" && doc.Content[1].Kind == yaml.SequenceNode {
		var sd schemaDoc
		if err := doc.Decode(&sd); err != nil {
			return nil, &SchemaError{Reason: fmt.Sprintf("invalid field list: %v", err)}
		}
		return NewLayout(sd.Fields)
	}

	defs := make([]FieldDef, 0, len(doc.Content)/2)
	for i := 0; i+1 < len(doc.Content); i += 2 {
		name, attrs := doc.Content[i], doc.Content[i+1]
		item := i/2 + 1
		if attrs.Kind != yaml.MappingNode {
			return nil, &SchemaError{Item: item, Field: name.Value, Reason: fmt.Sprintf("field '%s' must be an object", name.Value)}
		}
		var fa fieldAttrs
		if err := attrs.Decode(&fa); err != nil {
			return nil, &SchemaError{Item: item, Field: name.Value, Reason: fmt.Sprintf("minLength and maxLength must be numeric: %v", err)}
		}
		defs = append(defs, FieldDef{
			Name:      name.Value,
			Type:      fa.Type,
			MinLength: fa.MinLength,
			MaxLength: fa.MaxLength,
		})
	}
	return NewLayout(defs)
}

// LoadSchema reads and parses a schema file
func LoadSchema(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	layout, err := ParseSchema(data)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", path, err)
	}
	return layout, nil
}

// MarshalSchema renders a layout in the list form accepted by ParseSchema
func MarshalSchema(l *Layout) ([]byte, error) {
	data, err := yaml.Marshal(schemaDoc{Fields: l.Defs()})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}
