package codec

func intp(v int) *int { return &v }

// customerDefs is the schema used throughout the package tests:
// key(string,8) name(string,1..10) amount(hex,4)
func customerDefs() []FieldDef {
	return []FieldDef{
		{Name: "key", Type: "string", MaxLength: intp(8)},
		{Name: "name", Type: "string", MinLength: intp(1), MaxLength: intp(10)},
		{Name: "amount", Type: "hexadecimal", MaxLength: intp(4)},
	}
}
