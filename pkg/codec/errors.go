package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrShortRecord is returned when a buffer is shorter than the layout
	ErrShortRecord = errors.New("record is shorter than the layout")
)

// ValidationError reports a value that does not satisfy its field's schema
// bounds. No partial result accompanies it.
type ValidationError struct {
	Op     string // operation that was validating, e.g. "write"
	Field  string
	Reason string // condition, phrased as a complete clause
	Length int    // offending length, in bytes or hex digits
	Bound  int    // schema bound that was violated
}

func (e *ValidationError) Error() string {
	op := e.Op
	if op == "" {
		op = "encode"
	}
	return fmt.Sprintf("%s error: %s", op, e.Reason)
}

func tooShort(field string, length, min int) *ValidationError {
	return &ValidationError{
		Field:  field,
		Reason: fmt.Sprintf("length of '%s' is %d, must be %d or more.", field, length, min),
		Length: length,
		Bound:  min,
	}
}

func tooLong(field string, length, max int) *ValidationError {
	return &ValidationError{
		Field:  field,
		Reason: fmt.Sprintf("length of '%s' is %d, must be %d or less.", field, length, max),
		Length: length,
		Bound:  max,
	}
}

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// WithOp returns err with the operation name attached when err is a
// *ValidationError. Other errors are returned unchanged.
func WithOp(err error, op string) error {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	cp := *ve
	cp.Op = op
	return &cp
}

// SchemaError reports an invalid schema definition
type SchemaError struct {
	Item   int // 1-based field position, 0 when the whole schema is at fault
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Item == 0 {
		return fmt.Sprintf("schema error: %s", e.Reason)
	}
	return fmt.Sprintf("schema error (item %d): %s", e.Item, e.Reason)
}
