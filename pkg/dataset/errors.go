package dataset

import (
	"errors"
	"fmt"

	"github.com/ssargent/keyds/pkg/access"
	"github.com/ssargent/keyds/pkg/codec"
)

// Code classifies an error for callers that need a result code rather than
// an error value
type Code int

const (
	CodeOK Code = iota
	CodeValidation
	CodeNotFound
	CodeDuplicateKey
	CodeIO
	CodeState
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeValidation:
		return "validation"
	case CodeNotFound:
		return "not_found"
	case CodeDuplicateKey:
		return "duplicate_key"
	case CodeIO:
		return "io"
	case CodeState:
		return "state"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// Coder is implemented by errors that know their own Code
type Coder interface {
	Code() Code
}

// Error is a dataset handle condition
type Error struct {
	Message string
	code    Code
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Code() Code { return e.code }

var (
	ErrEndOfData        = &Error{"end of data", CodeNotFound}
	ErrNoRecord         = &Error{"no record found", CodeNotFound}
	ErrDuplicateKey     = &Error{"duplicate key", CodeDuplicateKey}
	ErrNotOpen          = &Error{"dataset is not open", CodeState}
	ErrDatasetOpen      = &Error{"cannot dealloc an open dataset, call close() first", CodeState}
	ErrReadOnly         = &Error{"dataset is open for input only", CodeState}
	ErrNotPositioned    = &Error{"no record has been read for update or delete", CodeState}
	ErrAlreadyExists    = &Error{"dataset already exists", CodeState}
	ErrAllocationFailed = &Error{"allocation failed", CodeState}
)

// SchemaMismatchError reports a layout that does not fit the opened dataset
type SchemaMismatchError struct {
	Path     string
	Property string // "key length", "key offset" or "record length"
	Layout   int
	Dataset  int
}

func (e *SchemaMismatchError) Error() string {
	if e.Property == "record length" {
		return fmt.Sprintf("schema mismatch on %s: layout record length %d exceeds dataset record length %d",
			e.Path, e.Layout, e.Dataset)
	}
	return fmt.Sprintf("schema mismatch on %s: layout %s %d does not match dataset %s %d",
		e.Path, e.Property, e.Layout, e.Property, e.Dataset)
}

func (e *SchemaMismatchError) Code() Code { return CodeState }

// CodeOf maps err onto the result code taxonomy
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}

	var coder Coder
	if errors.As(err, &coder) {
		return coder.Code()
	}

	var ve *codec.ValidationError
	var se *codec.SchemaError
	if errors.As(err, &ve) || errors.As(err, &se) {
		return CodeValidation
	}

	switch {
	case access.IsNoRecord(err), access.IsEndOfData(err), access.IsNotAllocated(err):
		return CodeNotFound
	case access.IsDuplicateKey(err):
		return CodeDuplicateKey
	case access.IsKeyChanged(err), access.IsRecordLength(err):
		return CodeValidation
	case access.IsNotPositioned(err), access.IsInUse(err), access.IsInputOnly(err):
		return CodeState
	}
	return CodeIO
}
