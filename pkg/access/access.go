// Package access defines the keyed access method that datasets are stored
// with, and provides two implementations: a persistent one on pebble and an
// in-memory one used for tests and scratch datasets.
//
// A Method is the catalog: it allocates, opens, probes and deallocates
// datasets by path. A File is one open dataset with a record cursor. Reads
// advance the cursor; Update and Delete act on the record returned by the
// most recent Read.
package access

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
)

// Attributes are the fixed properties of a dataset, set at allocation
type Attributes struct {
	RecordLength int `yaml:"recordLength" json:"recordLength"`
	KeyOffset    int `yaml:"keyOffset" json:"keyOffset"`
	KeyLength    int `yaml:"keyLength" json:"keyLength"`
}

// Validate checks that the attributes describe a usable dataset
func (a Attributes) Validate() error {
	switch {
	case a.RecordLength <= 0:
		return fmt.Errorf("record length must be greater than 0, got %d", a.RecordLength)
	case a.KeyLength <= 0:
		return fmt.Errorf("key length must be greater than 0, got %d", a.KeyLength)
	case a.KeyOffset < 0:
		return fmt.Errorf("key offset cannot be negative, got %d", a.KeyOffset)
	case a.KeyOffset+a.KeyLength > a.RecordLength:
		return fmt.Errorf("key (offset %d, length %d) does not fit in a %d byte record",
			a.KeyOffset, a.KeyLength, a.RecordLength)
	}
	return nil
}

// LocateMode selects how Locate matches a key
type LocateMode int

const (
	KeyEqual LocateMode = iota
	KeyGreaterOrEqual
	KeyFirst
	KeyLast
)

func (m LocateMode) String() string {
	switch m {
	case KeyEqual:
		return "eq"
	case KeyGreaterOrEqual:
		return "ge"
	case KeyFirst:
		return "first"
	case KeyLast:
		return "last"
	default:
		return fmt.Sprintf("LocateMode(%d)", int(m))
	}
}

// ParseLocateMode parses the short names returned by LocateMode.String
func ParseLocateMode(s string) (LocateMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "eq", "equal":
		return KeyEqual, nil
	case "ge", "gte":
		return KeyGreaterOrEqual, nil
	case "first":
		return KeyFirst, nil
	case "last":
		return KeyLast, nil
	default:
		return 0, fmt.Errorf("unknown locate mode %q", s)
	}
}

// Method is a dataset catalog
type Method interface {
	Name() string
	Allocate(path string, attrs Attributes) error
	Open(path string, mode Mode) (File, error)
	Deallocate(path string) error
	Exists(path string) (bool, error)
}

// File is an open dataset. Implementations are not safe for concurrent use.
type File interface {
	Attributes() Attributes
	// Locate positions the cursor; the next Read returns the located record
	Locate(key []byte, mode LocateMode) error
	// Read returns the record at the cursor and advances past it
	Read() ([]byte, error)
	// Write inserts a record at the position given by its key
	Write(rec []byte) error
	// Update replaces the record returned by the last Read
	Update(rec []byte) error
	// Delete removes the record returned by the last Read
	Delete() error
	Close() error
}

// Return codes
const (
	RCOK       = 0
	RCLogical  = 8
	RCPhysical = 12
)

// Feedback codes qualifying a logical error
const (
	FeedbackNone          = 0
	FeedbackEndOfData     = 4
	FeedbackDuplicateKey  = 8
	FeedbackNoRecord      = 16
	FeedbackInputOnly     = 68
	FeedbackNotPositioned = 92
	FeedbackRecordLength  = 108
	FeedbackKeyChanged    = 112
	FeedbackNotAllocated  = 132
	FeedbackAllocated     = 136
	FeedbackInUse         = 168
)

// Error is a failure reported by an access method
type Error struct {
	Op       string
	Errno    int
	Errno2   int
	RC       int
	Feedback int
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s failed: errno=%d errno2=0x%08x rc=%d feedback=%d",
		e.Op, e.Errno, e.Errno2, e.RC, e.Feedback)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Logical reports whether the error is a condition rather than an I/O fault
func (e *Error) Logical() bool { return e.RC == RCLogical }

func logicalError(op string, feedback int, msg string) *Error {
	return &Error{
		Op:       op,
		Errno2:   RCLogical<<16 | feedback,
		RC:       RCLogical,
		Feedback: feedback,
		Err:      errors.New(msg),
	}
}

func physicalError(op string, err error) *Error {
	e := &Error{Op: op, RC: RCPhysical, Errno2: RCPhysical << 16, Err: err}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		e.Errno = int(errno)
	}
	return e
}

func hasFeedback(err error, feedback int) bool {
	var e *Error
	return errors.As(err, &e) && e.RC == RCLogical && e.Feedback == feedback
}

// IsEndOfData reports a sequential read past the last record
func IsEndOfData(err error) bool { return hasFeedback(err, FeedbackEndOfData) }

// IsNoRecord reports a locate that matched nothing
func IsNoRecord(err error) bool { return hasFeedback(err, FeedbackNoRecord) }

// IsDuplicateKey reports a write whose key is already present
func IsDuplicateKey(err error) bool { return hasFeedback(err, FeedbackDuplicateKey) }

// IsNotPositioned reports an update or delete without a preceding read
func IsNotPositioned(err error) bool { return hasFeedback(err, FeedbackNotPositioned) }

// IsNotAllocated reports an open or deallocate of a missing dataset
func IsNotAllocated(err error) bool { return hasFeedback(err, FeedbackNotAllocated) }

// IsInUse reports a dataset held open by another handle
func IsInUse(err error) bool { return hasFeedback(err, FeedbackInUse) }

// IsInputOnly reports a mutation on a dataset opened for input
func IsInputOnly(err error) bool { return hasFeedback(err, FeedbackInputOnly) }

// IsRecordLength reports a record that does not fit the dataset
func IsRecordLength(err error) bool { return hasFeedback(err, FeedbackRecordLength) }

// IsKeyChanged reports an update that would move the record to another key
func IsKeyChanged(err error) bool { return hasFeedback(err, FeedbackKeyChanged) }

// isLockConflict matches the errors returned when a directory lock is held,
// by another process (fcntl) or by this one (pebble's lock registry).
func isLockConflict(err error) bool {
	if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EWOULDBLOCK) {
		return true
	}
	return strings.Contains(err.Error(), "lock held by current process")
}

func padKey(key []byte, length int) []byte {
	if len(key) >= length {
		return key[:length]
	}
	out := make([]byte, length)
	copy(out, key)
	return out
}
