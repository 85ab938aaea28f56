// Package dataset implements the dataset handle: one open keyed dataset with
// its record layout, cursor and the single-record operations on it.
//
// A Handle is not safe for concurrent use. Writable handles are driven by a
// single worker goroutine (see package worker); read-only handles are
// serialized by their owner.
package dataset

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ssargent/keyds/pkg/access"
	"github.com/ssargent/keyds/pkg/codec"
)

// State is the lifecycle state of a Handle
type State int

const (
	StateUnopened State = iota
	StateOpening
	StateOpenReadWrite
	StateOpenReadOnly
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateOpening:
		return "opening"
	case StateOpenReadWrite:
		return "open-rw"
	case StateOpenReadOnly:
		return "open-ro"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// LocateMode re-exports the access method's key matching modes
type LocateMode = access.LocateMode

const (
	KeyEqual          = access.KeyEqual
	KeyGreaterOrEqual = access.KeyGreaterOrEqual
	KeyFirst          = access.KeyFirst
	KeyLast           = access.KeyLast
)

// Handle owns one dataset and its open file
type Handle struct {
	method access.Method
	file   access.File
	layout *codec.Layout
	path   string
	mode   access.Mode
	state  State
	logger *slog.Logger

	// learned from the opened dataset
	recordLength int
	keyOffset    int
	keyLength    int
}

// Option configures a Handle
type Option func(*Handle)

// WithLogger sets the handle's logger
func WithLogger(l *slog.Logger) Option {
	return func(h *Handle) {
		if l != nil {
			h.logger = l
		}
	}
}

// New creates an unopened handle for the dataset at path
func New(method access.Method, path string, layout *codec.Layout, opts ...Option) *Handle {
	h := &Handle{
		method: method,
		layout: layout,
		path:   path,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("dataset", path)
	return h
}

// Open opens an existing dataset
func Open(method access.Method, path string, layout *codec.Layout, mode access.Mode, opts ...Option) (*Handle, error) {
	h := New(method, path, layout, opts...)
	if err := h.Open(mode); err != nil {
		return nil, err
	}
	return h, nil
}

// Alloc allocates a new dataset sized from layout and opens it read-write
func Alloc(method access.Method, path string, layout *codec.Layout, opts ...Option) (*Handle, error) {
	h := New(method, path, layout, opts...)
	if err := h.Alloc(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Handle) Path() string          { return h.path }
func (h *Handle) Layout() *codec.Layout { return h.layout }
func (h *Handle) Mode() access.Mode     { return h.mode }
func (h *Handle) State() State          { return h.state }
func (h *Handle) RecordLength() int     { return h.recordLength }
func (h *Handle) KeyLength() int        { return h.keyLength }
func (h *Handle) KeyOffset() int        { return h.keyOffset }

// IsOpen reports whether the handle has an open file
func (h *Handle) IsOpen() bool {
	return h.state == StateOpenReadWrite || h.state == StateOpenReadOnly
}

// ReadOnly reports whether the handle was opened for input only
func (h *Handle) ReadOnly() bool { return h.mode.ReadOnly }

// Open opens the dataset and checks it against the layout. On a mismatch
// the file is closed again and the handle ends closed.
func (h *Handle) Open(mode access.Mode) error {
	if h.IsOpen() || h.state == StateOpening {
		return fmt.Errorf("open %s: dataset is already open", h.path)
	}
	h.state = StateOpening
	h.mode = mode

	f, err := h.method.Open(h.path, mode)
	if err != nil {
		h.state = StateUnopened
		return err
	}

	attrs := f.Attributes()
	if mismatch := h.check(attrs); mismatch != nil {
		if err := f.Close(); err != nil {
			h.logger.Warn("close after schema mismatch failed", "error", err)
		}
		h.state = StateClosed
		return mismatch
	}

	h.file = f
	h.recordLength = attrs.RecordLength
	h.keyOffset = attrs.KeyOffset
	h.keyLength = attrs.KeyLength
	if mode.ReadOnly {
		h.state = StateOpenReadOnly
	} else {
		h.state = StateOpenReadWrite
	}
	h.logger.Info("dataset opened", "mode", mode.String(), "record_length", h.recordLength, "key_length", h.keyLength)
	return nil
}

func (h *Handle) check(attrs access.Attributes) error {
	switch {
	case attrs.KeyLength != h.layout.KeyLength():
		return &SchemaMismatchError{Path: h.path, Property: "key length", Layout: h.layout.KeyLength(), Dataset: attrs.KeyLength}
	case attrs.KeyOffset != h.layout.KeyOffset():
		return &SchemaMismatchError{Path: h.path, Property: "key offset", Layout: h.layout.KeyOffset(), Dataset: attrs.KeyOffset}
	case h.layout.RecordLength() > attrs.RecordLength:
		return &SchemaMismatchError{Path: h.path, Property: "record length", Layout: h.layout.RecordLength(), Dataset: attrs.RecordLength}
	}
	return nil
}

// Attributes returns the attributes a new dataset for layout is allocated with
func Attributes(layout *codec.Layout) access.Attributes {
	return access.Attributes{
		RecordLength: layout.RecordLength(),
		KeyOffset:    layout.KeyOffset(),
		KeyLength:    layout.KeyLength(),
	}
}

// Alloc allocates the dataset and opens it read-write. An existing dataset
// is reported as ErrAlreadyExists without any allocation attempt.
func (h *Handle) Alloc() error {
	exists, err := Exists(h.method, h.path)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyExists
	}

	attrs := Attributes(h.layout)
	if err := h.method.Allocate(h.path, attrs); err != nil {
		h.logger.Error("allocation failed", "error", err)
		return fmt.Errorf("%w: %w", ErrAllocationFailed, err)
	}
	h.logger.Info("dataset allocated", "record_length", attrs.RecordLength, "key_offset", attrs.KeyOffset, "key_length", attrs.KeyLength)
	return h.Open(access.ReadWrite)
}

// Exists probes the catalog by opening the dataset read-only. A dataset held
// open elsewhere counts as existing.
func Exists(method access.Method, path string) (bool, error) {
	f, err := method.Open(path, access.ReadOnly)
	if err == nil {
		return true, f.Close()
	}
	switch {
	case access.IsNotAllocated(err):
		return false, nil
	case access.IsInUse(err):
		return true, nil
	}
	return method.Exists(path)
}

func (h *Handle) requireOpen() error {
	if !h.IsOpen() {
		return ErrNotOpen
	}
	return nil
}

func (h *Handle) requireWritable() error {
	if err := h.requireOpen(); err != nil {
		return err
	}
	if h.state == StateOpenReadOnly {
		return ErrReadOnly
	}
	return nil
}

// ReadNext reads the record at the cursor and advances. ErrEndOfData marks
// the end of the dataset.
func (h *Handle) ReadNext() ([]byte, error) {
	if err := h.requireOpen(); err != nil {
		return nil, err
	}
	rec, err := h.file.Read()
	if access.IsEndOfData(err) {
		return nil, ErrEndOfData
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Locate positions the cursor by key and reads the located record. key is
// ignored for KeyFirst and KeyLast.
func (h *Handle) Locate(key []byte, mode LocateMode) ([]byte, error) {
	if err := h.requireOpen(); err != nil {
		return nil, err
	}
	if mode == KeyEqual || mode == KeyGreaterOrEqual {
		if len(key) == 0 || len(key) > h.keyLength {
			bound := h.keyLength
			if len(key) == 0 {
				bound = 1
			}
			return nil, &codec.ValidationError{
				Op:     "locate",
				Field:  h.layout.Key().Name,
				Reason: fmt.Sprintf("key length is %d, must be between 1 and %d.", len(key), h.keyLength),
				Length: len(key),
				Bound:  bound,
			}
		}
	}
	if err := h.file.Locate(key, mode); err != nil {
		if access.IsNoRecord(err) {
			return nil, ErrNoRecord
		}
		return nil, err
	}
	rec, err := h.file.Read()
	if access.IsEndOfData(err) {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (h *Handle) pad(rec []byte) ([]byte, error) {
	switch {
	case len(rec) == h.recordLength:
		return rec, nil
	case len(rec) > h.recordLength:
		return nil, fmt.Errorf("record of %d bytes exceeds dataset record length %d", len(rec), h.recordLength)
	}
	out := make([]byte, h.recordLength)
	copy(out, rec)
	return out, nil
}

// Write inserts a record
func (h *Handle) Write(rec []byte) error {
	if err := h.requireWritable(); err != nil {
		return err
	}
	rec, err := h.pad(rec)
	if err != nil {
		return err
	}
	err = h.file.Write(rec)
	if access.IsDuplicateKey(err) {
		return ErrDuplicateKey
	}
	return err
}

// Rewrite replaces the record returned by the last read
func (h *Handle) Rewrite(rec []byte) error {
	if err := h.requireWritable(); err != nil {
		return err
	}
	rec, err := h.pad(rec)
	if err != nil {
		return err
	}
	err = h.file.Update(rec)
	if access.IsNotPositioned(err) {
		return ErrNotPositioned
	}
	return err
}

// Delete removes the record returned by the last read
func (h *Handle) Delete() error {
	if err := h.requireWritable(); err != nil {
		return err
	}
	err := h.file.Delete()
	if access.IsNotPositioned(err) {
		return ErrNotPositioned
	}
	return err
}

// Close closes the file. The handle is closed afterwards even when the
// access method reports an error.
func (h *Handle) Close() error {
	if !h.IsOpen() {
		return ErrNotOpen
	}
	err := h.file.Close()
	h.file = nil
	h.state = StateClosed
	if err != nil {
		h.logger.Error("dataset close failed", "error", err)
		return err
	}
	h.logger.Info("dataset closed")
	return nil
}

// Deallocate removes the dataset from the catalog
func (h *Handle) Deallocate() error {
	if h.IsOpen() || h.state == StateOpening {
		return ErrDatasetOpen
	}
	if err := h.method.Deallocate(h.path); err != nil {
		return err
	}
	h.logger.Info("dataset deallocated")
	return nil
}

// Scan locates a starting record and reads forward, returning at most limit
// records (all remaining when limit <= 0). Nothing located yields no records.
func (h *Handle) Scan(key []byte, mode LocateMode, limit int) ([][]byte, error) {
	first, err := h.Locate(key, mode)
	if errors.Is(err, ErrNoRecord) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	out := [][]byte{first}
	for limit <= 0 || len(out) < limit {
		rec, err := h.ReadNext()
		if errors.Is(err, ErrEndOfData) {
			break
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// keyOf returns the key bytes of a native record
func (h *Handle) keyOf(rec []byte) []byte {
	if len(rec) < h.keyOffset+h.keyLength {
		return nil
	}
	return rec[h.keyOffset : h.keyOffset+h.keyLength]
}

func (h *Handle) padKey(key []byte) []byte {
	if len(key) >= h.keyLength {
		return key[:h.keyLength]
	}
	out := make([]byte, h.keyLength)
	copy(out, key)
	return out
}
