package access

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"gopkg.in/yaml.v3"

	"github.com/ssargent/keyds/pkg/compress"
)

const (
	metaPrefix   byte = 0x00
	recordPrefix byte = 0x01
)

var attributesKey = []byte{metaPrefix, 'a', 't', 't', 'r', 's'}

// Pebble stores each dataset as a pebble database in its own directory.
// Keys are unique.
type Pebble struct {
	fs          vfs.FS
	logger      pebble.Logger
	compression compress.Algorithm
	sync        bool
}

// PebbleOption configures the pebble access method
type PebbleOption func(*Pebble)

// WithFS sets the filesystem datasets are stored on
func WithFS(fs vfs.FS) PebbleOption {
	return func(p *Pebble) { p.fs = fs }
}

// WithPebbleLogger routes pebble's internal logging
func WithPebbleLogger(l pebble.Logger) PebbleOption {
	return func(p *Pebble) { p.logger = l }
}

// WithCompression compresses record values with a
func WithCompression(a compress.Algorithm) PebbleOption {
	return func(p *Pebble) {
		if a != nil {
			p.compression = a
		}
	}
}

// WithSync makes every mutation durable before it returns
func WithSync(sync bool) PebbleOption {
	return func(p *Pebble) { p.sync = sync }
}

// NewPebble creates the pebble access method
func NewPebble(opts ...PebbleOption) *Pebble {
	none, _ := compress.Lookup(compress.None)
	p := &Pebble{fs: vfs.Default, compression: none, sync: true}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pebble) Name() string { return "pebble" }

func (p *Pebble) options(readOnly bool) *pebble.Options {
	opts := &pebble.Options{
		FS:               p.fs,
		ReadOnly:         readOnly,
		ErrorIfNotExists: true,
	}
	if p.logger != nil {
		opts.Logger = p.logger
	}
	return opts
}

func (p *Pebble) writeOptions() *pebble.WriteOptions {
	if p.sync {
		return pebble.Sync
	}
	return pebble.NoSync
}

// Allocate creates a new dataset at path
func (p *Pebble) Allocate(path string, attrs Attributes) error {
	const op = "allocate"
	if err := attrs.Validate(); err != nil {
		return logicalError(op, FeedbackRecordLength, err.Error())
	}

	opts := p.options(false)
	opts.ErrorIfNotExists = false
	opts.ErrorIfExists = true
	db, err := pebble.Open(path, opts)
	switch {
	case errors.Is(err, pebble.ErrDBAlreadyExists):
		return logicalError(op, FeedbackAllocated, fmt.Sprintf("dataset %s is already allocated", path))
	case err != nil && isLockConflict(err):
		return logicalError(op, FeedbackAllocated, fmt.Sprintf("dataset %s is already allocated and in use", path))
	case err != nil:
		return physicalError(op, err)
	}

	data, err := yaml.Marshal(attrs)
	if err != nil {
		db.Close()
		return physicalError(op, err)
	}
	if err := db.Set(attributesKey, data, pebble.Sync); err != nil {
		db.Close()
		return physicalError(op, err)
	}
	if err := db.Close(); err != nil {
		return physicalError(op, err)
	}
	return nil
}

// Open opens the dataset at path
func (p *Pebble) Open(path string, mode Mode) (File, error) {
	const op = "open"
	db, err := pebble.Open(path, p.options(mode.ReadOnly))
	if err != nil {
		return nil, p.openError(op, path, err)
	}

	data, closer, err := db.Get(attributesKey)
	if err != nil {
		db.Close()
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, logicalError(op, FeedbackNotAllocated, fmt.Sprintf("%s is not a keyed dataset", path))
		}
		return nil, physicalError(op, err)
	}
	var attrs Attributes
	err = yaml.Unmarshal(data, &attrs)
	closer.Close()
	if err != nil {
		db.Close()
		return nil, physicalError(op, fmt.Errorf("corrupt dataset attributes: %w", err))
	}

	return &pebbleFile{
		db:          db,
		attrs:       attrs,
		readOnly:    mode.ReadOnly,
		compression: p.compression,
		wo:          p.writeOptions(),
		inclusive:   true,
	}, nil
}

func (p *Pebble) openError(op, path string, err error) error {
	switch {
	case errors.Is(err, pebble.ErrDBDoesNotExist):
		return logicalError(op, FeedbackNotAllocated, fmt.Sprintf("dataset %s does not exist", path))
	case isLockConflict(err):
		e := logicalError(op, FeedbackInUse, fmt.Sprintf("dataset %s is in use", path))
		e.Err = fmt.Errorf("%w: %w", e.Err, err)
		return e
	default:
		if _, statErr := p.fs.Stat(path); statErr != nil {
			return logicalError(op, FeedbackNotAllocated, fmt.Sprintf("dataset %s does not exist", path))
		}
		return physicalError(op, err)
	}
}

// Exists reports whether a dataset is allocated at path. A dataset held
// open elsewhere exists.
func (p *Pebble) Exists(path string) (bool, error) {
	db, err := pebble.Open(path, p.options(true))
	if err == nil {
		return true, db.Close()
	}
	perr := p.openError("exists", path, err)
	switch {
	case IsInUse(perr):
		return true, nil
	case IsNotAllocated(perr):
		return false, nil
	default:
		return false, perr
	}
}

// Deallocate deletes the dataset at path. It fails while the dataset is open.
func (p *Pebble) Deallocate(path string) error {
	const op = "deallocate"
	ok, err := p.Exists(path)
	if err != nil {
		return err
	}
	if !ok {
		return logicalError(op, FeedbackNotAllocated, fmt.Sprintf("dataset %s does not exist", path))
	}

	lock, err := pebble.LockDirectory(path, p.fs)
	if err != nil {
		if isLockConflict(err) {
			return logicalError(op, FeedbackInUse, fmt.Sprintf("dataset %s is in use", path))
		}
		return physicalError(op, err)
	}
	if err := lock.Close(); err != nil {
		return physicalError(op, err)
	}
	if err := p.fs.RemoveAll(path); err != nil {
		return physicalError(op, err)
	}
	return nil
}

type pebbleFile struct {
	db          *pebble.DB
	attrs       Attributes
	readOnly    bool
	compression compress.Algorithm
	wo          *pebble.WriteOptions

	// next is where the following Read starts; nil means the first record.
	// When inclusive is false, next itself has already been read.
	next      []byte
	inclusive bool
	// cur is the key returned by the last Read, nil when there is none
	cur []byte
}

func recordKey(key []byte) []byte {
	out := make([]byte, 1+len(key))
	out[0] = recordPrefix
	copy(out[1:], key)
	return out
}

func (f *pebbleFile) Attributes() Attributes { return f.attrs }

func (f *pebbleFile) iter() (*pebble.Iterator, error) {
	return f.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{recordPrefix},
		UpperBound: []byte{recordPrefix + 1},
	})
}

func (f *pebbleFile) Locate(key []byte, mode LocateMode) error {
	const op = "locate"
	f.cur = nil

	if mode == KeyEqual {
		k := padKey(key, f.attrs.KeyLength)
		_, closer, err := f.db.Get(recordKey(k))
		if errors.Is(err, pebble.ErrNotFound) {
			return logicalError(op, FeedbackNoRecord, "no record found")
		}
		if err != nil {
			return physicalError(op, err)
		}
		closer.Close()
		f.next, f.inclusive = k, true
		return nil
	}

	it, err := f.iter()
	if err != nil {
		return physicalError(op, err)
	}
	defer it.Close()

	var valid bool
	switch mode {
	case KeyGreaterOrEqual:
		valid = it.SeekGE(recordKey(padKey(key, f.attrs.KeyLength)))
	case KeyFirst:
		valid = it.First()
	case KeyLast:
		valid = it.Last()
	default:
		return logicalError(op, FeedbackNone, fmt.Sprintf("unsupported locate mode %s", mode))
	}
	if !valid {
		if err := it.Error(); err != nil {
			return physicalError(op, err)
		}
		return logicalError(op, FeedbackNoRecord, "no record found")
	}
	f.next = bytes.Clone(it.Key()[1:])
	f.inclusive = true
	return nil
}

func (f *pebbleFile) Read() ([]byte, error) {
	const op = "read"
	it, err := f.iter()
	if err != nil {
		return nil, physicalError(op, err)
	}
	defer it.Close()

	var valid bool
	switch {
	case f.next == nil:
		valid = it.First()
	case f.inclusive:
		valid = it.SeekGE(recordKey(f.next))
	default:
		valid = it.SeekGE(recordKey(append(bytes.Clone(f.next), 0)))
	}
	if !valid {
		if err := it.Error(); err != nil {
			return nil, physicalError(op, err)
		}
		f.cur = nil
		return nil, logicalError(op, FeedbackEndOfData, "end of data")
	}

	rec, err := compress.Open(it.Value())
	if err != nil {
		return nil, physicalError(op, err)
	}
	key := bytes.Clone(it.Key()[1:])
	f.cur = key
	f.next, f.inclusive = key, false
	return rec, nil
}

func (f *pebbleFile) checkRecord(op string, rec []byte) ([]byte, *Error) {
	if f.readOnly {
		return nil, logicalError(op, FeedbackInputOnly, "dataset is open for input only")
	}
	if len(rec) != f.attrs.RecordLength {
		return nil, logicalError(op, FeedbackRecordLength,
			fmt.Sprintf("record length %d does not match dataset record length %d", len(rec), f.attrs.RecordLength))
	}
	return rec[f.attrs.KeyOffset : f.attrs.KeyOffset+f.attrs.KeyLength], nil
}

func (f *pebbleFile) put(op string, key, rec []byte) error {
	sealed, err := compress.Seal(f.compression, rec)
	if err != nil {
		return physicalError(op, err)
	}
	if err := f.db.Set(recordKey(key), sealed, f.wo); err != nil {
		return physicalError(op, err)
	}
	return nil
}

func (f *pebbleFile) Write(rec []byte) error {
	const op = "write"
	key, e := f.checkRecord(op, rec)
	if e != nil {
		return e
	}
	_, closer, err := f.db.Get(recordKey(key))
	if err == nil {
		closer.Close()
		return logicalError(op, FeedbackDuplicateKey, "duplicate key")
	}
	if !errors.Is(err, pebble.ErrNotFound) {
		return physicalError(op, err)
	}
	return f.put(op, key, rec)
}

func (f *pebbleFile) Update(rec []byte) error {
	const op = "update"
	key, e := f.checkRecord(op, rec)
	if e != nil {
		return e
	}
	if f.cur == nil {
		return logicalError(op, FeedbackNotPositioned, "no record has been read for update")
	}
	if !bytes.Equal(key, f.cur) {
		return logicalError(op, FeedbackKeyChanged, "record key cannot be changed by update")
	}
	if err := f.put(op, key, rec); err != nil {
		return err
	}
	f.cur = nil
	return nil
}

func (f *pebbleFile) Delete() error {
	const op = "delete"
	if f.readOnly {
		return logicalError(op, FeedbackInputOnly, "dataset is open for input only")
	}
	if f.cur == nil {
		return logicalError(op, FeedbackNotPositioned, "no record has been read for delete")
	}
	if err := f.db.Delete(recordKey(f.cur), f.wo); err != nil {
		return physicalError(op, err)
	}
	f.cur = nil
	return nil
}

func (f *pebbleFile) Close() error {
	if f.db == nil {
		return logicalError("close", FeedbackNone, "dataset is not open")
	}
	err := f.db.Close()
	f.db = nil
	if err != nil {
		return physicalError("close", err)
	}
	return nil
}
