// Package keyds is the application-facing API for keyed record datasets.
//
// A File validates and encodes field values on the caller's goroutine, runs
// the dataset operation on the dataset's worker and decodes the result.
// Datasets opened read-only skip the worker by default and are serialized by
// a mutex instead.
//
//	layout, _ := codec.LoadSchema("customers.yaml")
//	f, err := keyds.Open("/data/customers", layout, "rb+,type=record")
//	if err != nil {
//	    return err
//	}
//	defer f.Close(ctx)
//
//	rec, err := f.Find(ctx, "00100") // nil, nil when no record matches
//
// Not-found conditions are not errors at this level: reads past the end and
// locates that match nothing return a nil record, and the find-update and
// find-delete forms return a count of zero.
package keyds

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ssargent/keyds/pkg/access"
	"github.com/ssargent/keyds/pkg/codec"
	"github.com/ssargent/keyds/pkg/dataset"
	"github.com/ssargent/keyds/pkg/worker"
)

type options struct {
	method        access.Method
	transcoder    codec.Transcoder
	logger        *slog.Logger
	observer      worker.Observer
	name          string
	routeReadOnly bool
}

// Option configures how a dataset is opened
type Option func(*options)

// WithMethod sets the access method; the default is pebble on the local disk
func WithMethod(m access.Method) Option {
	return func(o *options) { o.method = m }
}

// WithTranscoder sets the string field encoding
func WithTranscoder(tc codec.Transcoder) Option {
	return func(o *options) { o.transcoder = tc }
}

// WithLogger sets the logger for the handle and its worker
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver instruments the dataset's operations
func WithObserver(obs worker.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithName labels logs and metrics; the default is the dataset path
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithReadOnlyRouting sends read-only datasets through a worker as well
func WithReadOnlyRouting(route bool) Option {
	return func(o *options) { o.routeReadOnly = route }
}

func buildOptions(path string, opts []Option) *options {
	o := &options{transcoder: codec.Identity, logger: slog.Default(), name: path}
	for _, opt := range opts {
		opt(o)
	}
	if o.method == nil {
		o.method = access.NewPebble()
	}
	return o
}

// File is an open dataset
type File struct {
	handle   *dataset.Handle
	codec    *codec.Codec
	engine   *worker.Engine
	observer worker.Observer
	name     string

	// mu serializes operations when there is no worker
	mu sync.Mutex
	// mutated is set once a write, update or delete has been submitted
	mutated atomic.Bool
}

// Open opens an existing dataset. An empty mode opens it read-write.
func Open(path string, layout *codec.Layout, mode string, opts ...Option) (*File, error) {
	m, err := access.ParseMode(mode)
	if err != nil {
		return nil, err
	}
	o := buildOptions(path, opts)
	h, err := dataset.Open(o.method, path, layout, m, dataset.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}
	return newFile(h, layout, o), nil
}

// Alloc allocates a dataset for layout and opens it read-write
func Alloc(path string, layout *codec.Layout, opts ...Option) (*File, error) {
	o := buildOptions(path, opts)
	h, err := dataset.Alloc(o.method, path, layout, dataset.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}
	return newFile(h, layout, o), nil
}

// Exist reports whether a dataset is allocated at path
func Exist(path string, opts ...Option) (bool, error) {
	o := buildOptions(path, opts)
	return dataset.Exists(o.method, path)
}

func newFile(h *dataset.Handle, layout *codec.Layout, o *options) *File {
	f := &File{
		handle:   h,
		codec:    codec.NewCodec(layout, codec.WithTranscoder(o.transcoder)),
		observer: o.observer,
		name:     o.name,
	}
	if !h.ReadOnly() || o.routeReadOnly {
		f.engine = worker.Start(h,
			worker.WithName(o.name),
			worker.WithObserver(o.observer),
			worker.WithLogger(o.logger))
	}
	return f
}

func (f *File) Layout() *codec.Layout { return f.codec.Layout() }
func (f *File) Codec() *codec.Codec   { return f.codec }
func (f *File) Path() string          { return f.handle.Path() }
func (f *File) ReadOnly() bool        { return f.handle.ReadOnly() }

// RecordLength is the dataset's native record length
func (f *File) RecordLength() int { return f.handle.RecordLength() }

func (f *File) do(ctx context.Context, op worker.Op) worker.Result {
	if f.engine != nil {
		return f.engine.Do(ctx, op)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	start := time.Now()
	res := worker.Execute(f.handle, op)
	if f.observer != nil {
		f.observer.Completed(f.name, op.Name(), time.Since(start), res.Err)
	}
	return res
}

// mutate is do for operations that change the dataset
func (f *File) mutate(ctx context.Context, op worker.Op) worker.Result {
	f.mutated.Store(true)
	return f.do(ctx, op)
}

func (f *File) decode(op string, res worker.Result) (codec.Values, error) {
	if errors.Is(res.Err, dataset.ErrEndOfData) || errors.Is(res.Err, dataset.ErrNoRecord) {
		return nil, nil
	}
	if res.Err != nil {
		return nil, res.Err
	}
	values, err := f.codec.Decode(res.Record)
	if err != nil {
		return nil, codec.WithOp(err, op)
	}
	return values, nil
}

// Read returns the record at the cursor and advances; nil at end of data
func (f *File) Read(ctx context.Context) (codec.Values, error) {
	return f.decode("read", f.do(ctx, worker.ReadNext{}))
}

func (f *File) locate(ctx context.Context, key []byte, mode dataset.LocateMode) (codec.Values, error) {
	return f.decode("find", f.do(ctx, worker.Locate{Key: key, Mode: mode}))
}

// Find returns the record whose key equals key, or nil
func (f *File) Find(ctx context.Context, key string) (codec.Values, error) {
	k, err := f.codec.EncodeKey(key)
	if err != nil {
		return nil, codec.WithOp(err, "find")
	}
	return f.locate(ctx, k, dataset.KeyEqual)
}

// FindBytes is Find with a raw key of 1 to KeyLength bytes
func (f *File) FindBytes(ctx context.Context, key []byte) (codec.Values, error) {
	k, err := f.codec.KeyFromBytes(key)
	if err != nil {
		return nil, codec.WithOp(err, "find")
	}
	return f.locate(ctx, k, dataset.KeyEqual)
}

// FindGE returns the first record whose key is greater than or equal to key
func (f *File) FindGE(ctx context.Context, key string) (codec.Values, error) {
	k, err := f.codec.EncodeKey(key)
	if err != nil {
		return nil, codec.WithOp(err, "findge")
	}
	return f.locate(ctx, k, dataset.KeyGreaterOrEqual)
}

// FindFirst returns the record with the lowest key
func (f *File) FindFirst(ctx context.Context) (codec.Values, error) {
	return f.locate(ctx, nil, dataset.KeyFirst)
}

// FindLast returns the record with the highest key
func (f *File) FindLast(ctx context.Context) (codec.Values, error) {
	return f.locate(ctx, nil, dataset.KeyLast)
}

// Write inserts a record. Fields missing from values are written empty.
func (f *File) Write(ctx context.Context, values codec.Values) error {
	rec, err := f.codec.Encode(values)
	if err != nil {
		return codec.WithOp(err, "write")
	}
	return f.mutate(ctx, worker.Write{Record: rec}).Err
}

// Update replaces the record returned by the last read. Every field must be
// given.
func (f *File) Update(ctx context.Context, values codec.Values) error {
	rec, err := f.codec.EncodeComplete(values)
	if err != nil {
		return codec.WithOp(err, "update")
	}
	return f.mutate(ctx, worker.Rewrite{Record: rec}).Err
}

// Delete removes the record returned by the last read
func (f *File) Delete(ctx context.Context) error {
	return f.mutate(ctx, worker.Delete{}).Err
}

// FindUpdate sets the given fields on every record whose key equals key and
// returns how many records were updated
func (f *File) FindUpdate(ctx context.Context, key string, values codec.Values) (int, error) {
	k, err := f.codec.EncodeKey(key)
	if err != nil {
		return 0, codec.WithOp(err, "update")
	}
	patch, err := f.codec.EncodePatch(values)
	if err != nil {
		return 0, codec.WithOp(err, "update")
	}
	if patch.Empty() {
		return 0, &codec.ValidationError{Op: "update", Reason: "at least one field must be given."}
	}
	if err := f.checkKeyUnchanged(k, values); err != nil {
		return 0, err
	}
	res := f.mutate(ctx, worker.FindUpdate{Key: k, Patch: patch})
	return res.Count, res.Err
}

// checkKeyUnchanged rejects a patch that sets the key field to another key
func (f *File) checkKeyUnchanged(key []byte, values codec.Values) error {
	kf := f.codec.Layout().Key()
	v, ok := values[kf.Name]
	if !ok {
		return nil
	}
	k, err := f.codec.EncodeKey(v)
	if err != nil {
		return codec.WithOp(err, "update")
	}
	if !bytes.Equal(k, key) {
		return &codec.ValidationError{
			Op:     "update",
			Field:  kf.Name,
			Reason: fmt.Sprintf("value of '%s' cannot be changed by update.", kf.Name),
		}
	}
	return nil
}

// FindDelete deletes every record whose key equals key and returns how many
// were deleted
func (f *File) FindDelete(ctx context.Context, key string) (int, error) {
	k, err := f.codec.EncodeKey(key)
	if err != nil {
		return 0, codec.WithOp(err, "delete")
	}
	res := f.mutate(ctx, worker.FindDelete{Key: k})
	return res.Count, res.Err
}

// Scan returns up to limit records starting at the located one (all when
// limit <= 0). key is ignored for KeyFirst and KeyLast.
func (f *File) Scan(ctx context.Context, key string, mode dataset.LocateMode, limit int) ([]codec.Values, error) {
	var k []byte
	if mode == dataset.KeyEqual || mode == dataset.KeyGreaterOrEqual {
		var err error
		if k, err = f.codec.EncodeKey(key); err != nil {
			return nil, codec.WithOp(err, "scan")
		}
	}
	res := f.do(ctx, worker.Scan{Key: k, Mode: mode, Limit: limit})

	out := make([]codec.Values, 0, len(res.Records))
	for _, rec := range res.Records {
		v, err := f.codec.Decode(rec)
		if err != nil {
			return out, codec.WithOp(err, "scan")
		}
		out = append(out, v)
	}
	return out, res.Err
}

// Close closes the dataset and stops its worker. Closing twice returns
// dataset.ErrNotOpen. A file that was never written to stops its worker with
// an exit request and closes the dataset on the calling goroutine.
func (f *File) Close(ctx context.Context) error {
	if f.engine == nil {
		return f.do(ctx, worker.Close{}).Err
	}
	if f.engine.Detached() {
		return dataset.ErrNotOpen
	}
	if !f.mutated.Load() {
		return f.exit(ctx)
	}

	res := f.engine.Do(ctx, worker.Close{})
	if errors.Is(res.Err, worker.ErrWorkerStopped) {
		return dataset.ErrNotOpen
	}
	select {
	case <-f.engine.Stopped():
	case <-ctx.Done():
		return ctx.Err()
	}
	return res.Err
}

func (f *File) exit(ctx context.Context) error {
	res := f.engine.Do(ctx, worker.Exit{})
	if errors.Is(res.Err, worker.ErrWorkerStopped) {
		return dataset.ErrNotOpen
	}
	select {
	case <-f.engine.Stopped():
	case <-ctx.Done():
		// the exit is queued; close once the worker is gone
		go func() {
			<-f.engine.Stopped()
			_ = f.closeHandle()
		}()
		return ctx.Err()
	}
	return f.closeHandle()
}

func (f *File) closeHandle() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	start := time.Now()
	err := f.handle.Close()
	if f.observer != nil {
		f.observer.Completed(f.name, worker.Close{}.Name(), time.Since(start), err)
	}
	return err
}

// Dealloc removes the closed dataset from the catalog
func (f *File) Dealloc(ctx context.Context) error {
	if f.engine != nil && !f.engine.Detached() {
		return dataset.ErrDatasetOpen
	}
	if f.engine != nil {
		select {
		case <-f.engine.Stopped():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handle.Deallocate()
}
