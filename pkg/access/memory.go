package access

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
)

// FaultFunc is consulted before every mutation of an in-memory dataset. A
// non-nil return fails the mutation as a physical error.
type FaultFunc func(op string, key []byte) error

// Memory keeps datasets in process memory. It can hold duplicate keys, which
// are kept in insertion order.
type Memory struct {
	mu         sync.Mutex
	datasets   map[string]*memDataset
	duplicates bool
	fault      FaultFunc
}

type memDataset struct {
	attrs   Attributes
	records [][]byte // sorted by key
	open    bool
}

// MemoryOption configures the in-memory access method
type MemoryOption func(*Memory)

// WithDuplicateKeys allows records with equal keys
func WithDuplicateKeys() MemoryOption {
	return func(m *Memory) { m.duplicates = true }
}

// WithFault installs a fault hook for testing failure paths
func WithFault(fn FaultFunc) MemoryOption {
	return func(m *Memory) { m.fault = fn }
}

// NewMemory creates an empty in-memory catalog
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{datasets: make(map[string]*memDataset)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Allocate(path string, attrs Attributes) error {
	const op = "allocate"
	if err := attrs.Validate(); err != nil {
		return logicalError(op, FeedbackRecordLength, err.Error())
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.datasets[path]; ok {
		return logicalError(op, FeedbackAllocated, fmt.Sprintf("dataset %s is already allocated", path))
	}
	m.datasets[path] = &memDataset{attrs: attrs}
	return nil
}

func (m *Memory) Open(path string, mode Mode) (File, error) {
	const op = "open"
	m.mu.Lock()
	defer m.mu.Unlock()
	ds, ok := m.datasets[path]
	if !ok {
		return nil, logicalError(op, FeedbackNotAllocated, fmt.Sprintf("dataset %s does not exist", path))
	}
	if ds.open {
		return nil, logicalError(op, FeedbackInUse, fmt.Sprintf("dataset %s is in use", path))
	}
	ds.open = true
	return &memFile{m: m, ds: ds, readOnly: mode.ReadOnly, cur: -1}, nil
}

func (m *Memory) Exists(path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.datasets[path]
	return ok, nil
}

func (m *Memory) Deallocate(path string) error {
	const op = "deallocate"
	m.mu.Lock()
	defer m.mu.Unlock()
	ds, ok := m.datasets[path]
	if !ok {
		return logicalError(op, FeedbackNotAllocated, fmt.Sprintf("dataset %s does not exist", path))
	}
	if ds.open {
		return logicalError(op, FeedbackInUse, fmt.Sprintf("dataset %s is in use", path))
	}
	delete(m.datasets, path)
	return nil
}

// Keys returns the keys of every record in the dataset at path, in order
func (m *Memory) Keys(path string) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	ds, ok := m.datasets[path]
	if !ok {
		return nil
	}
	keys := make([][]byte, len(ds.records))
	for i, rec := range ds.records {
		keys[i] = bytes.Clone(ds.key(rec))
	}
	return keys
}

func (ds *memDataset) key(rec []byte) []byte {
	return rec[ds.attrs.KeyOffset : ds.attrs.KeyOffset+ds.attrs.KeyLength]
}

// lowerBound is the index of the first record with key >= k
func (ds *memDataset) lowerBound(k []byte) int {
	return sort.Search(len(ds.records), func(i int) bool {
		return bytes.Compare(ds.key(ds.records[i]), k) >= 0
	})
}

// upperBound is the index of the first record with key > k
func (ds *memDataset) upperBound(k []byte) int {
	return sort.Search(len(ds.records), func(i int) bool {
		return bytes.Compare(ds.key(ds.records[i]), k) > 0
	})
}

type memFile struct {
	m        *Memory
	ds       *memDataset
	readOnly bool
	closed   bool
	next     int // index the next Read returns
	cur      int // index returned by the last Read, -1 when none
}

func (f *memFile) Attributes() Attributes { return f.ds.attrs }

func (f *memFile) Locate(key []byte, mode LocateMode) error {
	const op = "locate"
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if f.closed {
		return logicalError(op, FeedbackNone, "dataset is not open")
	}
	f.cur = -1

	n := len(f.ds.records)
	k := padKey(key, f.ds.attrs.KeyLength)
	i := -1
	switch mode {
	case KeyEqual:
		if j := f.ds.lowerBound(k); j < n && bytes.Equal(f.ds.key(f.ds.records[j]), k) {
			i = j
		}
	case KeyGreaterOrEqual:
		if j := f.ds.lowerBound(k); j < n {
			i = j
		}
	case KeyFirst:
		if n > 0 {
			i = 0
		}
	case KeyLast:
		if n > 0 {
			i = n - 1
		}
	default:
		return logicalError(op, FeedbackNone, fmt.Sprintf("unsupported locate mode %s", mode))
	}
	if i < 0 {
		return logicalError(op, FeedbackNoRecord, "no record found")
	}
	f.next = i
	return nil
}

func (f *memFile) Read() ([]byte, error) {
	const op = "read"
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if f.closed {
		return nil, logicalError(op, FeedbackNone, "dataset is not open")
	}
	if f.next >= len(f.ds.records) {
		f.cur = -1
		return nil, logicalError(op, FeedbackEndOfData, "end of data")
	}
	f.cur = f.next
	f.next++
	return bytes.Clone(f.ds.records[f.cur]), nil
}

func (f *memFile) checkRecord(op string, rec []byte) ([]byte, error) {
	if f.closed {
		return nil, logicalError(op, FeedbackNone, "dataset is not open")
	}
	if f.readOnly {
		return nil, logicalError(op, FeedbackInputOnly, "dataset is open for input only")
	}
	if len(rec) != f.ds.attrs.RecordLength {
		return nil, logicalError(op, FeedbackRecordLength,
			fmt.Sprintf("record length %d does not match dataset record length %d", len(rec), f.ds.attrs.RecordLength))
	}
	key := f.ds.key(rec)
	if f.m.fault != nil {
		if err := f.m.fault(op, key); err != nil {
			return nil, physicalError(op, err)
		}
	}
	return key, nil
}

func (f *memFile) Write(rec []byte) error {
	const op = "write"
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	key, err := f.checkRecord(op, rec)
	if err != nil {
		return err
	}

	i := f.ds.upperBound(key)
	if !f.m.duplicates && i > 0 && bytes.Equal(f.ds.key(f.ds.records[i-1]), key) {
		return logicalError(op, FeedbackDuplicateKey, "duplicate key")
	}
	f.ds.records = append(f.ds.records, nil)
	copy(f.ds.records[i+1:], f.ds.records[i:])
	f.ds.records[i] = bytes.Clone(rec)

	if i < f.next {
		f.next++
	}
	if f.cur >= i {
		f.cur++
	}
	return nil
}

func (f *memFile) Update(rec []byte) error {
	const op = "update"
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	key, err := f.checkRecord(op, rec)
	if err != nil {
		return err
	}
	if f.cur < 0 {
		return logicalError(op, FeedbackNotPositioned, "no record has been read for update")
	}
	if !bytes.Equal(key, f.ds.key(f.ds.records[f.cur])) {
		return logicalError(op, FeedbackKeyChanged, "record key cannot be changed by update")
	}
	f.ds.records[f.cur] = bytes.Clone(rec)
	f.cur = -1
	return nil
}

func (f *memFile) Delete() error {
	const op = "delete"
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if f.closed {
		return logicalError(op, FeedbackNone, "dataset is not open")
	}
	if f.readOnly {
		return logicalError(op, FeedbackInputOnly, "dataset is open for input only")
	}
	if f.cur < 0 {
		return logicalError(op, FeedbackNotPositioned, "no record has been read for delete")
	}
	if f.m.fault != nil {
		if err := f.m.fault(op, f.ds.key(f.ds.records[f.cur])); err != nil {
			return physicalError(op, err)
		}
	}
	f.ds.records = append(f.ds.records[:f.cur], f.ds.records[f.cur+1:]...)
	if f.cur < f.next {
		f.next--
	}
	f.cur = -1
	return nil
}

func (f *memFile) Close() error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if f.closed {
		return logicalError("close", FeedbackNone, "dataset is not open")
	}
	f.closed = true
	f.ds.open = false
	return nil
}
