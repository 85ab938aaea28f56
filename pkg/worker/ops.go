package worker

import (
	"fmt"

	"github.com/ssargent/keyds/pkg/codec"
	"github.com/ssargent/keyds/pkg/dataset"
)

// Op is one dataset operation carried by a Request
type Op interface {
	Name() string
}

type (
	ReadNext struct{}
	Locate   struct {
		Key  []byte
		Mode dataset.LocateMode
	}
	Write struct {
		Record []byte
	}
	Rewrite struct {
		Record []byte
	}
	Delete     struct{}
	FindUpdate struct {
		Key   []byte
		Patch *codec.Patch
	}
	FindDelete struct {
		Key []byte
	}
	Scan struct {
		Key   []byte
		Mode  dataset.LocateMode
		Limit int
	}
	// Close closes the dataset and stops the worker
	Close struct{}
	// Exit stops the worker without touching the dataset. Files that were
	// never written to tear down with it and close the dataset themselves.
	Exit struct{}
)

func (ReadNext) Name() string   { return "read" }
func (Locate) Name() string     { return "locate" }
func (Write) Name() string      { return "write" }
func (Rewrite) Name() string    { return "update" }
func (Delete) Name() string     { return "delete" }
func (FindUpdate) Name() string { return "find_update" }
func (FindDelete) Name() string { return "find_delete" }
func (Scan) Name() string       { return "scan" }
func (Close) Name() string      { return "close" }
func (Exit) Name() string       { return "exit" }

// Result is the outcome of one Op
type Result struct {
	Record  []byte
	Records [][]byte
	Count   int
	Err     error
}

// Executor runs dataset operations; *dataset.Handle implements it
type Executor interface {
	ReadNext() ([]byte, error)
	Locate(key []byte, mode dataset.LocateMode) ([]byte, error)
	Write(rec []byte) error
	Rewrite(rec []byte) error
	Delete() error
	FindUpdate(key []byte, patch *codec.Patch) (int, error)
	FindDelete(key []byte) (int, error)
	Scan(key []byte, mode dataset.LocateMode, limit int) ([][]byte, error)
	Close() error
}

var _ Executor = (*dataset.Handle)(nil)

// Execute runs op against ex on the calling goroutine
func Execute(ex Executor, op Op) Result {
	var r Result
	switch o := op.(type) {
	case ReadNext:
		r.Record, r.Err = ex.ReadNext()
	case Locate:
		r.Record, r.Err = ex.Locate(o.Key, o.Mode)
	case Write:
		r.Err = ex.Write(o.Record)
	case Rewrite:
		r.Err = ex.Rewrite(o.Record)
	case Delete:
		r.Err = ex.Delete()
	case FindUpdate:
		r.Count, r.Err = ex.FindUpdate(o.Key, o.Patch)
	case FindDelete:
		r.Count, r.Err = ex.FindDelete(o.Key)
	case Scan:
		r.Records, r.Err = ex.Scan(o.Key, o.Mode, o.Limit)
	case Close:
		r.Err = ex.Close()
	case Exit:
	default:
		r.Err = fmt.Errorf("unsupported operation %T", op)
	}
	return r
}
