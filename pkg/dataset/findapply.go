package dataset

import (
	"bytes"
	"errors"

	"github.com/ssargent/keyds/pkg/codec"
)

// FindUpdate merges patch onto every consecutive record whose key equals
// key, starting at the located record. It returns the number of records
// rewritten. A failed rewrite stops the loop and is returned along with the
// count reached so far.
func (h *Handle) FindUpdate(key []byte, patch *codec.Patch) (int, error) {
	if err := h.requireWritable(); err != nil {
		return 0, err
	}
	if patch == nil {
		return 0, errors.New("find update: no patch given")
	}
	return h.findApply(key, func(rec []byte) error {
		return h.Rewrite(patch.Apply(rec))
	})
}

// FindDelete deletes every consecutive record whose key equals key
func (h *Handle) FindDelete(key []byte) (int, error) {
	if err := h.requireWritable(); err != nil {
		return 0, err
	}
	return h.findApply(key, func([]byte) error {
		return h.Delete()
	})
}

func (h *Handle) findApply(key []byte, apply func(rec []byte) error) (int, error) {
	rec, err := h.Locate(key, KeyEqual)
	if errors.Is(err, ErrNoRecord) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	target := bytes.Clone(h.padKey(key))
	count := 0
	for {
		if err := apply(rec); err != nil {
			return count, err
		}
		count++

		rec, err = h.ReadNext()
		if errors.Is(err, ErrEndOfData) {
			return count, nil
		}
		if err != nil {
			return count, err
		}
		if !bytes.Equal(h.keyOf(rec), target) {
			return count, nil
		}
	}
}
