// Package compress provides the value compression algorithms used by the
// persistent access method.
//
// Each stored record value is framed as a one byte algorithm tag followed by
// the (possibly compressed) payload, so a dataset can be reopened with a
// different configured algorithm and still read its existing records.
package compress

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm compresses and decompresses record payloads
type Algorithm interface {
	Name() string
	Tag() byte
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// Algorithm names accepted by Lookup
const (
	None   = "none"
	Snappy = "snappy"
	Zstd   = "zstd"
	LZ4    = "lz4"
)

var (
	registryMu sync.RWMutex
	byName     = map[string]Algorithm{}
	byTag      = map[byte]Algorithm{}
)

func init() {
	Register(noneAlgorithm{})
	Register(snappyAlgorithm{})
	Register(&zstdAlgorithm{})
	Register(lz4Algorithm{})
}

// Register adds an algorithm to the registry, replacing any algorithm with
// the same name or tag.
func Register(a Algorithm) {
	registryMu.Lock()
	defer registryMu.Unlock()
	byName[a.Name()] = a
	byTag[a.Tag()] = a
}

// Lookup returns the algorithm registered under name. An empty name selects
// "none".
func Lookup(name string) (Algorithm, error) {
	if name == "" {
		name = None
	}
	registryMu.RLock()
	defer registryMu.RUnlock()
	a, ok := byName[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("compression algorithm %s not found", name)
	}
	return a, nil
}

// Names lists the registered algorithm names in sorted order
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Seal compresses data with a and prepends the algorithm tag
func Seal(a Algorithm, data []byte) ([]byte, error) {
	payload, err := a.Compress(data)
	if err != nil {
		return nil, fmt.Errorf("compression failed: %w", err)
	}
	out := make([]byte, 1+len(payload))
	out[0] = a.Tag()
	copy(out[1:], payload)
	return out, nil
}

// Open reverses Seal using the algorithm named by the frame's tag
func Open(frame []byte) ([]byte, error) {
	if len(frame) == 0 {
		return nil, fmt.Errorf("empty compression frame")
	}
	registryMu.RLock()
	a, ok := byTag[frame[0]]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown compression tag 0x%02x", frame[0])
	}
	data, err := a.Decompress(frame[1:])
	if err != nil {
		return nil, fmt.Errorf("decompression failed: %w", err)
	}
	return data, nil
}

type noneAlgorithm struct{}

func (noneAlgorithm) Name() string { return None }
func (noneAlgorithm) Tag() byte    { return 0 }

func (noneAlgorithm) Compress(data []byte) ([]byte, error) {
	return append([]byte(nil), data...), nil
}

func (noneAlgorithm) Decompress(data []byte) ([]byte, error) {
	return append([]byte(nil), data...), nil
}

type snappyAlgorithm struct{}

func (snappyAlgorithm) Name() string { return Snappy }
func (snappyAlgorithm) Tag() byte    { return 1 }

func (snappyAlgorithm) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (snappyAlgorithm) Decompress(data []byte) ([]byte, error) {
	return snappy.Decode(nil, data)
}

// zstdAlgorithm lazily builds one encoder and one decoder; both are safe for
// concurrent EncodeAll/DecodeAll calls.
type zstdAlgorithm struct {
	once    sync.Once
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	err     error
}

func (*zstdAlgorithm) Name() string { return Zstd }
func (*zstdAlgorithm) Tag() byte    { return 2 }

func (a *zstdAlgorithm) init() error {
	a.once.Do(func() {
		a.encoder, a.err = zstd.NewWriter(nil)
		if a.err != nil {
			return
		}
		a.decoder, a.err = zstd.NewReader(nil)
	})
	return a.err
}

func (a *zstdAlgorithm) Compress(data []byte) ([]byte, error) {
	if err := a.init(); err != nil {
		return nil, err
	}
	return a.encoder.EncodeAll(data, nil), nil
}

func (a *zstdAlgorithm) Decompress(data []byte) ([]byte, error) {
	if err := a.init(); err != nil {
		return nil, err
	}
	return a.decoder.DecodeAll(data, nil)
}

type lz4Algorithm struct{}

func (lz4Algorithm) Name() string { return LZ4 }
func (lz4Algorithm) Tag() byte    { return 3 }

func (lz4Algorithm) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (lz4Algorithm) Decompress(data []byte) ([]byte, error) {
	return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
}
