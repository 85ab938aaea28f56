package codec

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// Transcoder converts string field bytes between the caller's encoding and
// the dataset's storage encoding. It is applied to string fields and string
// keys only.
type Transcoder interface {
	Name() string
	ToStorage(b []byte) ([]byte, error)
	FromStorage(b []byte) ([]byte, error)
}

type identity struct{}

func (identity) Name() string                         { return "identity" }
func (identity) ToStorage(b []byte) ([]byte, error)   { return b, nil }
func (identity) FromStorage(b []byte) ([]byte, error) { return b, nil }

type codePage struct {
	name string
	cm   *charmap.Charmap
}

func (c codePage) Name() string { return c.name }

func (c codePage) ToStorage(b []byte) ([]byte, error) {
	out, err := c.cm.NewEncoder().Bytes(b)
	if err != nil {
		return nil, fmt.Errorf("transcode to %s: %w", c.name, err)
	}
	return out, nil
}

func (c codePage) FromStorage(b []byte) ([]byte, error) {
	out, err := c.cm.NewDecoder().Bytes(b)
	if err != nil {
		return nil, fmt.Errorf("transcode from %s: %w", c.name, err)
	}
	return out, nil
}

var (
	// Identity stores strings as given
	Identity Transcoder = identity{}
	// EBCDIC1047 stores strings in IBM code page 1047 (z/OS Open Systems)
	EBCDIC1047 Transcoder = codePage{name: "ibm-1047", cm: charmap.CodePage1047}
	// EBCDIC037 stores strings in IBM code page 037 (US/Canada)
	EBCDIC037 Transcoder = codePage{name: "ibm-037", cm: charmap.CodePage037}
)

// LookupTranscoder resolves an encoding name as used in configuration files
func LookupTranscoder(name string) (Transcoder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "identity", "none", "utf-8", "utf8", "ascii":
		return Identity, nil
	case "ibm-1047", "ibm1047", "cp1047", "ebcdic":
		return EBCDIC1047, nil
	case "ibm-037", "ibm037", "cp037":
		return EBCDIC037, nil
	default:
		return nil, fmt.Errorf("unknown encoding %q", name)
	}
}
