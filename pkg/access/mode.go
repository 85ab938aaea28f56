package access

import (
	"fmt"
	"strings"
)

// DefaultMode is the open mode used when none is given
const DefaultMode = "rb+,type=record"

// Mode is a parsed fopen-style open mode
type Mode struct {
	ReadOnly bool
	raw      string
}

// ReadWrite is the parsed DefaultMode
var ReadWrite = Mode{raw: DefaultMode}

// ReadOnly opens a dataset for input only
var ReadOnly = Mode{ReadOnly: true, raw: "rb,type=record"}

func (m Mode) String() string {
	if m.raw != "" {
		return m.raw
	}
	if m.ReadOnly {
		return ReadOnly.raw
	}
	return DefaultMode
}

// ParseMode parses a mode such as "rb+,type=record". An empty string yields
// the default read-write mode.
func ParseMode(s string) (Mode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ReadWrite, nil
	}

	parts := strings.Split(s, ",")
	m := Mode{raw: s}
	switch strings.TrimSpace(parts[0]) {
	case "r", "rb":
		m.ReadOnly = true
	case "r+", "rb+", "r+b":
		m.ReadOnly = false
	default:
		return Mode{}, fmt.Errorf("unsupported open mode %q: expected r, rb, r+, rb+ or r+b", parts[0])
	}

	for _, opt := range parts[1:] {
		k, v, ok := strings.Cut(strings.TrimSpace(opt), "=")
		if !ok {
			return Mode{}, fmt.Errorf("malformed open mode option %q", opt)
		}
		switch strings.TrimSpace(k) {
		case "type":
			if strings.TrimSpace(v) != "record" {
				return Mode{}, fmt.Errorf("unsupported file type %q: only type=record is supported", v)
			}
		default:
			return Mode{}, fmt.Errorf("unknown open mode option %q", k)
		}
	}
	return m, nil
}
