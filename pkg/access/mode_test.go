package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in       string
		readOnly bool
		wantErr  bool
	}{
		{"", false, false},
		{"rb+,type=record", false, false},
		{"r+b, type=record", false, false},
		{"r+", false, false},
		{"rb,type=record", true, false},
		{"r", true, false},
		{"wb+,type=record", false, true},
		{"rb+,type=blocked", false, true},
		{"rb+,recfm=fb", false, true},
		{"rb+,record", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			m, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.readOnly, m.ReadOnly)
		})
	}
}

func TestMode_String(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, DefaultMode, m.String())
	assert.Equal(t, "rb,type=record", ReadOnly.String())
	assert.Equal(t, "rb,type=record", Mode{ReadOnly: true}.String())
}
