package codec

import (
	"encoding/hex"
	"fmt"
)

// normalizeHex strips the optional 0x/x prefix, validates the digits against
// the field bounds and returns an even-length digit string.
func normalizeHex(f Field, s string) (string, error) {
	digits := s
	switch {
	case len(digits) >= 2 && digits[0] == '0' && (digits[1] == 'x' || digits[1] == 'X'):
		digits = digits[2:]
	case len(digits) >= 1 && (digits[0] == 'x' || digits[0] == 'X'):
		digits = digits[1:]
	}

	for i := 0; i < len(digits); i++ {
		if !isHexDigit(digits[i]) {
			return "", invalid(f.Name, fmt.Sprintf("hexadecimal value of '%s' contains invalid character '%c'.", f.Name, digits[i]))
		}
	}

	if len(digits) > 2*f.MaxLength {
		return "", tooLong(f.Name, len(digits), 2*f.MaxLength)
	}
	if len(digits) > 0 && (len(digits)+1)/2 < f.MinLength {
		return "", tooShort(f.Name, (len(digits)+1)/2, f.MinLength)
	}
	if len(digits)%2 == 1 {
		digits += "0"
	}
	return digits, nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// hexToBytes converts a hex value into dst, zero-filling the remainder. It
// returns the number of significant bytes written.
func hexToBytes(f Field, s string, dst []byte) (int, error) {
	digits, err := normalizeHex(f, s)
	if err != nil {
		return 0, err
	}
	n, err := hex.Decode(dst, []byte(digits))
	if err != nil {
		return 0, invalid(f.Name, fmt.Sprintf("hexadecimal value of '%s' is invalid: %v", f.Name, err))
	}
	clear(dst[n:])
	return n, nil
}

// bytesToHex renders b as lowercase hex with trailing zero bytes stripped,
// keeping at least one byte.
func bytesToHex(b []byte) string {
	end := len(b)
	for end > 1 && b[end-1] == 0 {
		end--
	}
	if end == 0 {
		return ""
	}
	return hex.EncodeToString(b[:end])
}
