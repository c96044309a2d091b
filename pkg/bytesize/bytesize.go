// Package bytesize provides human-readable byte size parsing and formatting.
// Sizes use binary (1024-based) units; bare numbers are bytes. The Size type
// implements encoding.TextMarshaler/TextUnmarshaler so it can appear directly
// in configuration files ("max_file_size: 2GB").
package bytesize

import (
	"fmt"
	"strconv"
	"strings"
)

// Size represents a byte size as int64.
type Size int64

// Common size constants using binary (1024) base.
const (
	B   Size = 1
	KiB Size = 1024
	MiB Size = 1024 * KiB
	GiB Size = 1024 * MiB
	TiB Size = 1024 * GiB
)

// FromMiB converts a mebibyte count to a Size. File-size caps are
// traditionally configured in whole MiB.
func FromMiB(n int64) Size {
	return Size(n) * MiB
}

// Parse parses a human-readable byte size string.
// Accepted suffixes (case-insensitive): B, K/KB/KiB, M/MB/MiB, G/GB/GiB,
// T/TB/TiB. No suffix means bytes. Fractional values are allowed ("1.5GB").
func Parse(s string) (Size, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("bytesize: empty string")
	}

	// Split numeric prefix from unit suffix.
	i := 0
	for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.') {
		i++
	}
	numStr := s[:i]
	unitStr := strings.ToLower(strings.TrimSpace(s[i:]))

	if numStr == "" {
		return 0, fmt.Errorf("bytesize: invalid format %q", s)
	}
	value, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return 0, fmt.Errorf("bytesize: invalid number %q: %w", numStr, err)
	}

	var multiplier Size
	switch unitStr {
	case "", "b", "byte", "bytes":
		multiplier = B
	case "k", "kb", "kib":
		multiplier = KiB
	case "m", "mb", "mib":
		multiplier = MiB
	case "g", "gb", "gib":
		multiplier = GiB
	case "t", "tb", "tib":
		multiplier = TiB
	default:
		return 0, fmt.Errorf("bytesize: unknown unit %q", unitStr)
	}

	return Size(value * float64(multiplier)), nil
}

// MustParse is like Parse but panics if the string cannot be parsed.
// Use only for compile-time constants.
func MustParse(s string) Size {
	size, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return size
}

// Format converts a byte size to a human-readable string using the largest
// unit giving a value >= 1.
func Format(s Size) string {
	negative := s < 0
	if negative {
		s = -s
	}

	var result string
	switch {
	case s >= TiB:
		result = trimmed(float64(s)/float64(TiB)) + "TB"
	case s >= GiB:
		result = trimmed(float64(s)/float64(GiB)) + "GB"
	case s >= MiB:
		result = trimmed(float64(s)/float64(MiB)) + "MB"
	case s >= KiB:
		result = trimmed(float64(s)/float64(KiB)) + "KB"
	default:
		result = fmt.Sprintf("%dB", s)
	}

	if negative {
		return "-" + result
	}
	return result
}

func trimmed(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	formatted := strconv.FormatFloat(value, 'f', 2, 64)
	formatted = strings.TrimRight(formatted, "0")
	return strings.TrimRight(formatted, ".")
}

// Bytes returns the size in bytes.
func (s Size) Bytes() int64 {
	return int64(s)
}

// MiBs returns the size in whole mebibytes, rounding down.
func (s Size) MiBs() int64 {
	return int64(s / MiB)
}

// String returns a human-readable string representation.
func (s Size) String() string {
	return Format(s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Size) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Size) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
