// Package duration provides human-readable duration parsing.
// It extends Go's standard time.ParseDuration with day units and full-word
// forms, so configuration can say "90 minutes", "36h" or "2 days". The
// Duration type implements encoding.TextMarshaler/TextUnmarshaler for use in
// configuration files.
package duration

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Day represents 24 hours.
const Day = 24 * time.Hour

// wordUnits maps full-word units to Go duration suffixes.
var wordUnits = map[string]string{
	"hour": "h", "hours": "h", "hr": "h", "hrs": "h",
	"minute": "m", "minutes": "m", "min": "m", "mins": "m",
	"second": "s", "seconds": "s", "sec": "s", "secs": "s",
	"millisecond": "ms", "milliseconds": "ms",
}

// dayPattern matches day units with optional whitespace: "2d", "2 days".
var dayPattern = regexp.MustCompile(`(?i)(\d+)\s*(days?|d)\b`)

// wordPattern matches full-word standard units: "3 hours", "30 minutes".
var wordPattern = regexp.MustCompile(`(?i)(\d+)\s*(hours?|hrs?|minutes?|mins?|seconds?|secs?|milliseconds?)`)

// Parse parses a human-readable duration string. Day units (d/day/days,
// 24 hours each) and full-word standard units are converted and the result
// delegated to time.ParseDuration.
func Parse(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("duration: empty string")
	}

	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
	}

	var dayHours int64
	remaining := dayPattern.ReplaceAllStringFunc(s, func(match string) string {
		sub := dayPattern.FindStringSubmatch(match)
		if len(sub) == 3 {
			value, _ := strconv.ParseInt(sub[1], 10, 64)
			dayHours += value * 24
		}
		return ""
	})

	remaining = wordPattern.ReplaceAllStringFunc(remaining, func(match string) string {
		sub := wordPattern.FindStringSubmatch(match)
		if len(sub) == 3 {
			if short, ok := wordUnits[strings.ToLower(sub[2])]; ok {
				return sub[1] + short
			}
		}
		return match
	})

	// time.ParseDuration rejects spaces between components.
	remaining = strings.Join(strings.Fields(remaining), "")

	var durationStr string
	if dayHours > 0 {
		durationStr = fmt.Sprintf("%dh", dayHours)
	}
	durationStr += remaining
	if durationStr == "" {
		durationStr = "0s"
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return 0, fmt.Errorf("duration: %w", err)
	}
	if negative {
		d = -d
	}
	return d, nil
}

// MustParse is like Parse but panics if the string cannot be parsed.
// Use only for compile-time constants.
func MustParse(s string) time.Duration {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Format converts a duration to a compact string using days as the largest
// unit. Zero components are omitted: 26h becomes "1d2h".
func Format(d time.Duration) string {
	if d == 0 {
		return "0s"
	}

	negative := d < 0
	if negative {
		d = -d
	}

	var b strings.Builder

	days := d / Day
	d -= days * Day
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second
	d -= seconds * time.Second

	if days > 0 {
		fmt.Fprintf(&b, "%dd", days)
	}
	if hours > 0 {
		fmt.Fprintf(&b, "%dh", hours)
	}
	if minutes > 0 {
		fmt.Fprintf(&b, "%dm", minutes)
	}
	if seconds > 0 {
		fmt.Fprintf(&b, "%ds", seconds)
	}
	if d > 0 && b.Len() == 0 {
		fmt.Fprintf(&b, "%dms", d/time.Millisecond)
	}
	if b.Len() == 0 {
		return "0s"
	}

	if negative {
		return "-" + b.String()
	}
	return b.String()
}

// Duration wraps time.Duration with config-friendly text encoding.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String returns the compact human form.
func (d Duration) String() string {
	return Format(time.Duration(d))
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}
