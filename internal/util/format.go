// Package util holds small formatting helpers shared by the bot and the
// pipeline report path.
package util

import (
	"math"
	"strconv"
	"strings"
)

var byteUnits = []string{"B", "KB", "MB", "GB", "TB", "PB"}

// HumanBytes renders a byte count with binary magnitudes, "2.5 MB" style.
func HumanBytes(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	size := float64(n)
	unit := 0
	for size > 1024 && unit < len(byteUnits)-1 {
		size /= 1024
		unit++
	}
	rounded := math.Round(size*100) / 100
	return strconv.FormatFloat(rounded, 'f', -1, 64) + " " + byteUnits[unit]
}

// HumanDurationMS renders a millisecond span as its non-zero units,
// "1h, 2m, 3s" style.
func HumanDurationMS(ms int64) string {
	if ms <= 0 {
		return "0s"
	}

	msPart := ms % 1000
	seconds := ms / 1000
	minutes := seconds / 60
	seconds %= 60
	hours := minutes / 60
	minutes %= 60
	days := hours / 24
	hours %= 24

	var parts []string
	add := func(v int64, unit string) {
		if v > 0 {
			parts = append(parts, strconv.FormatInt(v, 10)+unit)
		}
	}
	add(days, "d")
	add(hours, "h")
	add(minutes, "m")
	add(seconds, "s")
	add(msPart, "ms")

	return strings.Join(parts, ", ")
}
