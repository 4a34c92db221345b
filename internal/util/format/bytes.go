package format

import (
	"strconv"

	"github.com/dustin/go-humanize"
)

// HumanizeBytes converts a byte count into a human-readable string (e.g., "1.5 KiB").
func HumanizeBytes(b int64) string {
	if b < 0 {
		b = 0
	}
	return humanize.IBytes(uint64(b))
}

// Megabytes formats b in mebibytes with two decimals, e.g. "12.34".
func Megabytes(b int64) string {
	return strconv.FormatFloat(float64(b)/(1024*1024), 'f', 2, 64)
}
