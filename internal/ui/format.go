package ui

import "github.com/dustin/go-humanize"

// FormatBytes renders a byte count in binary units ("1.5 GiB").
func FormatBytes(b int64) string {
	if b < 0 {
		return "?"
	}
	return humanize.IBytes(uint64(b))
}
