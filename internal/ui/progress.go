package ui

import (
	"fmt"
	"strings"
	"time"
)

const progressWidth = 40

// Progress renders a single-line download progress bar on stdout. It is not
// safe for concurrent use; callers serialize updates per line.
type Progress struct {
	label      string
	total      int64
	start      time.Time
	lastUpdate time.Time
	lastBytes  int64
	speed      float64
}

// NewProgress creates a progress line for a transfer of total bytes. A zero
// total renders byte counts without a percentage.
func NewProgress(label string, total int64) *Progress {
	now := time.Now()
	return &Progress{
		label:      label,
		total:      total,
		start:      now,
		lastUpdate: now,
	}
}

// SetTotal updates the expected total, for transfers whose size is only
// known once the server responds.
func (p *Progress) SetTotal(total int64) {
	p.total = total
}

// Update redraws the progress line for the given byte count.
func (p *Progress) Update(written int64) {
	now := time.Now()
	if delta := now.Sub(p.lastUpdate); delta > time.Second {
		p.speed = float64(written-p.lastBytes) / delta.Seconds()
		p.lastUpdate = now
		p.lastBytes = written
	}

	if p.total <= 0 {
		fmt.Printf("\r  %s  %s", Keyword(p.label), FormatBytes(written))
		return
	}

	percent := float64(written) / float64(p.total)
	if percent > 1 {
		percent = 1
	}
	filled := int(progressWidth * percent)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", progressWidth-filled)

	eta := "--"
	if p.speed > 0 {
		remaining := time.Duration(float64(p.total-written)/p.speed) * time.Second
		eta = remaining.Round(time.Second).String()
	}

	fmt.Printf("\r  %s  %s %3.0f%% │ %s / %s │ ETA %s",
		Keyword(p.label), bar, percent*100,
		FormatBytes(written), FormatBytes(p.total), eta)
}

// Finish terminates the progress line with a closing message.
func (p *Progress) Finish(msg string) {
	fmt.Printf("\r\033[K  %s %s %s\n", Success(IconCheck), Keyword(p.label), msg)
}

// Fail terminates the progress line with an error message.
func (p *Progress) Fail(msg string) {
	fmt.Printf("\r\033[K  %s %s %s\n", ErrorMsg(IconCross), Keyword(p.label), msg)
}
