// Package report derives disk-space classification and aggregate statistics
// from a resolve snapshot. It is a pure derivation layer; it never writes.
package report

import (
	"fmt"

	"github.com/cindergrace/depot/internal/resolve"
)

// Health classifies free space on a storage root.
type Health int

const (
	HealthOK Health = iota
	HealthLow
	HealthWarning
)

func (h Health) String() string {
	switch h {
	case HealthOK:
		return "OK"
	case HealthLow:
		return "Low"
	case HealthWarning:
		return "Warning"
	}
	return "unknown"
}

// Usage is a filesystem free/total snapshot.
type Usage struct {
	Total uint64
	Free  uint64
}

// Used returns the consumed byte count.
func (u Usage) Used() uint64 {
	if u.Free > u.Total {
		return 0
	}
	return u.Total - u.Free
}

// UsedFraction returns used/total, 0 for an empty filesystem.
func (u Usage) UsedFraction() float64 {
	if u.Total == 0 {
		return 0
	}
	return float64(u.Used()) / float64(u.Total)
}

// Thresholds configures the classification boundaries.
type Thresholds struct {
	WarnFreeBytes    uint64  // below this free space → Warning
	LowFreeBytes     uint64  // below this free space → Low
	WarnUsedFraction float64 // above this utilization → Warning
}

// DefaultThresholds matches the depot defaults: Warning under 10 GiB free
// or over 90% used, Low under 50 GiB free.
func DefaultThresholds() Thresholds {
	return Thresholds{
		WarnFreeBytes:    10 << 30,
		LowFreeBytes:     50 << 30,
		WarnUsedFraction: 0.90,
	}
}

// Classify maps a usage snapshot to a health class.
func Classify(u Usage, t Thresholds) Health {
	if u.Free < t.WarnFreeBytes || u.UsedFraction() > t.WarnUsedFraction {
		return HealthWarning
	}
	if u.Free < t.LowFreeBytes {
		return HealthLow
	}
	return HealthOK
}

// DiskUsage queries the filesystem holding path.
func DiskUsage(path string) (Usage, error) {
	u, err := diskUsage(path)
	if err != nil {
		return Usage{}, fmt.Errorf("disk usage for %s: %w", path, err)
	}
	return u, nil
}

// Summary aggregates a resolve snapshot.
type Summary struct {
	Present         int
	Missing         int
	BackupAvailable int
	Corrupt         int

	// MissingBytes sums the declared sizes of Missing entries. Missing
	// entries with no declared size are counted in UnsizedMissing instead.
	MissingBytes   int64
	UnsizedMissing int
}

// Summarize folds a snapshot into counts and the total bytes still needed.
func Summarize(entries []resolve.Entry) Summary {
	var s Summary
	for _, e := range entries {
		switch e.Status {
		case resolve.StatusPresent:
			s.Present++
		case resolve.StatusMissing:
			s.Missing++
			if size := e.Definition.SizeBytes; size > 0 {
				s.MissingBytes += size
			} else {
				s.UnsizedMissing++
			}
		case resolve.StatusBackupAvailable:
			s.BackupAvailable++
		case resolve.StatusCorrupt:
			s.Corrupt++
		}
	}
	return s
}
