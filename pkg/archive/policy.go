package archive

import (
	"fmt"
	"path"
	"time"
)

// Policy decides where a window is written and what happens when the
// destination already exists.
type Policy string

const (
	// PartitionOnce writes each UTC hour to its own file exactly once. An hour
	// whose file exists is treated as archived; missing hours of the window are
	// created on every run.
	PartitionOnce Policy = "partition-once"

	// Append keeps a single file and adds rows newer than the newest row it
	// already holds.
	Append Policy = "append"
)

// ParsePolicy validates a policy name
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PartitionOnce, Append:
		return p, nil
	default:
		return "", fmt.Errorf("unknown archive policy %q", s)
	}
}

// Layout names the destination files
type Layout struct {
	// Prefix is the directory archive files live under
	Prefix string

	// File is the single file used by the Append policy
	File string
}

// Path returns the destination for the partition starting at start.
// Partitioned paths are <prefix>/YYYY/MM/DD/HHMM.csv in UTC.
func (l Layout) Path(p Policy, start time.Time) string {
	if p == Append {
		return path.Join(l.Prefix, l.File)
	}
	return path.Join(l.Prefix, start.UTC().Format("2006/01/02/1504")+".csv")
}

// Window returns the window the scheduler archives at now. PartitionOnce
// takes the full hours of the lookback period ending at the last full hour,
// so an hour missed by one run is created by the next. Append takes the
// lookback period ending now; rows already in the file are skipped.
func Window(p Policy, now time.Time, lookback time.Duration) (time.Time, time.Time) {
	if p == Append {
		return now.Add(-lookback), now
	}
	end := now.Truncate(time.Hour)
	return end.Add(-lookback).Truncate(time.Hour), end
}
