package models

import (
	"fmt"
	"strings"
	"time"
)

// Fields is the untyped key/value bag a station pushes. Values are strings for
// query/form payloads and string, json.Number, bool or nil for JSON payloads.
type Fields map[string]interface{}

// Lower returns a copy of the fields with every key lower-cased. When two keys
// differ only in case the lexically smaller original key wins, so the result
// does not depend on map iteration order.
func (f Fields) Lower() Fields {
	out := make(Fields, len(f))
	origin := make(map[string]string, len(f))
	for k, v := range f {
		lk := strings.ToLower(k)
		if prev, ok := origin[lk]; ok && prev < k {
			continue
		}
		origin[lk] = k
		out[lk] = v
	}
	return out
}

// Clone returns a shallow copy of the fields.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// RawReading is a payload exactly as received from a station, stamped with the
// receive time. It is never modified after it has been appended to the log.
type RawReading struct {
	CapturedAt int64  `json:"ts"`
	Fields     Fields `json:"payload"`
}

// Time returns the capture time in UTC.
func (r RawReading) Time() time.Time {
	return time.UnixMilli(r.CapturedAt).UTC()
}

// HistoryQuery holds the query parameters accepted by the windowed read endpoints
type HistoryQuery struct {
	Hours    float64
	HasHours bool
}

// MaxHistoryHours bounds the window a single request may read.
const MaxHistoryHours = 24 * 366

// Validate checks if the query parameters are valid
func (q *HistoryQuery) Validate() error {
	if !q.HasHours {
		return nil
	}
	if q.Hours <= 0 {
		return fmt.Errorf("hours must be greater than 0")
	}
	if q.Hours > MaxHistoryHours {
		return fmt.Errorf("hours must not exceed %d", MaxHistoryHours)
	}
	return nil
}

// Since returns the lower window bound in epoch milliseconds relative to now.
func (q *HistoryQuery) Since(now time.Time) int64 {
	return now.Add(-time.Duration(q.Hours * float64(time.Hour))).UnixMilli()
}
