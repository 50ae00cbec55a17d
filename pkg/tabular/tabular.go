// Package tabular flattens raw readings into rows and renders them as CSV with
// every cell quoted. The column set of a table is the union of the columns of
// all its rows, so fields that only some firmware versions send are kept.
package tabular

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sguter90/weatherlog/pkg/models"
	"github.com/sguter90/weatherlog/pkg/normalizer"
)

// Leading columns present in every table
const (
	ColumnTS      = "ts"
	ColumnTSLocal = "ts_local"
	ColumnRawJSON = "raw_json"
)

// LocalTimeLayout renders capture times as DD/MM/YYYY HH:MM
const LocalTimeLayout = "02/01/2006 15:04"

// FormatLocal renders epoch milliseconds in loc using LocalTimeLayout.
func FormatLocal(ts int64, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return time.UnixMilli(ts).In(loc).Format(LocalTimeLayout)
}

// Row is one flattened reading; absent keys render as empty cells.
type Row map[string]string

// Table is an ordered column set and its rows
type Table struct {
	Columns []string
	Rows    []Row
}

// NewTable returns an empty table with the leading timestamp columns.
func NewTable() *Table {
	return &Table{Columns: []string{ColumnTS, ColumnTSLocal}}
}

// Add appends a row. keys lists the row's columns in the order they should
// appear when first seen; keys already in the table keep their position.
func (t *Table) Add(row Row, keys []string) {
	t.widen(keys)
	t.Rows = append(t.Rows, row)
}

func (t *Table) widen(keys []string) {
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		seen[c] = true
	}
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			t.Columns = append(t.Columns, k)
		}
	}
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// Renderer turns raw readings into table rows
type Renderer struct {
	location   *time.Location
	redact     map[string]bool
	normalizer *normalizer.Normalizer
}

// NewRenderer creates a renderer. Fields named in redact (compared case
// insensitively) are left out of rendered rows.
func NewRenderer(loc *time.Location, redact []string) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	r := &Renderer{
		location:   loc,
		redact:     make(map[string]bool, len(redact)),
		normalizer: normalizer.New(nil, nil),
	}
	for _, f := range redact {
		r.redact[strings.ToLower(f)] = true
	}
	return r
}

// Location returns the time zone used for ts_local
func (r *Renderer) Location() *time.Location {
	return r.location
}

// Redacted reports whether a raw field is withheld from output
func (r *Renderer) Redacted(field string) bool {
	return r.redact[strings.ToLower(field)]
}

// Public returns a copy of fields without redacted keys
func (r *Renderer) Public(fields models.Fields) models.Fields {
	out := make(models.Fields, len(fields))
	for k, v := range fields {
		if !r.Redacted(k) {
			out[k] = v
		}
	}
	return out
}

// Table renders readings into a table. Each row holds the timestamps, every
// normalized column, the raw fields sorted by name and the raw payload as
// JSON. A raw field whose name matches a normalized column wins; the
// timestamp and raw_json columns cannot be overridden.
func (r *Renderer) Table(readings []models.RawReading) *Table {
	t := NewTable()
	for _, reading := range readings {
		row, keys := r.Row(reading)
		t.Add(row, keys)
	}
	return t
}

// Row flattens a single reading and returns the row with its column order.
func (r *Renderer) Row(reading models.RawReading) (Row, []string) {
	row := Row{
		ColumnTS:      strconv.FormatInt(reading.CapturedAt, 10),
		ColumnTSLocal: FormatLocal(reading.CapturedAt, r.location),
	}
	keys := []string{ColumnTS, ColumnTSLocal}

	for _, c := range r.normalizer.Normalize(reading.Fields).Columns() {
		keys = append(keys, c.Name)
		switch {
		case c.IsText && c.Text != nil:
			row[c.Name] = *c.Text
		case !c.IsText && c.Number != nil:
			row[c.Name] = FormatNumber(*c.Number)
		}
	}

	named := make(map[string]bool, len(keys))
	for _, k := range keys {
		named[k] = true
	}

	public := r.Public(reading.Fields)
	for _, k := range sortedKeys(public) {
		if reserved(k) {
			continue
		}
		if !named[k] {
			named[k] = true
			keys = append(keys, k)
		}
		if v, ok := Cell(public[k]); ok {
			row[k] = v
		} else {
			delete(row, k)
		}
	}

	if b, err := json.Marshal(public); err == nil {
		row[ColumnRawJSON] = string(b)
	}
	keys = append(keys, ColumnRawJSON)

	return row, keys
}

func reserved(k string) bool {
	return k == ColumnTS || k == ColumnTSLocal || k == ColumnRawJSON
}

// FormatNumber renders a float without exponent or trailing zeros
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Cell renders a raw field value. ok is false for nil values.
func Cell(v interface{}) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case bool:
		return strconv.FormatBool(val), true
	case float64:
		if p := normalizer.Coerce(val); p != nil {
			return FormatNumber(*p), true
		}
		return "", false
	case float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(val), true
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}
