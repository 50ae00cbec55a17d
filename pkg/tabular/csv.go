package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Encode renders the table: a header line then one line per row, every cell
// double-quoted with embedded quotes doubled.
func (t *Table) Encode() []byte {
	var buf bytes.Buffer
	t.WriteTo(&buf)
	return buf.Bytes()
}

// WriteTo writes the encoded table to w
func (t *Table) WriteTo(w io.Writer) (int64, error) {
	var n int64

	line := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		line[i] = quote(c)
	}
	written, err := io.WriteString(w, strings.Join(line, ",")+"\n")
	n += int64(written)
	if err != nil {
		return n, err
	}

	for _, row := range t.Rows {
		written, err := io.WriteString(w, t.encodeRow(row, line))
		n += int64(written)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// EncodeRows renders only the data lines, without a header
func (t *Table) EncodeRows() []byte {
	var buf bytes.Buffer
	line := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		buf.WriteString(t.encodeRow(row, line))
	}
	return buf.Bytes()
}

func (t *Table) encodeRow(row Row, line []string) string {
	for i, c := range t.Columns {
		line[i] = quote(row[c])
	}
	return strings.Join(line, ",") + "\n"
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Parse reads CSV with a header line back into a table. Short rows are padded
// with empty cells; rows wider than the header are rejected.
func Parse(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}

	t := &Table{}
	if len(records) == 0 {
		return t, nil
	}

	t.Columns = append(t.Columns, records[0]...)
	for i, rec := range records[1:] {
		if len(rec) > len(t.Columns) {
			return nil, fmt.Errorf("failed to parse csv: line %d has %d fields, header has %d", i+2, len(rec), len(t.Columns))
		}
		row := make(Row, len(rec))
		for j, v := range rec {
			if v != "" {
				row[t.Columns[j]] = v
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Merge appends other's rows to t, widening t's columns to the union.
func (t *Table) Merge(other *Table) {
	t.widen(other.Columns)
	t.Rows = append(t.Rows, other.Rows...)
}

func sortedKeys(fields map[string]interface{}) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
