package olap

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"

	"github.com/dvloznov/billing-olap/internal/snapshot"
)

var (
	intCell   = regexp.MustCompile(`^-?(0|[1-9]\d{0,17})$`)
	floatCell = regexp.MustCompile(`^-?(0|[1-9]\d*)\.\d+([eE][-+]?\d+)?$`)
)

// WriteCSV writes t with a header row. Nulls are empty fields, booleans are
// true/false, timestamps use snapshot.TimestampLayout and nested values are
// written as compact JSON.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("WriteCSV: %s header: %w", t.Name, err)
	}
	record := make([]string, len(t.Columns))
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("WriteCSV: %s row %d has %d values, want %d", t.Name, i, len(row), len(t.Columns))
		}
		for j, v := range row {
			record[j] = v.Text()
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("WriteCSV: %s row %d: %w", t.Name, i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("WriteCSV: %s flush: %w", t.Name, err)
	}
	return nil
}

// ReadCSV reads a staged file written by WriteCSV. Cell text is re-typed:
// empty is null, then bool, int, float, timestamp, otherwise string. JSON
// text stays a string.
func ReadCSV(name string, r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("ReadCSV: %s: missing header", name)
	}
	if err != nil {
		return nil, fmt.Errorf("ReadCSV: %s header: %w", name, err)
	}

	t := NewTable(name, header)
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ReadCSV: %s line %d: %w", name, line, err)
		}
		row := make([]snapshot.Value, len(record))
		for i, cell := range record {
			row[i] = ParseCell(cell)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// ParseCell re-types one CSV field.
func ParseCell(cell string) snapshot.Value {
	switch cell {
	case "":
		return snapshot.Null()
	case "true", "True":
		return snapshot.Bool(true)
	case "false", "False":
		return snapshot.Bool(false)
	}
	if intCell.MatchString(cell) {
		if i, err := strconv.ParseInt(cell, 10, 64); err == nil {
			return snapshot.Int(i)
		}
	}
	if floatCell.MatchString(cell) {
		if f, err := strconv.ParseFloat(cell, 64); err == nil {
			return snapshot.Float(f)
		}
	}
	if ts, ok := ParseTimestamp(cell); ok {
		return snapshot.Timestamp(ts)
	}
	return snapshot.String(cell)
}
