package provider

import (
	"fmt"
	"strings"
)

// Table is a parsed header-indexed delimited report. The first line of the
// raw document names the columns, every following line is a data row.
type Table struct {
	headers []string
	index   map[string]int
	rows    [][]string

	// Skipped counts data lines whose field count did not match the header.
	Skipped int
}

// Row is one data row with field access by header name.
type Row struct {
	table  *Table
	values []string
}

// ParseTable parses raw tab-separated report text. Trailing blank lines are
// ignored; rows that do not align with the header are dropped and counted.
func ParseTable(raw string) (*Table, error) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")

	// drop trailing blanks
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("empty report document")
	}

	headers := strings.Split(lines[0], "\t")
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		index[strings.TrimSpace(h)] = i
	}

	t := &Table{headers: headers, index: index}
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != len(headers) {
			t.Skipped++
			continue
		}
		t.rows = append(t.rows, fields)
	}

	return t, nil
}

// Len returns the number of well-formed data rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Rows returns all well-formed data rows.
func (t *Table) Rows() []Row {
	rows := make([]Row, len(t.rows))
	for i := range t.rows {
		rows[i] = Row{table: t, values: t.rows[i]}
	}
	return rows
}

// HasColumn reports whether any of the given header names is present.
func (t *Table) HasColumn(names ...string) bool {
	for _, name := range names {
		if _, ok := t.index[name]; ok {
			return true
		}
	}
	return false
}

// Field returns the value for the first header name that exists in the
// table. Report columns are kebab-case with camelCase fallbacks, so callers
// pass the known aliases in order of preference.
func (r Row) Field(names ...string) string {
	for _, name := range names {
		if i, ok := r.table.index[name]; ok {
			return strings.TrimSpace(r.values[i])
		}
	}
	return ""
}
