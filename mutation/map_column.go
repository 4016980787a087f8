package mutation

import (
	"slices"

	"github.com/kbukum/tablemut/table"
)

// MapColumn applies a cell mapper to one column of every row.
type MapColumn struct {
	table.Identity
	column int
	fn     func(string) string
	name   string
}

var _ table.Mutation = (*MapColumn)(nil)

// MapOption configures MapColumn.
type MapOption func(*MapColumn)

// Rename sets a new header name for the mapped column.
func Rename(name string) MapOption {
	return func(m *MapColumn) { m.name = name }
}

// NewMapColumn creates a mutation mapping column with fn.
func NewMapColumn(column int, fn func(string) string, opts ...MapOption) *MapColumn {
	m := &MapColumn{column: column, fn: fn}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MutateHeader renames the column when a new name is configured.
func (m *MapColumn) MutateHeader(header table.Header) table.Header {
	if m.name == "" || !m.inRange(len(header)) {
		return header
	}
	out := slices.Clone(header)
	out[m.column] = m.name
	return out
}

// MutateRow maps the column cell. Rows too short for the column pass unchanged.
func (m *MapColumn) MutateRow(row table.Row) (table.Row, bool) {
	if !m.inRange(len(row)) {
		return row, true
	}
	out := slices.Clone(row)
	out[m.column] = m.fn(row[m.column])
	return out, true
}

func (m *MapColumn) inRange(n int) bool {
	return m.column >= 0 && m.column < n
}
