package table

import (
	"context"

	"github.com/kbukum/tablemut/pipeline"
)

// ListTable is an in-memory table. Unlike stream-backed tables its rows
// may be iterated any number of times.
type ListTable struct {
	header Header
	rows   []Row
}

var _ Table = (*ListTable)(nil)

// FromRows creates a table over header and rows. The slices are not copied.
func FromRows(header Header, rows []Row) *ListTable {
	return &ListTable{header: header, rows: rows}
}

// Header returns the column names.
func (t *ListTable) Header() Header { return t.header }

// Rows returns a fresh iterator over the rows.
func (t *ListTable) Rows() (pipeline.Iterator[Row], error) {
	return pipeline.FromSlice(t.rows).Iter(context.Background()), nil
}

// Mutate wraps the table with m.
func (t *ListTable) Mutate(m Mutation) *MutatedTable {
	return NewMutated(t, m)
}

// Len returns the number of rows.
func (t *ListTable) Len() int { return len(t.rows) }
