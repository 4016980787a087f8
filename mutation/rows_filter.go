package mutation

import "github.com/kbukum/tablemut/table"

// RowsFilter keeps the rows a predicate accepts.
type RowsFilter struct {
	table.Identity
	accept func(table.Row) bool
}

var _ table.Mutation = (*RowsFilter)(nil)

// NewRowsFilter creates a filter keeping rows for which accept returns true.
func NewRowsFilter(accept func(table.Row) bool) *RowsFilter {
	return &RowsFilter{accept: accept}
}

// MutateRow returns row when accepted and nothing otherwise.
func (f *RowsFilter) MutateRow(row table.Row) (table.Row, bool) {
	if !f.accept(row) {
		return nil, false
	}
	return row, true
}
