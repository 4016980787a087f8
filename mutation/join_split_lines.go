package mutation

import (
	"slices"
	"strings"

	"github.com/kbukum/tablemut/errors"
	"github.com/kbukum/tablemut/table"
)

// LineGlue separates the cells of merged physical rows.
const LineGlue = "\n"

// JoinSplitLines merges physical rows into logical rows. A row whose first
// cell is empty continues the previous logical row; any other row starts a
// new one. A logical row is emitted when the next one starts, and the last
// one at end of rows.
type JoinSplitLines struct {
	table.Identity
	accumulated table.Row
}

var _ table.Mutation = (*JoinSplitLines)(nil)

// NewJoinSplitLines creates the mutation with an empty accumulator.
func NewJoinSplitLines() *JoinSplitLines {
	return &JoinSplitLines{}
}

// MutateRow accumulates row and returns the previous logical row once a
// new one starts.
func (j *JoinSplitLines) MutateRow(row table.Row) (table.Row, bool) {
	if !startsLogicalRow(row) {
		j.accumulated = concatenateRows(j.accumulated, row)
		return nil, false
	}
	prev := j.accumulated
	j.accumulated = slices.Clone(row)
	if prev == nil {
		return nil, false
	}
	return stripTrailingNewlines(prev), true
}

// EndOfRows returns the last logical row. It fails when no row was seen.
func (j *JoinSplitLines) EndOfRows() (table.Row, bool, error) {
	if j.accumulated == nil {
		return nil, false, errors.EmptyTableFlush("JoinSplitLines")
	}
	return stripTrailingNewlines(j.accumulated), true, nil
}

// Pending reports whether a logical row is being accumulated.
func (j *JoinSplitLines) Pending() bool { return j.accumulated != nil }

// Reset drops the accumulated row so the instance can serve a new pass.
func (j *JoinSplitLines) Reset() { j.accumulated = nil }

// startsLogicalRow reports whether the first cell is filled.
func startsLogicalRow(row table.Row) bool {
	return len(row) > 0 && row[0] != ""
}

// concatenateRows joins two rows cell by cell with LineGlue. A cell present
// on one side only is kept as is.
func concatenateRows(first, second table.Row) table.Row {
	if first == nil {
		return slices.Clone(second)
	}
	out := make(table.Row, max(len(first), len(second)))
	for i := range out {
		switch {
		case i >= len(first):
			out[i] = second[i]
		case i >= len(second):
			out[i] = first[i]
		default:
			out[i] = first[i] + LineGlue + second[i]
		}
	}
	return out
}

func stripTrailingNewlines(row table.Row) table.Row {
	out := make(table.Row, len(row))
	for i, cell := range row {
		out[i] = strings.TrimRight(cell, LineGlue)
	}
	return out
}
