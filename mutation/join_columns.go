package mutation

import (
	"strings"

	"github.com/kbukum/tablemut/table"
)

// DefaultGlue joins cells when no glue is configured.
const DefaultGlue = " "

// JoinColumns merges columns [from, to) into a single column at position from.
type JoinColumns struct {
	table.Identity
	from int
	to   int
	glue string
	name string
}

var _ table.Mutation = (*JoinColumns)(nil)

// JoinOption configures JoinColumns.
type JoinOption func(*JoinColumns)

// WithGlue sets the text placed between joined cells.
func WithGlue(glue string) JoinOption {
	return func(j *JoinColumns) { j.glue = glue }
}

// WithName sets the header name of the merged column. Without it the name
// is the joined header text.
func WithName(name string) JoinOption {
	return func(j *JoinColumns) { j.name = name }
}

// NewJoinColumns creates a mutation joining columns [from, to).
func NewJoinColumns(from, to int, opts ...JoinOption) *JoinColumns {
	j := &JoinColumns{from: from, to: to, glue: DefaultGlue}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// MutateHeader splices the merged column name into the header.
func (j *JoinColumns) MutateHeader(header table.Header) table.Header {
	if j.name != "" {
		lo, _, tail := j.bounds(len(header))
		out := make(table.Header, 0, lo+1+len(header)-tail)
		out = append(out, header[:lo]...)
		out = append(out, j.name)
		return append(out, header[tail:]...)
	}
	return table.Header(j.splice(header))
}

// MutateRow splices the joined cells into the row.
func (j *JoinColumns) MutateRow(row table.Row) (table.Row, bool) {
	return table.Row(j.splice(row)), true
}

func (j *JoinColumns) splice(cells []string) []string {
	lo, hi, tail := j.bounds(len(cells))
	out := make([]string, 0, lo+1+len(cells)-tail)
	out = append(out, cells[:lo]...)
	out = append(out, trimGlue(strings.Join(cells[lo:hi], j.glue), j.glue))
	return append(out, cells[tail:]...)
}

// bounds clamps from and to to a slice of length n. The joined cells are
// [lo, hi) and the kept tail starts at tail; when to < from nothing is
// joined and the tail starts at to, repeating cells [to, from).
func (j *JoinColumns) bounds(n int) (lo, hi, tail int) {
	lo = min(max(j.from, 0), n)
	tail = min(max(j.to, 0), n)
	return lo, max(tail, lo), tail
}

// trimGlue strips every trailing occurrence of glue.
func trimGlue(s, glue string) string {
	if glue == "" {
		return s
	}
	for strings.HasSuffix(s, glue) {
		s = strings.TrimSuffix(s, glue)
	}
	return s
}
