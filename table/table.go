package table

import (
	"context"
	"fmt"
	"strings"

	"github.com/kbukum/tablemut/pipeline"
)

// Header is the ordered list of column names of a table.
type Header []string

// Row is an ordered list of cell values aligned with a Header by position.
// Its length may differ from the header length.
type Row []string

// Table is a source of a header and a lazy sequence of rows.
type Table interface {
	// Header returns the column names. It is stable across calls.
	Header() Header
	// Rows returns the row sequence. Unless a table documents otherwise,
	// it may be called once; the caller must Close the iterator.
	Rows() (pipeline.Iterator[Row], error)
	// Mutate wraps the table with m without changing the receiver.
	Mutate(m Mutation) *MutatedTable
}

// Mutation is a single-pass row transformer. For one pass a consuming
// MutatedTable calls MutateHeader once, MutateRow once per source row in
// source order and EndOfRows once after the source is exhausted.
type Mutation interface {
	// MutateHeader returns the header of the mutated table.
	MutateHeader(header Header) Header
	// MutateRow returns the row to emit, or false to emit nothing for
	// this input row.
	MutateRow(row Row) (Row, bool)
	// EndOfRows returns one final row to emit, or false for none.
	EndOfRows() (Row, bool, error)
}

// Named is implemented by mutations that report their own stage name.
type Named interface {
	Name() string
}

// Identity is the mutation that changes nothing. Mutations embed it to
// inherit the defaults they do not override.
type Identity struct{}

// MutateHeader returns header unchanged.
func (Identity) MutateHeader(header Header) Header { return header }

// MutateRow returns row unchanged.
func (Identity) MutateRow(row Row) (Row, bool) { return row, true }

// EndOfRows emits nothing.
func (Identity) EndOfRows() (Row, bool, error) { return nil, false, nil }

// Funcs adapts plain functions to Mutation. Nil functions behave like Identity.
type Funcs struct {
	Label  string
	Header func(Header) Header
	Row    func(Row) (Row, bool)
	End    func() (Row, bool, error)
}

// Name returns Label, or "Funcs" when empty.
func (f Funcs) Name() string {
	if f.Label == "" {
		return "Funcs"
	}
	return f.Label
}

func (f Funcs) MutateHeader(header Header) Header {
	if f.Header == nil {
		return header
	}
	return f.Header(header)
}

func (f Funcs) MutateRow(row Row) (Row, bool) {
	if f.Row == nil {
		return row, true
	}
	return f.Row(row)
}

func (f Funcs) EndOfRows() (Row, bool, error) {
	if f.End == nil {
		return nil, false, nil
	}
	return f.End()
}

// StageName returns the name a mutation is logged under: its Name when it
// implements Named, otherwise its Go type name.
func StageName(m Mutation) string {
	if n, ok := m.(Named); ok {
		return n.Name()
	}
	name := strings.TrimLeft(fmt.Sprintf("%T", m), "*")
	if idx := strings.LastIndex(name, "."); idx != -1 {
		name = name[idx+1:]
	}
	return name
}

// Mutate wraps t with each mutation in order.
func Mutate(t Table, ms ...Mutation) Table {
	for _, m := range ms {
		t = t.Mutate(m)
	}
	return t
}

// Stream returns the rows of t as a single-run pipeline.
func Stream(t Table) (*pipeline.Pipeline[Row], error) {
	iter, err := t.Rows()
	if err != nil {
		return nil, err
	}
	return pipeline.From(iter), nil
}

// Collect pulls every row of t.
func Collect(ctx context.Context, t Table) ([]Row, error) {
	p, err := Stream(t)
	if err != nil {
		return nil, err
	}
	return pipeline.Collect(ctx, p)
}
