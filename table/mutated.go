package table

import (
	"context"
	"slices"

	"github.com/kbukum/tablemut/errors"
	"github.com/kbukum/tablemut/logger"
	"github.com/kbukum/tablemut/pipeline"
)

// ShapeMismatch records an emitted row whose length differed from the header.
type ShapeMismatch struct {
	Stage string
	Line  int
	Got   int
	Want  int
}

type options struct {
	log      *logger.Logger
	strict   bool
	observer Observer
}

// Option configures a MutatedTable.
type Option func(*options)

// WithLogger sets the logger used for stage debug output and shape warnings.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithStrictShape makes a row/header length mismatch fail the pass with
// a ROW_SHAPE_MISMATCH error instead of a warning.
func WithStrictShape() Option {
	return func(o *options) { o.strict = true }
}

// WithObserver reports every row event to obs.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// MutatedTable is a source table with a mutation applied. Its header is
// computed on construction; rows are produced lazily and only once.
type MutatedTable struct {
	source   Table
	mutation Mutation
	header   Header
	stage    string
	opts     options
	log      *logger.Logger
	consumed bool
	warnings []ShapeMismatch
}

var _ Table = (*MutatedTable)(nil)

// NewMutated wraps source with m. The mutation is owned by the returned
// table and must not be shared with another pipeline.
func NewMutated(source Table, m Mutation, opts ...Option) *MutatedTable {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return newMutated(source, m, o)
}

func newMutated(source Table, m Mutation, o options) *MutatedTable {
	if o.log == nil {
		o.log = logger.WithComponent("table")
	}
	stage := StageName(m)
	return &MutatedTable{
		source:   source,
		mutation: m,
		header:   m.MutateHeader(source.Header()),
		stage:    stage,
		opts:     o,
		log:      o.log.WithFields(logger.Fields(logger.FieldStage, stage)),
	}
}

// Header returns the mutated header.
func (t *MutatedTable) Header() Header { return t.header }

// Stage returns the stage name of the mutation.
func (t *MutatedTable) Stage() string { return t.stage }

// Source returns the wrapped table.
func (t *MutatedTable) Source() Table { return t.source }

// Mutate wraps the table with m, inheriting this table's options.
func (t *MutatedTable) Mutate(m Mutation) *MutatedTable {
	return newMutated(t, m, t.opts)
}

// Warnings returns the shape mismatches recorded so far.
func (t *MutatedTable) Warnings() []ShapeMismatch {
	return slices.Clone(t.warnings)
}

// Rows starts the single pass over the mutated rows. A second call fails
// with ALREADY_CONSUMED because the mutation state belongs to the first pass.
func (t *MutatedTable) Rows() (pipeline.Iterator[Row], error) {
	if t.consumed {
		return nil, errors.AlreadyConsumed(t.stage)
	}
	t.consumed = true

	src, err := t.source.Rows()
	if err != nil {
		return nil, err
	}
	t.log.Debug("Processing rows")
	return &mutatedIter{table: t, source: src}, nil
}

func (t *MutatedTable) observe(ctx context.Context, kind EventKind, line int) {
	if t.opts.observer != nil {
		t.opts.observer.Observe(ctx, Event{Stage: t.stage, Kind: kind, Line: line})
	}
}

func (t *MutatedTable) checkShape(ctx context.Context, line int, row Row) error {
	if len(row) == len(t.header) {
		return nil
	}
	t.observe(ctx, EventShapeMismatch, line)
	if t.opts.strict {
		return errors.RowShapeMismatch(t.stage, line, len(row), len(t.header))
	}
	t.warnings = append(t.warnings, ShapeMismatch{Stage: t.stage, Line: line, Got: len(row), Want: len(t.header)})
	t.log.Warn("Number of values the row mutation returned doesn't match the number of values in the header row",
		logger.Fields(logger.FieldLine, line, "got", len(row), "want", len(t.header)))
	return nil
}

type mutatedIter struct {
	table     *MutatedTable
	source    pipeline.Iterator[Row]
	line      int
	exhausted bool
	flushed   bool
}

func (it *mutatedIter) Next(ctx context.Context) (Row, bool, error) {
	t := it.table
	for !it.exhausted {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		row, ok, err := it.source.Next(ctx)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			it.exhausted = true
			break
		}
		it.line++
		t.observe(ctx, EventPulled, it.line)

		out, emit := t.mutation.MutateRow(row)
		if !emit {
			t.observe(ctx, EventSuppressed, it.line)
			continue
		}
		if err := t.checkShape(ctx, it.line, out); err != nil {
			return nil, false, err
		}
		t.observe(ctx, EventEmitted, it.line)
		return out, true, nil
	}

	if it.flushed {
		return nil, false, nil
	}
	it.flushed = true
	out, emit, err := t.mutation.EndOfRows()
	if err != nil {
		return nil, false, err
	}
	if !emit {
		return nil, false, nil
	}
	t.observe(ctx, EventFlushed, it.line)
	return out, true, nil
}

func (it *mutatedIter) Close() error { return it.source.Close() }

// Warnings returns the shape warnings of t and of every MutatedTable below
// it, source stages first.
func Warnings(t Table) []ShapeMismatch {
	var stages []*MutatedTable
	for {
		mt, ok := t.(*MutatedTable)
		if !ok {
			break
		}
		stages = append(stages, mt)
		t = mt.source
	}
	var out []ShapeMismatch
	for i := len(stages) - 1; i >= 0; i-- {
		out = append(out, stages[i].warnings...)
	}
	return out
}
