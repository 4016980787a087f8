package recipe

import (
	"github.com/kbukum/tablemut/mutation"
	"github.com/kbukum/tablemut/table"
)

// Apply validates r and stacks one MutatedTable per step on t. The options
// apply to every stage. Mutation instances are created per call.
func Apply(t table.Table, r Recipe, opts ...table.Option) (*table.MutatedTable, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if r.Strict {
		opts = append(opts, table.WithStrictShape())
	}

	var out *table.MutatedTable
	for _, s := range r.Steps {
		m, err := s.build(len(t.Header()))
		if err != nil {
			return nil, err
		}
		out = table.NewMutated(t, m, opts...)
		t = out
	}
	return out, nil
}

// build creates the mutation for a step applied to a header of width columns.
func (s Step) build(width int) (table.Mutation, error) {
	switch s.Type {
	case StepJoinColumns:
		to := s.To
		if to == ToEnd {
			to = width
		}
		var jopts []mutation.JoinOption
		if s.Glue != nil {
			jopts = append(jopts, mutation.WithGlue(*s.Glue))
		}
		if s.Name != "" {
			jopts = append(jopts, mutation.WithName(s.Name))
		}
		return mutation.NewJoinColumns(s.From, to, jopts...), nil
	case StepJoinSplitLines:
		return mutation.NewJoinSplitLines(), nil
	case StepMapColumn:
		fn, err := newMapper(s.Mapper, s.Args)
		if err != nil {
			return nil, err
		}
		var mopts []mutation.MapOption
		if s.Name != "" {
			mopts = append(mopts, mutation.Rename(s.Name))
		}
		return mutation.NewMapColumn(s.Column, fn, mopts...), nil
	default:
		return mutation.NewRowsFilter(newFilter(s.Column, s.Op, s.Value)), nil
	}
}
