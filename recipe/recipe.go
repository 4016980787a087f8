package recipe

import (
	"fmt"
	"slices"

	"github.com/kbukum/tablemut/csvtable"
	"github.com/kbukum/tablemut/validation"
)

// Step types.
const (
	StepJoinColumns    = "join_columns"
	StepJoinSplitLines = "join_split_lines"
	StepMapColumn      = "map_column"
	StepFilter         = "filter"
)

// ToEnd as the end of a join_columns step selects every remaining column.
const ToEnd = -1

// Step is one mutation of a recipe. Which fields apply depends on Type.
type Step struct {
	Type string `yaml:"type" json:"type" mapstructure:"type" validate:"required,oneof=join_columns join_split_lines map_column filter"`

	// join_columns
	From int     `yaml:"from" json:"from,omitempty" mapstructure:"from" validate:"gte=0"`
	To   int     `yaml:"to" json:"to,omitempty" mapstructure:"to" validate:"gte=-1"`
	Glue *string `yaml:"glue" json:"glue,omitempty" mapstructure:"glue"`

	// join_columns and map_column
	Name string `yaml:"name" json:"name,omitempty" mapstructure:"name"`

	// map_column and filter
	Column int `yaml:"column" json:"column,omitempty" mapstructure:"column" validate:"gte=0"`

	// map_column
	Mapper string   `yaml:"mapper" json:"mapper,omitempty" mapstructure:"mapper"`
	Args   []string `yaml:"args" json:"args,omitempty" mapstructure:"args"`

	// filter
	Op    string `yaml:"op" json:"op,omitempty" mapstructure:"op"`
	Value string `yaml:"value" json:"value,omitempty" mapstructure:"value"`
}

// Recipe is a named pipeline over a CSV source.
type Recipe struct {
	Name        string `yaml:"name" json:"name" mapstructure:"name" validate:"required"`
	Description string `yaml:"description" json:"description,omitempty" mapstructure:"description"`

	// HeaderLine selects the header by 1-based line; HeaderMatch by the
	// text of its first cell. With neither, the first line is the header.
	HeaderLine  int    `yaml:"header_line" json:"header_line,omitempty" mapstructure:"header_line" validate:"gte=0"`
	HeaderMatch string `yaml:"header_match" json:"header_match,omitempty" mapstructure:"header_match"`

	Comma      string `yaml:"comma" json:"comma,omitempty" mapstructure:"comma" validate:"omitempty,single_rune"`
	Encoding   string `yaml:"encoding" json:"encoding,omitempty" mapstructure:"encoding"`
	LazyQuotes bool   `yaml:"lazy_quotes" json:"lazy_quotes,omitempty" mapstructure:"lazy_quotes"`

	// Strict fails the run on the first row whose length differs from the
	// header instead of logging a warning.
	Strict bool `yaml:"strict" json:"strict,omitempty" mapstructure:"strict"`

	Steps []Step `yaml:"steps" json:"steps" mapstructure:"steps" validate:"min=1,dive"`
}

// Validate checks the recipe and every step.
func (r *Recipe) Validate() error {
	v := validation.New()
	v.Merge("", validation.Validate(r))
	v.Custom(r.HeaderLine == 0 || r.HeaderMatch == "", "header_match", "cannot be combined with header_line")
	for i, s := range r.Steps {
		s.check(v, fmt.Sprintf("steps[%d]", i))
	}
	return v.Err()
}

// check adds the rules that depend on the step type.
func (s Step) check(v *validation.Validator, path string) {
	switch s.Type {
	case StepJoinColumns:
		v.Custom(s.To == ToEnd || s.To >= s.From, path+".to", "must be -1 or not less than from")
	case StepMapColumn:
		if s.Mapper == "" {
			v.AddError(path+".mapper", "is required")
			return
		}
		if _, err := newMapper(s.Mapper, s.Args); err != nil {
			v.Merge(path, err)
		}
	case StepFilter:
		if s.Op == "" {
			v.AddError(path+".op", "is required")
			return
		}
		v.OneOf(path+".op", s.Op, filterOps)
	}
}

// SourceOptions returns the csvtable options the recipe's input settings
// translate to.
func (r *Recipe) SourceOptions() []csvtable.Option {
	var opts []csvtable.Option
	switch {
	case r.HeaderMatch != "":
		opts = append(opts, csvtable.WithHeaderFunc(csvtable.FirstCellEquals(r.HeaderMatch)))
	case r.HeaderLine > 0:
		opts = append(opts, csvtable.WithHeaderFunc(csvtable.HeaderAt(r.HeaderLine)))
	}
	if r.Comma != "" {
		opts = append(opts, csvtable.WithComma([]rune(r.Comma)[0]))
	}
	if r.Encoding != "" {
		opts = append(opts, csvtable.WithEncodingName(r.Encoding))
	}
	if r.LazyQuotes {
		opts = append(opts, csvtable.WithLazyQuotes())
	}
	return opts
}

// StepTypes lists the supported step types.
func StepTypes() []string {
	return []string{StepJoinColumns, StepJoinSplitLines, StepMapColumn, StepFilter}
}

// Mappers lists the supported map_column mappers.
func Mappers() []string {
	names := make([]string, 0, len(mappers))
	for name := range mappers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
