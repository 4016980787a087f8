package recipe

import (
	"bytes"
	"context"
	"slices"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/kbukum/tablemut/csvtable"
	"github.com/kbukum/tablemut/errors"
	"github.com/kbukum/tablemut/logger"
	"github.com/kbukum/tablemut/observability"
	"github.com/kbukum/tablemut/table"
	"github.com/kbukum/tablemut/validation"
)

func str(s string) *string { return &s }

func collect(t *testing.T, tbl table.Table) []table.Row {
	t.Helper()
	rows, err := table.Collect(context.Background(), tbl)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	return rows
}

func rowsEqual(a, b []table.Row) bool {
	return slices.EqualFunc(a, b, func(x, y table.Row) bool { return slices.Equal(x, y) })
}

func fieldsOf(t *testing.T, err error) []string {
	t.Helper()
	appErr, ok := errors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %v", err)
	}
	fields, _ := appErr.Details["fields"].([]validation.FieldError)
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Field
	}
	return out
}

var privilegeMask = Recipe{
	Name:        "privilege-mask",
	HeaderMatch: "Privilege Name",
	Steps: []Step{
		{Type: StepJoinColumns, From: 2, To: 4},
		{Type: StepJoinColumns, From: 3, To: ToEnd, Glue: str(";")},
		{Type: StepJoinSplitLines},
		{Type: StepMapColumn, Column: 1, Mapper: "sort_list", Args: []string{"\n"}},
	},
}

const privilegeMaskCSV = `Privilege Mask Detail Report
Privilege Name,Objects,F1,F2,F3,F4
Read,b,x,y,p,q
,a,,,r,
Write,z,u,,,
`

func TestRunner_PrivilegeMaskReport(t *testing.T) {
	var out bytes.Buffer
	runner := NewRunner(WithRunLogger(logger.Nop()))
	res, err := runner.Run(context.Background(), privilegeMask, strings.NewReader(privilegeMaskCSV), &out, Request{RunID: "run-1"})
	if err != nil {
		t.Fatal(err)
	}

	want := "Privilege Name,Objects,F1 F2,F3;F4\n" +
		"Read,\"a\nb\",x y,\"p;q\nr\"\n" +
		"Write,z,u,\n"
	if out.String() != want {
		t.Errorf("got %q, want %q", out.String(), want)
	}
	if res.Rows != 2 || res.RunID != "run-1" || res.Recipe != "privilege-mask" {
		t.Errorf("unexpected result %+v", res)
	}
	if !slices.Equal(res.Header, table.Header{"Privilege Name", "Objects", "F1 F2", "F3;F4"}) {
		t.Errorf("unexpected header %v", res.Header)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", res.Warnings)
	}
}

func TestRunner_Errors(t *testing.T) {
	runner := NewRunner(WithRunLogger(logger.Nop()))

	_, err := runner.Run(context.Background(), privilegeMask, strings.NewReader("a,b\n1,2\n"), &bytes.Buffer{}, Request{})
	if !errors.Is(err, errors.ErrCodeHeaderNotFound) {
		t.Errorf("expected HEADER_NOT_FOUND, got %v", err)
	}

	empty := Recipe{Name: "empty", Steps: []Step{{Type: StepJoinSplitLines}}}
	_, err = runner.Run(context.Background(), empty, strings.NewReader("a,b\n"), &bytes.Buffer{}, Request{})
	if !errors.Is(err, errors.ErrCodeEmptyTableFlush) {
		t.Errorf("expected EMPTY_TABLE_FLUSH, got %v", err)
	}

	_, err = runner.Run(context.Background(), Recipe{Name: "bad"}, strings.NewReader("a\n1\n"), &bytes.Buffer{}, Request{})
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
}

func TestRunner_SourceOverrideAndWarnings(t *testing.T) {
	m, err := observability.NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatal(err)
	}
	r := Recipe{Name: "upper", Steps: []Step{{Type: StepMapColumn, Column: 0, Mapper: "upper"}}}
	in := "name;note\nann;x\nbob\n"

	var out bytes.Buffer
	runner := NewRunner(WithRunLogger(logger.Nop()), WithMetrics(m), WithOutput(csvtable.WithOutputComma('|')))
	res, err := runner.Run(context.Background(), r, strings.NewReader(in), &out,
		Request{RunID: "r", RequestID: "q", Source: []csvtable.Option{csvtable.WithComma(';')}})
	if err != nil {
		t.Fatal(err)
	}
	if out.String() != "name|note\nANN|x\nBOB\n" {
		t.Errorf("unexpected output %q", out.String())
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Line != 2 {
		t.Errorf("expected one warning for line 2, got %v", res.Warnings)
	}
}

func TestRunner_Strict(t *testing.T) {
	r := Recipe{Name: "strict", Strict: true, Steps: []Step{{Type: StepMapColumn, Mapper: "trim"}}}
	runner := NewRunner(WithRunLogger(logger.Nop()))
	_, err := runner.Run(context.Background(), r, strings.NewReader("a,b\n1\n"), &bytes.Buffer{}, Request{})
	if !errors.Is(err, errors.ErrCodeRowShapeMismatch) {
		t.Errorf("expected ROW_SHAPE_MISMATCH, got %v", err)
	}
}

func TestApply_JoinColumnsToEnd(t *testing.T) {
	src := table.FromRows(table.Header{"a", "b", "c", "d"}, []table.Row{{"1", "2", "3", "4"}})
	r := Recipe{Name: "r", Steps: []Step{
		{Type: StepJoinColumns, From: 0, To: 2, Name: "ab"},
		{Type: StepJoinColumns, From: 1, To: ToEnd, Glue: str("")},
	}}
	out, err := Apply(src, r, table.WithLogger(logger.Nop()))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(out.Header(), table.Header{"ab", "cd"}) {
		t.Errorf("unexpected header %v", out.Header())
	}
	got := collect(t, out)
	if !rowsEqual(got, []table.Row{{"1 2", "34"}}) {
		t.Errorf("unexpected rows %v", got)
	}
}

func TestApply_FreshInstancesPerCall(t *testing.T) {
	r := Recipe{Name: "r", Steps: []Step{{Type: StepJoinSplitLines}}}
	src := table.FromRows(table.Header{"k", "v"}, []table.Row{{"a", "1"}, {"", "2"}})

	for i := 0; i < 2; i++ {
		out, err := Apply(src, r, table.WithLogger(logger.Nop()))
		if err != nil {
			t.Fatal(err)
		}
		got := collect(t, out)
		if !rowsEqual(got, []table.Row{{"a", "1\n2"}}) {
			t.Errorf("pass %d: unexpected rows %q", i, got)
		}
	}
}

func TestApply_Filter(t *testing.T) {
	src := table.FromRows(table.Header{"name", "tag"}, []table.Row{
		{"ann", "admin"},
		{"bob", ""},
		{"cy", "user admin"},
		{"dee"},
	})
	tests := []struct {
		op, value string
		want      []string
	}{
		{"eq", "admin", []string{"ann"}},
		{"neq", "admin", []string{"bob", "cy", "dee"}},
		{"contains", "admin", []string{"ann", "cy"}},
		{"empty", "", []string{"bob", "dee"}},
		{"not_empty", "", []string{"ann", "cy"}},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			r := Recipe{Name: "f", Steps: []Step{{Type: StepFilter, Column: 1, Op: tt.op, Value: tt.value}}}
			out, err := Apply(src, r, table.WithLogger(logger.Nop()))
			if err != nil {
				t.Fatal(err)
			}
			var names []string
			for _, row := range collect(t, out) {
				names = append(names, row[0])
			}
			if !slices.Equal(names, tt.want) {
				t.Errorf("got %v, want %v", names, tt.want)
			}
		})
	}
}

func TestRecipeValidate(t *testing.T) {
	tests := []struct {
		name   string
		recipe Recipe
		fields []string
	}{
		{"valid", privilegeMask, nil},
		{"no name no steps", Recipe{}, []string{"name", "steps"}},
		{"unknown step", Recipe{Name: "r", Steps: []Step{{Type: "pivot"}}}, []string{"steps[0].type"}},
		{"to before from", Recipe{Name: "r", Steps: []Step{{Type: StepJoinColumns, From: 3, To: 1}}}, []string{"steps[0].to"}},
		{"negative column", Recipe{Name: "r", Steps: []Step{{Type: StepFilter, Column: -1, Op: "eq"}}}, []string{"steps[0].column"}},
		{"missing mapper", Recipe{Name: "r", Steps: []Step{{Type: StepMapColumn}}}, []string{"steps[0].mapper"}},
		{"unknown mapper", Recipe{Name: "r", Steps: []Step{{Type: StepMapColumn, Mapper: "rot13"}}}, []string{"steps[0].mapper"}},
		{"replace args", Recipe{Name: "r", Steps: []Step{{Type: StepMapColumn, Mapper: "replace", Args: []string{"x"}}}}, []string{"steps[0].args"}},
		{"missing op", Recipe{Name: "r", Steps: []Step{{Type: StepFilter}}}, []string{"steps[0].op"}},
		{"unknown op", Recipe{Name: "r", Steps: []Step{{Type: StepFilter, Op: "gt"}}}, []string{"steps[0].op"}},
		{"bad comma", Recipe{Name: "r", Comma: "||", Steps: []Step{{Type: StepJoinSplitLines}}}, []string{"comma"}},
		{"two header rules", Recipe{Name: "r", HeaderLine: 2, HeaderMatch: "x", Steps: []Step{{Type: StepJoinSplitLines}}}, []string{"header_match"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.recipe.Validate()
			if tt.fields == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Fatalf("expected INVALID_INPUT, got %v", err)
			}
			if got := fieldsOf(t, err); !slices.Equal(got, tt.fields) {
				t.Errorf("got fields %v, want %v", got, tt.fields)
			}
		})
	}
}

func TestMappers(t *testing.T) {
	tests := []struct {
		mapper string
		args   []string
		in     string
		want   string
	}{
		{"sort_list", nil, "c,a,b", "a,b,c"},
		{"sort_list", []string{";"}, "z;y", "y;z"},
		{"trim", nil, "  x \n", "x"},
		{"upper", nil, "abc", "ABC"},
		{"lower", nil, "ABC", "abc"},
		{"replace", []string{"-", "_"}, "a-b-c", "a_b_c"},
		{"strip_newlines", nil, "a\nb\r\nc", "a b c"},
		{"strip_newlines", []string{"/"}, "a\nb", "a/b"},
	}
	for _, tt := range tests {
		fn, err := newMapper(tt.mapper, tt.args)
		if err != nil {
			t.Fatalf("%s: %v", tt.mapper, err)
		}
		if got := fn(tt.in); got != tt.want {
			t.Errorf("%s(%q) = %q, want %q", tt.mapper, tt.in, got, tt.want)
		}
	}
	if !slices.Contains(Mappers(), "sort_list") || !slices.IsSorted(Mappers()) {
		t.Errorf("unexpected mapper list %v", Mappers())
	}
}

func TestSourceOptions(t *testing.T) {
	r := Recipe{Name: "r", HeaderLine: 2, Comma: ";", Steps: []Step{{Type: StepJoinSplitLines}}}
	src, err := csvtable.NewSource(strings.NewReader("junk\na;b\n1;2\n"), append(r.SourceOptions(), csvtable.WithLogger(logger.Nop()))...)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(src.Header(), table.Header{"a", "b"}) {
		t.Errorf("unexpected header %v", src.Header())
	}
}

func TestRegistry(t *testing.T) {
	b := Recipe{Name: "b", Steps: []Step{{Type: StepJoinSplitLines}}}
	a := Recipe{Name: "a", Steps: []Step{{Type: StepJoinSplitLines}}}
	reg, err := NewRegistry(b, a)
	if err != nil {
		t.Fatal(err)
	}
	if reg.Len() != 2 {
		t.Errorf("expected 2 recipes, got %d", reg.Len())
	}
	list := reg.List()
	if list[0].Name != "a" || list[1].Name != "b" {
		t.Errorf("expected sorted list, got %v", list)
	}
	if got, err := reg.Get("a"); err != nil || got.Name != "a" {
		t.Errorf("Get(a) = %v, %v", got, err)
	}
	if _, err := reg.Get("zzz"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
	if err := reg.Register(a); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected duplicate to be rejected, got %v", err)
	}
	if _, err := NewRegistry(Recipe{Name: "bad"}); err == nil {
		t.Error("expected invalid recipe to be rejected")
	}
}

func TestRegistry_CheckHealth(t *testing.T) {
	empty, _ := NewRegistry()
	if h := empty.CheckHealth(context.Background()); h.Status != observability.HealthStatusDegraded {
		t.Errorf("expected degraded for an empty registry, got %s", h.Status)
	}
	reg, err := NewRegistry(privilegeMask)
	if err != nil {
		t.Fatal(err)
	}
	h := reg.CheckHealth(context.Background())
	if h.Status != observability.HealthStatusUp || h.Details["count"] != "1" {
		t.Errorf("unexpected health %+v", h)
	}
}
