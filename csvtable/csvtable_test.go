package csvtable

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"

	"github.com/kbukum/tablemut/errors"
	"github.com/kbukum/tablemut/logger"
	"github.com/kbukum/tablemut/mutation"
	"github.com/kbukum/tablemut/table"
)

func quiet() Option { return WithLogger(logger.Nop()) }

func readAll(t *testing.T, tbl table.Table) []table.Row {
	t.Helper()
	rows, err := table.Collect(context.Background(), tbl)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	return rows
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write input: %v", err)
	}
	return path
}

func TestNewSource_DefaultHeader(t *testing.T) {
	src, err := NewSource(strings.NewReader("a,b\n1,2\n3,4\n"), quiet())
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(src.Header(), table.Header{"a", "b"}) {
		t.Errorf("unexpected header %v", src.Header())
	}
	rows := readAll(t, src)
	if len(rows) != 2 || !slices.Equal(rows[1], table.Row{"3", "4"}) {
		t.Errorf("unexpected rows %v", rows)
	}
	if src.Line() != 3 {
		t.Errorf("expected 3 records read, got %d", src.Line())
	}
}

func TestNewSource_HeaderPredicate(t *testing.T) {
	data := "Report generated,2024\n\nPrivilege Name,Mask\nRead,x\n"
	src, err := NewSource(strings.NewReader(data), quiet(), WithHeaderFunc(FirstCellEquals("Privilege Name")))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(src.Header(), table.Header{"Privilege Name", "Mask"}) {
		t.Errorf("unexpected header %v", src.Header())
	}
	rows := readAll(t, src)
	if len(rows) != 1 || rows[0][0] != "Read" {
		t.Errorf("unexpected rows %v", rows)
	}
}

func TestNewSource_HeaderAt(t *testing.T) {
	src, err := NewSource(strings.NewReader("junk\nh1,h2\nv1,v2\n"), quiet(), WithHeaderFunc(HeaderAt(2)))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(src.Header(), table.Header{"h1", "h2"}) {
		t.Errorf("unexpected header %v", src.Header())
	}
}

func TestNewSource_HeaderNotFound(t *testing.T) {
	_, err := NewSource(strings.NewReader("a,b\n1,2\n"), quiet(), WithHeaderFunc(FirstCellEquals("missing")))
	if !errors.Is(err, errors.ErrCodeHeaderNotFound) {
		t.Fatalf("expected HEADER_NOT_FOUND, got %v", err)
	}
	appErr, _ := errors.AsAppError(err)
	if appErr.Details["lines_scanned"] != 2 {
		t.Errorf("expected 2 lines scanned, got %v", appErr.Details["lines_scanned"])
	}
}

func TestNewSource_EmptyStream(t *testing.T) {
	_, err := NewSource(strings.NewReader(""), quiet())
	if !errors.Is(err, errors.ErrCodeHeaderNotFound) {
		t.Errorf("expected HEADER_NOT_FOUND, got %v", err)
	}
}

func TestNewSource_VariableLengthRecords(t *testing.T) {
	src, err := NewSource(strings.NewReader("a,b,c\n1\n1,2,3,4\n"), quiet())
	if err != nil {
		t.Fatal(err)
	}
	rows := readAll(t, src)
	if len(rows[0]) != 1 || len(rows[1]) != 4 {
		t.Errorf("expected ragged rows to be kept, got %v", rows)
	}
}

func TestNewSource_QuotedNewlines(t *testing.T) {
	src, err := NewSource(strings.NewReader("a,b\n\"x\ny\",z\n"), quiet())
	if err != nil {
		t.Fatal(err)
	}
	rows := readAll(t, src)
	if len(rows) != 1 || rows[0][0] != "x\ny" {
		t.Errorf("unexpected rows %q", rows)
	}
}

func TestNewSource_BlankLinesCount(t *testing.T) {
	src, err := NewSource(strings.NewReader("title\n\nh1,h2\n1,2\n"), quiet(), WithHeaderFunc(HeaderAt(3)))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(src.Header(), table.Header{"h1", "h2"}) {
		t.Errorf("unexpected header %v", src.Header())
	}
	rows := readAll(t, src)
	if len(rows) != 1 || !slices.Equal(rows[0], table.Row{"1", "2"}) {
		t.Errorf("unexpected rows %v", rows)
	}
}

func TestNewSource_BlankRows(t *testing.T) {
	data := "a,b\n\"x\ny\",1\n\n\n2,3\n\n"
	src, err := NewSource(strings.NewReader(data), quiet())
	if err != nil {
		t.Fatal(err)
	}
	rows := readAll(t, src)
	want := []table.Row{{"x\ny", "1"}, {}, {}, {"2", "3"}}
	if len(rows) != len(want) {
		t.Fatalf("got %q, want %q", rows, want)
	}
	for i := range want {
		if !slices.Equal(rows[i], want[i]) {
			t.Errorf("row %d: got %q, want %q", i, rows[i], want[i])
		}
	}
	if src.Line() != 5 {
		t.Errorf("expected 5 rows read, got %d", src.Line())
	}
}

func TestNewSource_Comma(t *testing.T) {
	src, err := NewSource(strings.NewReader("a;b\n1;2\n"), quiet(), WithComma(';'))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(src.Header(), table.Header{"a", "b"}) {
		t.Errorf("unexpected header %v", src.Header())
	}
}

func TestNewSource_MalformedRecord(t *testing.T) {
	src, err := NewSource(strings.NewReader("a,b\n\"unterminated,2\n"), quiet())
	if err != nil {
		t.Fatal(err)
	}
	_, err = table.Collect(context.Background(), src)
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
}

func TestNewSource_StripsBOM(t *testing.T) {
	src, err := NewSource(strings.NewReader("\ufeffid,name\n1,x\n"), quiet())
	if err != nil {
		t.Fatal(err)
	}
	if src.Header()[0] != "id" {
		t.Errorf("expected BOM to be stripped, got %q", src.Header()[0])
	}
}

func TestNewSource_Encoding(t *testing.T) {
	data := []byte("name\ncaf\xe9\n")

	src, err := NewSource(bytes.NewReader(data), quiet(), WithEncodingName("windows-1252"))
	if err != nil {
		t.Fatal(err)
	}
	rows := readAll(t, src)
	if rows[0][0] != "café" {
		t.Errorf("expected decoded text, got %q", rows[0][0])
	}

	src, err = NewSource(bytes.NewReader(data), quiet(), WithEncoding(charmap.ISO8859_1))
	if err != nil {
		t.Fatal(err)
	}
	rows = readAll(t, src)
	if rows[0][0] != "café" {
		t.Errorf("expected decoded text, got %q", rows[0][0])
	}
}

func TestNewSource_UnknownEncoding(t *testing.T) {
	_, err := NewSource(strings.NewReader("a\n"), quiet(), WithEncodingName("klingon-8"))
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
}

func TestSource_SinglePass(t *testing.T) {
	src, err := NewSource(strings.NewReader("a\n1\n"), quiet())
	if err != nil {
		t.Fatal(err)
	}
	readAll(t, src)
	if _, err := src.Rows(); !errors.Is(err, errors.ErrCodeAlreadyConsumed) {
		t.Errorf("expected ALREADY_CONSUMED, got %v", err)
	}
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.csv"), quiet())
	if !errors.Is(err, errors.ErrCodeResourceAcquisition) {
		t.Errorf("expected RESOURCE_ACQUISITION_FAILED, got %v", err)
	}
}

func TestOpen_HeaderNotFoundClosesFile(t *testing.T) {
	path := writeTemp(t, "a,b\n")
	_, err := Open(path, quiet(), WithHeaderFunc(HeaderAt(5)))
	if !errors.Is(err, errors.ErrCodeHeaderNotFound) {
		t.Errorf("expected HEADER_NOT_FOUND, got %v", err)
	}
}

func TestOpen_ReadAndClose(t *testing.T) {
	path := writeTemp(t, "a,b\n1,2\n")
	src, err := Open(path, quiet())
	if err != nil {
		t.Fatal(err)
	}
	if src.Name() != path {
		t.Errorf("expected name %q, got %q", path, src.Name())
	}
	rows := readAll(t, src)
	if len(rows) != 1 {
		t.Errorf("unexpected rows %v", rows)
	}
	if err := src.Close(); err != nil {
		t.Fatal(err)
	}
	if err := src.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}

func TestWith_ClosesOnError(t *testing.T) {
	path := writeTemp(t, "a\n1\n")
	var seen *Source
	err := With(path, []Option{quiet()}, func(s *Source) error {
		seen = s
		return errors.Validation("stop")
	})
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if seen.closer != nil {
		t.Error("expected source to be closed after With")
	}
}

func TestWith_ClosesOnPanic(t *testing.T) {
	path := writeTemp(t, "a\n1\n")
	var seen *Source
	func() {
		defer func() { _ = recover() }()
		_ = With(path, []Option{quiet()}, func(s *Source) error {
			seen = s
			panic("boom")
		})
	}()
	if seen == nil || seen.closer != nil {
		t.Error("expected source to be closed after a panic")
	}
}

func TestWrite(t *testing.T) {
	tbl := table.FromRows(
		table.Header{"id", "note"},
		[]table.Row{{"1", "plain"}, {"2", "has,comma"}, {"3", "two\nlines"}},
	)
	var buf bytes.Buffer
	n, err := Write(context.Background(), &buf, tbl)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("expected 3 rows written, got %d", n)
	}
	want := "id,note\n1,plain\n2,\"has,comma\"\n3,\"two\nlines\"\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestWrite_Options(t *testing.T) {
	tbl := table.FromRows(table.Header{"a", "b"}, []table.Row{{"1", "2"}})
	var buf bytes.Buffer
	if _, err := Write(context.Background(), &buf, tbl, WithOutputComma('\t'), WithCRLF()); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "a\tb\r\n1\t2\r\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestWrite_PropagatesPipelineError(t *testing.T) {
	tbl := table.FromRows(table.Header{"a"}, nil).Mutate(mutation.NewJoinSplitLines())
	var buf bytes.Buffer
	_, err := Write(context.Background(), &buf, tbl)
	if !errors.Is(err, errors.ErrCodeEmptyTableFlush) {
		t.Errorf("expected EMPTY_TABLE_FLUSH, got %v", err)
	}
}

func TestWrite_ConsumedSourceWritesNothing(t *testing.T) {
	src, err := NewSource(strings.NewReader("a,b\n1,2\n"), quiet())
	if err != nil {
		t.Fatal(err)
	}
	readAll(t, src)

	var buf bytes.Buffer
	_, err = Write(context.Background(), &buf, src)
	if !errors.Is(err, errors.ErrCodeAlreadyConsumed) {
		t.Fatalf("expected ALREADY_CONSUMED, got %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestEndToEnd_FileToFile(t *testing.T) {
	in := writeTemp(t, strings.Join([]string{
		"Privilege Mask Detail Report",
		"Privilege Name,Objects,A,B",
		"Read,\"b,a\",x,",
		",c,y,",
		"Write,z,,",
		"",
	}, "\n"))
	out := filepath.Join(t.TempDir(), "out.csv")

	err := With(in, []Option{quiet(), WithHeaderFunc(FirstCellEquals("Privilege Name"))}, func(src *Source) error {
		joined := table.NewMutated(src, mutation.NewJoinColumns(2, 4, mutation.WithGlue(";")), table.WithLogger(logger.Nop()))
		merged := joined.Mutate(mutation.NewJoinSplitLines())
		_, err := WriteFile(context.Background(), out, merged)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	want := "Privilege Name,Objects,A;B\nRead,\"b,a\nc\",\"x\ny\"\nWrite,z,\n"
	if string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestWriteFile_BadPath(t *testing.T) {
	tbl := table.FromRows(table.Header{"a"}, nil)
	_, err := WriteFile(context.Background(), filepath.Join(t.TempDir(), "missing", "out.csv"), tbl)
	if !errors.Is(err, errors.ErrCodeResourceAcquisition) {
		t.Errorf("expected RESOURCE_ACQUISITION_FAILED, got %v", err)
	}
}
