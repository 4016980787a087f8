package csvtable

import (
	"context"
	"encoding/csv"
	"io"
	"os"

	"github.com/kbukum/tablemut/errors"
	"github.com/kbukum/tablemut/pipeline"
	"github.com/kbukum/tablemut/table"
)

type writeConfig struct {
	comma rune
	crlf  bool
}

// WriteOption configures Write.
type WriteOption func(*writeConfig)

// WithOutputComma sets the output field delimiter. The default is ','.
func WithOutputComma(r rune) WriteOption {
	return func(c *writeConfig) { c.comma = r }
}

// WithCRLF terminates lines with \r\n.
func WithCRLF() WriteOption {
	return func(c *writeConfig) { c.crlf = true }
}

// Write writes the header of t followed by every row, quoting cells that
// contain the delimiter, quotes or newlines. It returns the number of rows
// written, header excluded.
func Write(ctx context.Context, w io.Writer, t table.Table, opts ...WriteOption) (int, error) {
	cfg := writeConfig{comma: ','}
	for _, opt := range opts {
		opt(&cfg)
	}
	cw := csv.NewWriter(w)
	cw.Comma = cfg.comma
	cw.UseCRLF = cfg.crlf

	rows, err := table.Stream(t)
	if err != nil {
		return 0, err
	}
	if err := cw.Write(t.Header()); err != nil {
		_ = rows.Iter(ctx).Close()
		return 0, err
	}

	n := 0
	err = pipeline.ForEach(ctx, rows, func(_ context.Context, row table.Row) error {
		if err := cw.Write(row); err != nil {
			return err
		}
		n++
		return nil
	})
	cw.Flush()
	if err != nil {
		return n, err
	}
	return n, cw.Error()
}

// WriteFile writes t to a new file at path.
func WriteFile(ctx context.Context, path string, t table.Table, opts ...WriteOption) (n int, err error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, errors.ResourceAcquisition(path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return Write(ctx, f, t, opts...)
}
