package sink

import (
	"context"
	"io"
	"os"

	"github.com/kbukum/tablemut/csvtable"
	"github.com/kbukum/tablemut/errors"
	"github.com/kbukum/tablemut/table"
)

// CSV writes tables as CSV.
type CSV struct {
	w    io.Writer
	opts []csvtable.WriteOption
	file *os.File
	path string
	done bool
}

// NewCSV writes to a caller-owned writer. Close is a no-op.
func NewCSV(w io.Writer, opts ...csvtable.WriteOption) *CSV {
	return &CSV{w: w, opts: opts}
}

// CreateCSV creates the file at path. Close removes the file unless a
// Write completed.
func CreateCSV(path string, opts ...csvtable.WriteOption) (*CSV, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.ResourceAcquisition(path, err)
	}
	return &CSV{w: f, opts: opts, file: f, path: path}, nil
}

// Write writes the header and rows of t.
func (s *CSV) Write(ctx context.Context, t table.Table) (int, error) {
	n, err := csvtable.Write(ctx, s.w, t, s.opts...)
	s.done = err == nil
	return n, err
}

// Close closes the file, if any.
func (s *CSV) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	if !s.done {
		_ = os.Remove(s.path)
	}
	return err
}
