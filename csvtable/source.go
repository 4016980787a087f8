package csvtable

import (
	"context"
	"encoding/csv"
	stderrors "errors"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/kbukum/tablemut/errors"
	"github.com/kbukum/tablemut/logger"
	"github.com/kbukum/tablemut/pipeline"
	"github.com/kbukum/tablemut/table"
)

// Source is a table read from a CSV stream. Its rows can be iterated once.
type Source struct {
	name     string
	closer   io.Closer
	reader   *csv.Reader
	header   table.Header
	line     int
	consumed bool

	// Blank lines are rows too. end is the input line the last record
	// ended on; blank counts the empty rows still owed before held.
	end   int
	blank int
	held  []string
	log      *logger.Logger
}

var _ table.Table = (*Source)(nil)

// Open opens the file at path and positions it after the header row.
// The caller must Close the source.
func Open(path string, opts ...Option) (*Source, error) {
	cfg, err := newConfig(path, opts)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.ResourceAcquisition(path, err)
	}
	s, err := newSource(f, f, cfg)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return s, nil
}

// With opens path, calls fn with the source and closes the source on every
// exit path.
func With(path string, opts []Option, fn func(*Source) error) (err error) {
	s, err := Open(path, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(s)
}

// NewSource reads a caller-owned stream and positions it after the header row.
func NewSource(r io.Reader, opts ...Option) (*Source, error) {
	cfg, err := newConfig("stream", opts)
	if err != nil {
		return nil, err
	}
	return newSource(r, nil, cfg)
}

func newSource(r io.Reader, closer io.Closer, cfg *config) (*Source, error) {
	var decoder transform.Transformer = unicode.UTF8.NewDecoder()
	if cfg.enc != nil {
		decoder = cfg.enc.NewDecoder()
	}
	reader := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(decoder)))
	reader.Comma = cfg.comma
	reader.LazyQuotes = cfg.lazyQuotes
	reader.FieldsPerRecord = -1

	s := &Source{
		name:   cfg.name,
		closer: closer,
		reader: reader,
		log:    cfg.log.WithFields(logger.Fields(logger.FieldSource, cfg.name)),
	}
	if err := s.findHeader(cfg.isHeader); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Source) findHeader(isHeader HeaderFunc) error {
	for {
		row, err := s.next()
		if stderrors.Is(err, io.EOF) {
			s.log.Error("Unable to find header", logger.Fields(logger.FieldLine, s.line))
			return errors.HeaderNotFound(s.name, s.line)
		}
		if err != nil {
			return s.readError(err)
		}
		if isHeader(s.line, row) {
			s.header = table.Header(row)
			s.log.Debug("Header found", logger.Fields(logger.FieldLine, s.line, "header", s.header))
			return nil
		}
	}
}

// next returns the next row and advances the line counter. A blank input
// line yields an empty row; blank lines at the end of the input are ignored.
func (s *Source) next() (table.Row, error) {
	if s.held == nil {
		rec, err := s.reader.Read()
		if err != nil {
			return nil, err
		}
		start, _ := s.reader.FieldPos(0)
		last, _ := s.reader.FieldPos(len(rec) - 1)
		s.blank = max(start-s.end-1, 0)
		s.end = last + strings.Count(rec[len(rec)-1], "\n")
		s.held = rec
	}
	s.line++
	if s.blank > 0 {
		s.blank--
		return table.Row{}, nil
	}
	row := table.Row(s.held)
	s.held = nil
	return row, nil
}

func (s *Source) readError(err error) error {
	return errors.InvalidInput("csv", "malformed record in "+s.name).
		WithDetail(logger.FieldLine, s.line+1).
		WithCause(err)
}

// Header returns the header row.
func (s *Source) Header() table.Header { return s.header }

// Line returns the number of rows read so far, header and blank lines
// included.
func (s *Source) Line() int { return s.line }

// Name returns the path or name the source was created with.
func (s *Source) Name() string { return s.name }

// Rows returns the records after the header. It may be called once.
func (s *Source) Rows() (pipeline.Iterator[table.Row], error) {
	if s.consumed {
		return nil, errors.AlreadyConsumed(s.name)
	}
	s.consumed = true
	return &rowIter{src: s}, nil
}

// Mutate wraps the source with m.
func (s *Source) Mutate(m table.Mutation) *table.MutatedTable {
	return table.NewMutated(s, m)
}

// Close releases the underlying file. It is a no-op for caller-owned streams.
func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	s.log.Debug("Closing source")
	err := s.closer.Close()
	s.closer = nil
	return err
}

type rowIter struct {
	src *Source
}

func (it *rowIter) Next(ctx context.Context) (table.Row, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	row, err := it.src.next()
	if stderrors.Is(err, io.EOF) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, it.src.readError(err)
	}
	return row, true, nil
}

// Close is a no-op: the Source owns the stream.
func (it *rowIter) Close() error { return nil }
