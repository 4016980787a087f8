package csvtable

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/kbukum/tablemut/errors"
	"github.com/kbukum/tablemut/logger"
	"github.com/kbukum/tablemut/table"
)

// HeaderFunc reports whether the row at the 1-based line is the header.
type HeaderFunc func(line int, row table.Row) bool

// FirstLine selects the first record as the header.
func FirstLine(line int, _ table.Row) bool { return line == 1 }

// HeaderAt selects the record at the given 1-based line.
func HeaderAt(n int) HeaderFunc {
	return func(line int, _ table.Row) bool { return line == n }
}

// FirstCellEquals selects the first record whose first cell equals value.
func FirstCellEquals(value string) HeaderFunc {
	return func(_ int, row table.Row) bool { return len(row) > 0 && row[0] == value }
}

type config struct {
	name       string
	isHeader   HeaderFunc
	comma      rune
	lazyQuotes bool
	enc        encoding.Encoding
	encName    string
	log        *logger.Logger
}

// Option configures a Source.
type Option func(*config)

// WithHeaderFunc sets the header predicate. The default is FirstLine.
func WithHeaderFunc(fn HeaderFunc) Option {
	return func(c *config) { c.isHeader = fn }
}

// WithComma sets the field delimiter. The default is ','.
func WithComma(r rune) Option {
	return func(c *config) { c.comma = r }
}

// WithLazyQuotes tolerates quotes inside unquoted fields.
func WithLazyQuotes() Option {
	return func(c *config) { c.lazyQuotes = true }
}

// WithEncoding decodes the stream with enc. A byte order mark still wins.
func WithEncoding(enc encoding.Encoding) Option {
	return func(c *config) { c.enc = enc }
}

// WithEncodingName decodes the stream with the named charset, e.g.
// "windows-1252" or "iso-8859-1".
func WithEncodingName(name string) Option {
	return func(c *config) { c.encName = name }
}

// WithName sets the name the source is reported under.
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *config) { c.log = l }
}

func newConfig(name string, opts []Option) (*config, error) {
	c := &config{
		name:     name,
		isHeader: FirstLine,
		comma:    ',',
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.WithComponent("csvtable")
	}
	if c.encName != "" && c.enc == nil {
		enc, err := htmlindex.Get(c.encName)
		if err != nil {
			return nil, errors.InvalidInput("encoding", "unknown encoding "+c.encName).WithCause(err)
		}
		c.enc = enc
	}
	return c, nil
}
