package sink

import (
	"context"
	"io"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/kbukum/tablemut/csvtable"
	"github.com/kbukum/tablemut/errors"
	"github.com/kbukum/tablemut/logger"
	"github.com/kbukum/tablemut/table"
)

// Sink receives one table.
type Sink interface {
	// Write consumes t and returns the number of rows stored.
	Write(ctx context.Context, t table.Table) (int, error)
	Close() error
}

// Kind identifies a destination type.
type Kind string

const (
	KindStdout   Kind = "stdout"
	KindCSV      Kind = "csv"
	KindSQLite   Kind = "sqlite"
	KindPostgres Kind = "postgres"
	KindMySQL    Kind = "mysql"
	KindMongo    Kind = "mongodb"
)

// Mode controls what happens to existing database contents.
type Mode string

const (
	ModeReplace Mode = "replace"
	ModeAppend  Mode = "append"
)

// Target is a parsed destination.
type Target struct {
	Kind Kind
	// DSN is the driver connection string, or the file path for CSV.
	DSN string
	// Database is the MongoDB database name.
	Database string
	// Table is the SQL table or MongoDB collection.
	Table string
	Mode  Mode
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ParseTarget parses a target string.
func ParseTarget(target string) (Target, error) {
	if target == "" {
		return Target{}, errors.MissingField("out")
	}
	if target == "-" {
		return Target{Kind: KindStdout}, nil
	}

	scheme, rest, ok := strings.Cut(target, ":")
	if !ok || len(scheme) < 2 {
		// Plain paths, including Windows drive letters.
		return Target{Kind: KindCSV, DSN: target}, nil
	}

	switch strings.ToLower(scheme) {
	case "sqlite":
		return parseSQL(KindSQLite, strings.TrimPrefix(rest, "//"))
	case "postgres", "postgresql":
		return parseSQL(KindPostgres, target)
	case "mysql":
		return parseSQL(KindMySQL, strings.TrimPrefix(rest, "//"))
	case "mongodb", "mongodb+srv":
		return parseMongo(target)
	}
	return Target{Kind: KindCSV, DSN: target}, nil
}

// splitParams removes the sink's own query parameters from dsn.
func splitParams(dsn string, keys ...string) (string, map[string]string, error) {
	base, rawQuery, _ := strings.Cut(dsn, "?")
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", nil, errors.InvalidInput("out", "malformed query string").WithCause(err)
	}
	own := make(map[string]string, len(keys))
	for _, k := range keys {
		own[k] = q.Get(k)
		q.Del(k)
	}
	if len(q) > 0 {
		base += "?" + q.Encode()
	}
	return base, own, nil
}

func parseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case "", ModeReplace:
		return ModeReplace, nil
	case ModeAppend:
		return ModeAppend, nil
	}
	return "", errors.InvalidInput("mode", "must be replace or append")
}

func parseSQL(kind Kind, dsn string) (Target, error) {
	dsn, own, err := splitParams(dsn, "table", "mode")
	if err != nil {
		return Target{}, err
	}
	if !identPattern.MatchString(own["table"]) {
		return Target{}, errors.InvalidInput("table", "a table=<name> parameter of letters, digits and _ is required")
	}
	mode, err := parseMode(own["mode"])
	if err != nil {
		return Target{}, err
	}
	if dsn == "" {
		return Target{}, errors.InvalidInput("out", string(kind)+" target has no database")
	}
	return Target{Kind: kind, DSN: dsn, Table: own["table"], Mode: mode}, nil
}

func parseMongo(dsn string) (Target, error) {
	dsn, own, err := splitParams(dsn, "collection", "mode")
	if err != nil {
		return Target{}, err
	}
	if own["collection"] == "" {
		return Target{}, errors.InvalidInput("collection", "a collection=<name> parameter is required")
	}
	mode, err := parseMode(own["mode"])
	if err != nil {
		return Target{}, err
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return Target{}, errors.InvalidInput("out", "malformed mongodb uri").WithCause(err)
	}
	db := strings.Trim(u.Path, "/")
	if db == "" {
		return Target{}, errors.InvalidInput("out", "mongodb target needs a database in its path")
	}
	return Target{Kind: KindMongo, DSN: dsn, Database: db, Table: own["collection"], Mode: mode}, nil
}

type config struct {
	stdout io.Writer
	csv    []csvtable.WriteOption
	log    *logger.Logger
}

// Option configures Open.
type Option func(*config)

// WithStdout sets the writer used for the "-" target. The default is os.Stdout.
func WithStdout(w io.Writer) Option {
	return func(c *config) { c.stdout = w }
}

// WithCSVOptions sets the options of CSV targets.
func WithCSVOptions(opts ...csvtable.WriteOption) Option {
	return func(c *config) { c.csv = append(c.csv, opts...) }
}

// WithLogger sets the logger. The default is the "sink" component logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *config) { c.log = l }
}

// Open parses target and connects to it. Database targets are pinged
// before Open returns.
func Open(ctx context.Context, target string, opts ...Option) (Sink, error) {
	cfg := config{stdout: os.Stdout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.log == nil {
		cfg.log = logger.WithComponent("sink")
	}

	t, err := ParseTarget(target)
	if err != nil {
		return nil, err
	}

	var s Sink
	switch t.Kind {
	case KindStdout:
		return NewCSV(cfg.stdout, cfg.csv...), nil
	case KindCSV:
		s, err = CreateCSV(t.DSN, cfg.csv...)
	case KindMongo:
		s, err = OpenMongo(ctx, t, cfg.log)
	default:
		s, err = OpenSQL(ctx, t, cfg.log)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
