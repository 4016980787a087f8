package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/kbukum/tablemut/errors"
	"github.com/kbukum/tablemut/logger"
	"github.com/kbukum/tablemut/pipeline"
	"github.com/kbukum/tablemut/table"
)

type dialect struct {
	driver string
	quote  string
	// numbered placeholders ($1, $2) instead of ?
	numbered bool
}

var dialects = map[Kind]dialect{
	KindSQLite:   {driver: "sqlite", quote: `"`},
	KindPostgres: {driver: "postgres", quote: `"`, numbered: true},
	KindMySQL:    {driver: "mysql", quote: "`"},
}

func (d dialect) ident(name string) string {
	return d.quote + strings.ReplaceAll(name, d.quote, d.quote+d.quote) + d.quote
}

func (d dialect) placeholders(n int) string {
	ph := make([]string, n)
	for i := range ph {
		if d.numbered {
			ph[i] = "$" + strconv.Itoa(i+1)
		} else {
			ph[i] = "?"
		}
	}
	return strings.Join(ph, ", ")
}

// SQL stores tables in a SQL database, one TEXT column per header cell.
type SQL struct {
	db    *sql.DB
	d     dialect
	table string
	mode  Mode
	log   *logger.Logger
}

// OpenSQL connects to a SQLite, PostgreSQL or MySQL target.
func OpenSQL(ctx context.Context, t Target, log *logger.Logger) (*SQL, error) {
	d, ok := dialects[t.Kind]
	if !ok {
		return nil, errors.InvalidInput("out", "not a sql target: "+string(t.Kind))
	}
	db, err := sql.Open(d.driver, t.DSN)
	if err != nil {
		return nil, errors.ResourceAcquisition(string(t.Kind), err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.ResourceAcquisition(string(t.Kind), err)
	}
	return &SQL{
		db:    db,
		d:     d,
		table: t.Table,
		mode:  t.Mode,
		log:   log.WithFields(logger.Fields("table", t.Table, "driver", d.driver)),
	}, nil
}

// Write stores t in one transaction. Rows shorter than the header are
// padded with NULL; cells beyond the header are dropped with a warning.
func (s *SQL) Write(ctx context.Context, t table.Table) (n int, err error) {
	cols := ColumnNames(t.Header())
	if len(cols) == 0 {
		return 0, errors.InvalidInput("header", "cannot create a table without columns")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if s.mode == ModeReplace {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+s.d.ident(s.table)); err != nil {
			return 0, fmt.Errorf("drop %s: %w", s.table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, s.createSQL(cols)); err != nil {
		return 0, fmt.Errorf("create %s: %w", s.table, err)
	}
	stmt, err := tx.PrepareContext(ctx, s.insertSQL(cols))
	if err != nil {
		return 0, fmt.Errorf("prepare insert into %s: %w", s.table, err)
	}
	defer stmt.Close()

	rows, err := table.Stream(t)
	if err != nil {
		return 0, err
	}
	rows = warnLongRows(rows, len(cols), s.log)

	args := make([]any, len(cols))
	err = pipeline.ForEach(ctx, rows, func(ctx context.Context, row table.Row) error {
		for i := range args {
			if i < len(row) {
				args[i] = row[i]
			} else {
				args[i] = nil
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert into %s: %w", s.table, err)
		}
		n++
		return nil
	})
	if err != nil {
		return n, err
	}
	if err = tx.Commit(); err != nil {
		return n, fmt.Errorf("commit: %w", err)
	}
	s.log.Debug("Rows stored", logger.Fields(logger.FieldRows, n, "mode", string(s.mode)))
	return n, nil
}

func (s *SQL) createSQL(cols []string) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = s.d.ident(c) + " TEXT"
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", s.d.ident(s.table), strings.Join(defs, ", "))
}

func (s *SQL) insertSQL(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = s.d.ident(c)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.d.ident(s.table), strings.Join(quoted, ", "), s.d.placeholders(len(cols)))
}

// Close closes the connection pool.
func (s *SQL) Close() error {
	return s.db.Close()
}

// warnLongRows logs every row with more cells than the header has columns.
func warnLongRows(rows *pipeline.Pipeline[table.Row], width int, log *logger.Logger) *pipeline.Pipeline[table.Row] {
	line := 0
	return pipeline.Tap(rows, func(_ context.Context, row table.Row) error {
		line++
		if len(row) > width {
			log.Warn("Dropping cells beyond the header", logger.Fields(logger.FieldLine, line, "got", len(row), "want", width))
		}
		return nil
	})
}

// ColumnNames turns a header into usable column names: blank names become
// column_N and repeated names get a numeric suffix. Names that differ only
// in case count as repeats.
func ColumnNames(h table.Header) []string {
	seen := make(map[string]bool, len(h))
	out := make([]string, len(h))
	for i, name := range h {
		name = strings.TrimSpace(name)
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}
		base := name
		for k := 2; seen[strings.ToLower(name)]; k++ {
			name = base + "_" + strconv.Itoa(k)
		}
		seen[strings.ToLower(name)] = true
		out[i] = name
	}
	return out
}
