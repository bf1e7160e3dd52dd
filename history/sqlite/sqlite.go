// Package sqlite provides a history store backed by an SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/rlch/spar"
	"github.com/rlch/spar/history"
	"github.com/rlch/spar/model"
)

func init() {
	history.Register(spar.HistorySQLite, func(cfg any) (history.Store, error) {
		sqliteCfg, ok := cfg.(*spar.SQLiteConfig)
		if !ok {
			return nil, fmt.Errorf("%w: expected *spar.SQLiteConfig, got %T", history.ErrInvalidConfig, cfg)
		}

		return New(sqliteCfg.Path)
	})
}

// DefaultPath is used when no path is configured.
const DefaultPath = ".spar/history.db"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id       TEXT PRIMARY KEY,
	unit     TEXT NOT NULL,
	engine   TEXT NOT NULL,
	started  INTEGER NOT NULL,
	finished INTEGER NOT NULL,
	err      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS runs_unit_started ON runs (unit, started DESC);
CREATE TABLE IF NOT EXISTS tests (
	run_id TEXT NOT NULL REFERENCES runs (id) ON DELETE CASCADE,
	seq    INTEGER NOT NULL,
	name   TEXT NOT NULL,
	status TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, seq)
);`

// Store persists runs in two tables: runs and tests.
type Store struct {
	db   *sql.DB
	path string
}

var _ history.Store = (*Store)(nil)

// New opens or creates the database at path. The special path ":memory:"
// keeps everything in memory.
func New(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}

	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), 0o750)
		if err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single connection serializes writers and keeps ":memory:" databases
	// shared.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(schema)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Save inserts a run and its tests in one transaction.
func (s *Store) Save(ctx context.Context, run history.Run) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, unit, engine, started, finished, err) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Unit, run.Engine, run.Started.UnixNano(), run.Finished.UnixNano(), run.Err)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	for i, t := range run.Tests {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO tests (run_id, seq, name, status, detail) VALUES (?, ?, ?, ?, ?)`,
			run.ID, i, t.Name, t.Status.String(), t.Detail)
		if err != nil {
			return fmt.Errorf("insert test %q: %w", t.Name, err)
		}
	}

	return tx.Commit()
}

// List returns runs newest first, with their tests in recorded order.
func (s *Store) List(ctx context.Context, unit string, limit int) ([]history.Run, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, unit, engine, started, finished, err FROM runs
		WHERE ? = '' OR unit = ?
		ORDER BY started DESC, id
		LIMIT ?`, unit, unit, limit)
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}

	var runs []history.Run

	for rows.Next() {
		var (
			r                 history.Run
			started, finished int64
		)

		err = rows.Scan(&r.ID, &r.Unit, &r.Engine, &started, &finished, &r.Err)
		if err != nil {
			_ = rows.Close()

			return nil, fmt.Errorf("scan run: %w", err)
		}

		r.Started = time.Unix(0, started)
		r.Finished = time.Unix(0, finished)
		runs = append(runs, r)
	}

	err = rows.Close()
	if err != nil {
		return nil, err
	}

	for i := range runs {
		runs[i].Tests, err = s.tests(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
	}

	return runs, nil
}

func (s *Store) tests(ctx context.Context, runID string) ([]history.TestOutcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, status, detail FROM tests WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("select tests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tests []history.TestOutcome

	for rows.Next() {
		var (
			t      history.TestOutcome
			status string
		)

		err = rows.Scan(&t.Name, &status, &t.Detail)
		if err != nil {
			return nil, fmt.Errorf("scan test: %w", err)
		}

		t.Status, err = model.ParseStatus(status)
		if err != nil {
			return nil, err
		}

		tests = append(tests, t)
	}

	return tests, rows.Err()
}

// Path returns the database path.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
