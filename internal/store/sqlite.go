package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/desguapro/stock-cli/internal/sched"
	"github.com/desguapro/stock-cli/pkg/pricing"
)

// ErrNotFound is returned when a run ID has no row.
var ErrNotFound = eris.New("store: run not found")

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS verification_runs (
	id          TEXT PRIMARY KEY,
	source_file TEXT NOT NULL,
	cancelled   INTEGER NOT NULL DEFAULT 0,
	counters    TEXT NOT NULL,
	elapsed_ms  INTEGER NOT NULL,
	results     TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_verification_runs_created_at ON verification_runs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun persists a finished run. The scheduler's uuid run ID is the
// primary key.
func (s *SQLiteStore) SaveRun(ctx context.Context, sourceFile string, summary sched.Summary, results []pricing.Result) (*Run, error) {
	countersJSON, err := json.Marshal(summary.Counters)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal counters")
	}
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal results")
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO verification_runs (id, source_file, cancelled, counters, elapsed_ms, results, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		summary.ID, sourceFile, boolToInt(summary.Cancelled), string(countersJSON),
		summary.Elapsed.Milliseconds(), string(resultsJSON), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &Run{
		ID:         summary.ID,
		SourceFile: sourceFile,
		Cancelled:  summary.Cancelled,
		Counters:   summary.Counters,
		Elapsed:    summary.Elapsed,
		Results:    results,
		CreatedAt:  now,
	}, nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source_file, cancelled, counters, elapsed_ms, results, created_at
		 FROM verification_runs WHERE id = ?`, runID)

	run, err := scanRun(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return run, nil
}

// ListRuns returns runs newest-first. Result payloads are omitted; use
// GetRun for the full record.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_file, cancelled, counters, elapsed_ms, results, created_at
		 FROM verification_runs ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, filter.Offset)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows, false)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable, withResults bool) (*Run, error) {
	var (
		run          Run
		cancelled    int
		countersJSON string
		elapsedMs    int64
		resultsJSON  string
	)
	if err := row.Scan(&run.ID, &run.SourceFile, &cancelled, &countersJSON, &elapsedMs, &resultsJSON, &run.CreatedAt); err != nil {
		return nil, err
	}

	run.Cancelled = cancelled != 0
	run.Elapsed = time.Duration(elapsedMs) * time.Millisecond
	if err := json.Unmarshal([]byte(countersJSON), &run.Counters); err != nil {
		return nil, eris.Wrap(err, "unmarshal counters")
	}
	if withResults {
		if err := json.Unmarshal([]byte(resultsJSON), &run.Results); err != nil {
			return nil, eris.Wrap(err, "unmarshal results")
		}
	}
	return &run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
