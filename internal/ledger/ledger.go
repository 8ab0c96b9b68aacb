// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger persists which papers have already been decided so that
// no paper is judged twice across runs, and stores the daily briefings.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/research-briefing/pkg/types"
)

// MemoryPath opens a private in-memory ledger (dry runs and tests).
const MemoryPath = ":memory:"

// timeLayout is fixed-width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// seenChunk bounds the number of placeholders in one IN query.
const seenChunk = 500

// ErrNotFound is returned when a record or briefing does not exist.
var ErrNotFound = errors.New("not found")

// Ledger is the SQLite-backed dedup ledger. It is opened at the start of
// a run, handed to the pipeline, and closed at the end. Methods are safe
// for concurrent use.
type Ledger struct {
	db   *sql.DB
	path string
}

// Open opens or creates the ledger database at path and ensures the
// schema exists.
func Open(ctx context.Context, path string) (*Ledger, error) {
	dsn := path
	if path != MemoryPath {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating ledger directory: %w", err)
			}
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	if path == MemoryPath {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	l := &Ledger{db: db, path: path}
	if err := l.createSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}
	return l, nil
}

// Close releases the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Path returns the database location.
func (l *Ledger) Path() string { return l.path }

func (l *Ledger) createSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS processed_papers (
			paper_id TEXT PRIMARY KEY,
			first_seen TEXT NOT NULL,
			relevant INTEGER NOT NULL,
			stage TEXT NOT NULL,
			processed_at TEXT NOT NULL,
			rubric_version TEXT,
			platform TEXT,
			title TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_processed_at ON processed_papers(processed_at)`,
		`CREATE TABLE IF NOT EXISTS briefings (
			date TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			paper_count INTEGER NOT NULL,
			platforms TEXT,
			created_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Seen returns the subset of ids already in the ledger.
func (l *Ledger) Seen(ctx context.Context, ids []string) (map[string]bool, error) {
	seen := make(map[string]bool)
	for start := 0; start < len(ids); start += seenChunk {
		end := min(start+seenChunk, len(ids))
		chunk := ids[start:end]

		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		query := `SELECT paper_id FROM processed_papers WHERE paper_id IN (?` +
			strings.Repeat(",?", len(chunk)-1) + `)`

		rows, err := l.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("querying processed papers: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning paper id: %w", err)
			}
			seen[id] = true
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("iterating processed papers: %w", err)
		}
	}
	return seen, nil
}

// IsProcessed reports whether id is in the ledger.
func (l *Ledger) IsProcessed(ctx context.Context, id string) (bool, error) {
	seen, err := l.Seen(ctx, []string{id})
	if err != nil {
		return false, err
	}
	return seen[id], nil
}

// Record appends rec. An existing entry for the same paper is left
// untouched and Record reports inserted=false.
func (l *Ledger) Record(ctx context.Context, rec types.ProcessedRecord) (inserted bool, err error) {
	if rec.PaperID == "" {
		return false, fmt.Errorf("recording paper: empty paper id")
	}
	if rec.ProcessedAt.IsZero() {
		rec.ProcessedAt = time.Now()
	}
	if rec.FirstSeen.IsZero() {
		rec.FirstSeen = rec.ProcessedAt
	}

	res, err := l.db.ExecContext(ctx,
		`INSERT INTO processed_papers
			(paper_id, first_seen, relevant, stage, processed_at, rubric_version, platform, title)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(paper_id) DO NOTHING`,
		rec.PaperID,
		rec.FirstSeen.Format(time.DateOnly),
		rec.Relevant,
		string(rec.Stage),
		rec.ProcessedAt.UTC().Format(timeLayout),
		rec.RubricVersion,
		string(rec.Platform),
		rec.Title,
	)
	if err != nil {
		return false, fmt.Errorf("recording paper %s: %w", rec.PaperID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("recording paper %s: %w", rec.PaperID, err)
	}
	return n == 1, nil
}

// Get returns the record for id.
func (l *Ledger) Get(ctx context.Context, id string) (types.ProcessedRecord, error) {
	var (
		rec                           types.ProcessedRecord
		firstSeen, processedAt, stage string
		rubric, platform, title       sql.NullString
	)
	err := l.db.QueryRowContext(ctx,
		`SELECT paper_id, first_seen, relevant, stage, processed_at, rubric_version, platform, title
		FROM processed_papers WHERE paper_id = ?`, id,
	).Scan(&rec.PaperID, &firstSeen, &rec.Relevant, &stage, &processedAt, &rubric, &platform, &title)
	if errors.Is(err, sql.ErrNoRows) {
		return types.ProcessedRecord{}, fmt.Errorf("paper %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return types.ProcessedRecord{}, fmt.Errorf("loading paper %s: %w", id, err)
	}

	rec.Stage = types.Stage(stage)
	rec.RubricVersion = rubric.String
	rec.Platform = types.Platform(platform.String)
	rec.Title = title.String
	rec.FirstSeen, _ = time.Parse(time.DateOnly, firstSeen)
	rec.ProcessedAt, _ = time.Parse(timeLayout, processedAt)
	return rec, nil
}

// Count returns the number of recorded papers.
func (l *Ledger) Count(ctx context.Context) (int, error) {
	var n int
	if err := l.db.QueryRowContext(ctx, `SELECT count(*) FROM processed_papers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting processed papers: %w", err)
	}
	return n, nil
}

// Purge deletes paper records processed before cutoff and briefings dated
// before it. Only the cleanup command calls this; a run never removes
// entries.
func (l *Ledger) Purge(ctx context.Context, cutoff time.Time) (papers, briefings int64, err error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM processed_papers WHERE processed_at < ?`,
		cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, 0, fmt.Errorf("purging processed papers: %w", err)
	}
	papers, _ = res.RowsAffected()

	res, err = tx.ExecContext(ctx, `DELETE FROM briefings WHERE date < ?`, cutoff.Format(time.DateOnly))
	if err != nil {
		return 0, 0, fmt.Errorf("purging briefings: %w", err)
	}
	briefings, _ = res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("committing purge: %w", err)
	}
	return papers, briefings, nil
}

// Optimize compacts the database file after a purge.
func (l *Ledger) Optimize(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, `VACUUM`); err != nil {
		return fmt.Errorf("vacuuming ledger: %w", err)
	}
	return nil
}
