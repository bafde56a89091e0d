// Package history keeps a durable record of transcription jobs in a local
// SQLite database, so past runs can be listed and failed ones retried.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rasata/transcription-mp3-to-text/internal/job"
)

// Job status values as stored in the database.
const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// Entry is one recorded job. FinishedAt is zero while a job is running.
type Entry struct {
	ID          string
	AudioFile   string
	OutputFile  string
	Service     string
	Model       string
	Language    string
	Status      string
	Chunks      int
	EmptyChunks int
	DurationMs  int64
	OutputBytes int64
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Store records job outcomes in SQLite. It implements the runner's ledger.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the history database at path.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		audio_file TEXT NOT NULL,
		output_file TEXT NOT NULL,
		service TEXT NOT NULL,
		model TEXT NOT NULL,
		language TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'running',
		chunks INTEGER NOT NULL DEFAULT 0,
		empty_chunks INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		output_bytes INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		started_at DATETIME NOT NULL,
		finished_at DATETIME
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// JobStarted records a job entering the pipeline.
func (s *Store) JobStarted(j *job.Job) error {
	_, err := s.db.Exec(`
		INSERT INTO jobs (id, audio_file, output_file, service, model, language, status, chunks, duration_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status=?, chunks=?, duration_ms=?`,
		j.ID, j.AudioPath, j.OutputPath, j.Service, j.Model, j.Language,
		StatusRunning, j.Chunks, j.Duration.Milliseconds(), j.CreatedAt,
		StatusRunning, j.Chunks, j.Duration.Milliseconds(),
	)
	return err
}

// JobCompleted marks a job as done with its output size and empty-chunk count.
func (s *Store) JobCompleted(j *job.Job, outputBytes int64, emptyChunks int) error {
	now := time.Now()
	_, err := s.db.Exec(`
		INSERT INTO jobs (id, audio_file, output_file, service, model, language, status, chunks, empty_chunks, duration_ms, output_bytes, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status=?, chunks=?, empty_chunks=?, output_bytes=?, finished_at=?`,
		j.ID, j.AudioPath, j.OutputPath, j.Service, j.Model, j.Language,
		StatusDone, j.Chunks, emptyChunks, j.Duration.Milliseconds(), outputBytes, j.CreatedAt, now,
		StatusDone, j.Chunks, emptyChunks, outputBytes, now,
	)
	return err
}

// JobFailed marks a job as failed. Jobs can fail before JobStarted was ever
// called (a missing input file, for instance), so this upserts too.
func (s *Store) JobFailed(j *job.Job, cause error) error {
	now := time.Now()
	_, err := s.db.Exec(`
		INSERT INTO jobs (id, audio_file, output_file, service, model, language, status, chunks, duration_ms, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status=?, error=?, finished_at=?`,
		j.ID, j.AudioPath, j.OutputPath, j.Service, j.Model, j.Language,
		StatusFailed, j.Chunks, j.Duration.Milliseconds(), cause.Error(), j.CreatedAt, now,
		StatusFailed, cause.Error(), now,
	)
	return err
}

// Recent returns the n most recently started jobs, newest first.
func (s *Store) Recent(n int) ([]Entry, error) {
	rows, err := s.db.Query(`
		SELECT id, audio_file, output_file, service, model, language, status,
		       chunks, empty_chunks, duration_ms, output_bytes, error, started_at, finished_at
		FROM jobs ORDER BY started_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var finished sql.NullTime
		if err := rows.Scan(&e.ID, &e.AudioFile, &e.OutputFile, &e.Service, &e.Model,
			&e.Language, &e.Status, &e.Chunks, &e.EmptyChunks, &e.DurationMs,
			&e.OutputBytes, &e.Error, &e.StartedAt, &finished); err != nil {
			return nil, err
		}
		if finished.Valid {
			e.FinishedAt = finished.Time
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
