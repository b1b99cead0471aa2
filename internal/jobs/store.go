// Package jobs persists processing jobs in SQLite and runs them on a
// bounded worker pool. A job tracks one input video through the
// processor: queued, running, then done or error.
package jobs

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Job statuses. A job only ever moves forward: queued -> running ->
// done|error.
const (
	StatusQueued  = "queued"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusError   = "error"
)

var ErrNotFound = errors.New("job not found")

// Job is one tracked processing run.
type Job struct {
	ID          string       `json:"jobId"`
	Status      string       `json:"status"`
	InputPath   string       `json:"-"`
	OutputPath  string       `json:"-"`
	SummaryPath string       `json:"-"`
	ParamsJSON  string       `json:"params"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	StartedAt   sql.NullTime `json:"-"`
	FinishedAt  sql.NullTime `json:"-"`
}

// Terminal reports whether the job has finished, successfully or not.
func (j *Job) Terminal() bool {
	return j.Status == StatusDone || j.Status == StatusError
}

type Store struct {
	*sql.DB
}

// NewStore opens (creating if needed) the SQLite database at path and
// runs any pending migrations.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// migrateUp applies all pending schema migrations from the embedded set.
// Returns nil when the schema is already current.
func (s *Store) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	driver, err := sqlitemigrate.WithInstance(s.DB, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// Note: not closing m here because that would close the underlying DB
	// connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Insert records a new queued job.
func (s *Store) Insert(j *Job) error {
	_, err := s.Exec(`
		INSERT INTO jobs (id, status, input_path, output_path, summary_path, params_json)
		VALUES (?, ?, ?, ?, ?, ?)`,
		j.ID, StatusQueued, j.InputPath, j.OutputPath, j.SummaryPath, j.ParamsJSON,
	)
	if err != nil {
		return fmt.Errorf("insert job %s: %w", j.ID, err)
	}
	return nil
}

// MarkRunning flips a job to running and stamps started_at.
func (s *Store) MarkRunning(id string) error {
	return s.setStatus(id, StatusRunning, "started_at", "")
}

// MarkDone flips a job to done and stamps finished_at.
func (s *Store) MarkDone(id string) error {
	return s.setStatus(id, StatusDone, "finished_at", "")
}

// MarkError flips a job to error with the failure message.
func (s *Store) MarkError(id string, errMsg string) error {
	return s.setStatus(id, StatusError, "finished_at", errMsg)
}

func (s *Store) setStatus(id, status, stampCol, errMsg string) error {
	res, err := s.Exec(
		fmt.Sprintf(`UPDATE jobs SET status = ?, error = ?, %s = CURRENT_TIMESTAMP WHERE id = ?`, stampCol),
		status, errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("update job %s to %s: %w", id, status, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetJob loads a single job by ID.
func (s *Store) GetJob(id string) (*Job, error) {
	row := s.QueryRow(`
		SELECT id, status, input_path, output_path, summary_path, params_json, error,
		       created_at, started_at, finished_at
		FROM jobs WHERE id = ?`, id)
	var j Job
	err := row.Scan(
		&j.ID, &j.Status, &j.InputPath, &j.OutputPath, &j.SummaryPath,
		&j.ParamsJSON, &j.Error, &j.CreatedAt, &j.StartedAt, &j.FinishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return &j, nil
}

// ListJobs returns all jobs, newest first.
func (s *Store) ListJobs() ([]*Job, error) {
	rows, err := s.Query(`
		SELECT id, status, input_path, output_path, summary_path, params_json, error,
		       created_at, started_at, finished_at
		FROM jobs ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(
			&j.ID, &j.Status, &j.InputPath, &j.OutputPath, &j.SummaryPath,
			&j.ParamsJSON, &j.Error, &j.CreatedAt, &j.StartedAt, &j.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		out = append(out, &j)
	}
	return out, rows.Err()
}

// RequeueStuck returns every job a previous process left unfinished.
// Jobs stuck in running state (after a crash or shutdown) are reset to
// queued; jobs persisted as queued but never dispatched are included
// as-is. Oldest first, so a restart preserves submission order.
func (s *Store) RequeueStuck() ([]string, error) {
	if _, err := s.Exec(`UPDATE jobs SET status = ? WHERE status = ?`, StatusQueued, StatusRunning); err != nil {
		return nil, err
	}
	rows, err := s.Query(
		`SELECT id FROM jobs WHERE status = ? ORDER BY created_at ASC, id ASC`, StatusQueued)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
