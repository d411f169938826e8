// Package history is the local record of detection runs. It lets the
// map resume a past job without re-uploading anything: the backend keeps
// the result files, this store keeps the job ids and bounds needed to
// point the map back at them.
package history

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kestrelgeo/landview/api"
	"github.com/kestrelgeo/landview/errors"
	"github.com/kestrelgeo/landview/geo"
	"github.com/kestrelgeo/landview/logger"
)

// Run is one recorded detection run.
type Run struct {
	JobID     string
	StartYear int
	Bounds    geo.Bounds
	Status    api.JobStatus
	EPSG      int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Page is one page of runs, newest first.
type Page struct {
	Runs  []Run
	Page  int
	Pages int
	Total int
}

// Store persists runs in a local SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore opens (and if needed creates) the database at path. Use
// ":memory:" for an ephemeral store.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open history database at %s", path)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debugw("History store opened", "path", path)
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS job_history (
		job_id     TEXT PRIMARY KEY,
		start_year INTEGER NOT NULL,
		west       REAL NOT NULL,
		south      REAL NOT NULL,
		east       REAL NOT NULL,
		north      REAL NOT NULL,
		status     TEXT NOT NULL,
		crs_epsg   INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_job_history_created ON job_history(created_at DESC);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return errors.Wrap(err, "failed to create history schema")
	}
	return nil
}

// RecordRun upserts a completed run. Satisfies view.RunRecorder.
func (s *Store) RecordRun(jobID string, startYear int, result *api.RunResult) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO job_history (job_id, start_year, west, south, east, north, status, crs_epsg, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			start_year = excluded.start_year,
			west = excluded.west, south = excluded.south,
			east = excluded.east, north = excluded.north,
			status = excluded.status,
			crs_epsg = excluded.crs_epsg,
			updated_at = excluded.updated_at`,
		jobID, startYear,
		result.Bounds.West, result.Bounds.South, result.Bounds.East, result.Bounds.North,
		string(api.JobStatusCompleted), result.CRS.EPSG, now, now,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to record run %s", jobID)
	}
	return nil
}

// Get returns one recorded run.
func (s *Store) Get(jobID string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT job_id, start_year, west, south, east, north, status, crs_epsg, created_at, updated_at
		FROM job_history WHERE job_id = ?`, jobID)

	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "job %s not in history", jobID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load job %s", jobID)
	}
	return r, nil
}

// List returns one page of runs, newest first. page is 1-based. An empty
// history yields an empty page, not an error.
func (s *Store) List(page, perPage int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM job_history`).Scan(&total); err != nil {
		return nil, errors.Wrap(err, "failed to count history")
	}

	pages := (total + perPage - 1) / perPage

	rows, err := s.db.Query(`
		SELECT job_id, start_year, west, south, east, north, status, crs_epsg, created_at, updated_at
		FROM job_history
		ORDER BY created_at DESC, job_id DESC
		LIMIT ? OFFSET ?`, perPage, (page-1)*perPage)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list history")
	}
	defer rows.Close()

	p := &Page{Page: page, Pages: pages, Total: total, Runs: []Run{}}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan history row")
		}
		p.Runs = append(p.Runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate history")
	}
	return p, nil
}

// Delete removes a run from the local history. The backend's copy of the
// job is untouched.
func (s *Store) Delete(jobID string) error {
	res, err := s.db.Exec(`DELETE FROM job_history WHERE job_id = ?`, jobID)
	if err != nil {
		return errors.Wrapf(err, "failed to delete job %s", jobID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read delete result")
	}
	if n == 0 {
		return errors.Wrapf(errors.ErrNotFound, "job %s not in history", jobID)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(sc scanner) (*Run, error) {
	var r Run
	var status string
	if err := sc.Scan(
		&r.JobID, &r.StartYear,
		&r.Bounds.West, &r.Bounds.South, &r.Bounds.East, &r.Bounds.North,
		&status, &r.EPSG, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	r.Status = api.JobStatus(status)
	return &r, nil
}
