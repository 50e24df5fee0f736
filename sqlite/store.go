// Package sqlite implements the default persistent storage for
// queuectl, backed by a single SQLite database file. The same file
// also hosts the configuration table and the worker directory, so one
// path is all a deployment needs.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"queuectl"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	command TEXT NOT NULL,
	state TEXT NOT NULL,
	attempts INTEGER NOT NULL DEFAULT 0,
	max_retries INTEGER NOT NULL,
	created INTEGER NOT NULL,
	updated INTEGER NOT NULL,
	run_at INTEGER
);
CREATE INDEX IF NOT EXISTS ix_jobs_claim ON jobs (state, run_at) WHERE state IN ('pending', 'failed');
CREATE INDEX IF NOT EXISTS ix_jobs_created ON jobs (created);
CREATE TABLE IF NOT EXISTS config (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS workers (
	pid INTEGER PRIMARY KEY,
	started INTEGER NOT NULL
);`

var jobColumns = []string{"id", "command", "state", "attempts", "max_retries", "created", "updated", "run_at"}

// Store represents a persistent SQLite storage implementation.
// It implements the queuectl.Store interface. All coordination between
// worker processes runs through transactions on the shared database
// file: Claim opens an immediate (write-locked) transaction, so a
// concurrent claimer blocks on the file lock until the first commits
// and then re-evaluates eligibility.
type Store struct {
	db  *sql.DB
	cfg queuectl.Config
}

// StoreOption is an options provider for Store.
type StoreOption func(*Store)

// NewStore opens (and creates, if necessary) the SQLite database at
// path. Call Start to create the schema before using the store.
func NewStore(path string, options ...StoreOption) (*Store, error) {
	// _txlock=immediate makes every transaction take the write lock at
	// BEGIN, which is what the Claim protocol relies on. busy_timeout
	// keeps concurrent processes waiting on the lock instead of
	// failing with SQLITE_BUSY.
	dsn := "file:" + path + "?_txlock=immediate&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer; funneling the process through one
	// connection avoids lock churn between our own goroutines.
	db.SetMaxOpenConns(1)

	st := &Store{db: db}
	for _, opt := range options {
		opt(st)
	}
	if st.cfg == nil {
		st.cfg = &Config{db: db}
	}
	return st, nil
}

// SetConfig overrides the configuration source. By default the store
// reads policy values from the config table in the same database file.
func SetConfig(cfg queuectl.Config) StoreOption {
	return func(s *Store) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// Start creates the schema.
func (s *Store) Start(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close the SQLite store.
func (s *Store) Close() error {
	return s.db.Close()
}

// Config returns the configuration store backed by the config table of
// the same database file.
func (s *Store) Config() queuectl.Config {
	return s.cfg
}

// Registry returns the worker directory backed by the workers table of
// the same database file.
func (s *Store) Registry() queuectl.Registry {
	return &Registry{db: s.db}
}

func (s *Store) runWithRetry(fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 15 * time.Second
	return backoff.Retry(fn, b)
}

// Add puts a new job into the queue in the pending state.
func (s *Store) Add(ctx context.Context, job *queuectl.Job) error {
	if job.MaxRetries <= 0 {
		n, err := queuectl.IntSetting(ctx, s.cfg, queuectl.KeyMaxRetries, queuectl.DefaultMaxRetries)
		if err != nil {
			return err
		}
		job.MaxRetries = n
	}
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.State = queuectl.StatePending
	job.Attempts = 0
	job.RunAt = nil
	job.UpdatedAt = now

	r := newJobRow(job)
	return s.runWithRetry(func() error {
		_, err := sq.Insert("jobs").
			Columns(jobColumns...).
			Values(r.ID, r.Command, r.State, r.Attempts, r.MaxRetries, r.Created, r.Updated, r.RunAt).
			RunWith(s.db).
			ExecContext(ctx)
		return err
	})
}

// Claim picks the oldest eligible job and moves it into the processing
// state, or returns nil if no job is eligible. The select and the
// update run in one write-locked transaction, so two concurrent
// claimers are totally ordered and can never obtain the same job.
func (s *Store) Claim(ctx context.Context) (*queuectl.Job, error) {
	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	r, err := scanJobRow(sq.Select(jobColumns...).
		From("jobs").
		Where(sq.Or{
			sq.Eq{"state": queuectl.StatePending},
			sq.And{
				sq.Eq{"state": queuectl.StateFailed},
				sq.LtOrEq{"run_at": now.UnixNano()},
			},
		}).
		OrderBy("created ASC", "id ASC").
		Limit(1).
		RunWith(tx).
		QueryRowContext(ctx))
	if err == sql.ErrNoRows {
		tx.Rollback()
		return nil, nil
	}
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	r.State = queuectl.StateProcessing
	r.Updated = now.UnixNano()
	_, err = sq.Update("jobs").
		Set("state", r.State).
		Set("updated", r.Updated).
		Where(sq.Eq{"id": r.ID}).
		RunWith(tx).
		ExecContext(ctx)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return r.toJob(), nil
}

// Complete marks the job as completed. Completing an already completed
// job is a harmless no-op.
func (s *Store) Complete(ctx context.Context, id string) error {
	return s.runWithRetry(func() error {
		res, err := sq.Update("jobs").
			Set("state", queuectl.StateCompleted).
			Set("updated", time.Now().UTC().UnixNano()).
			Where(sq.Eq{"id": id}).
			RunWith(s.db).
			ExecContext(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return backoff.Permanent(queuectl.ErrNotFound)
		}
		return nil
	})
}

// Fail records a failed execution attempt on job. The backoff base is
// re-read from configuration on every call so that changes take effect
// on the next failure, and the whole updated row is persisted in one
// write. Fail is not idempotent, so it deliberately runs single-shot
// instead of going through the retry wrapper.
func (s *Store) Fail(ctx context.Context, job *queuectl.Job) error {
	base, err := queuectl.IntSetting(ctx, s.cfg, queuectl.KeyBackoffBase, queuectl.DefaultBackoffBase)
	if err != nil {
		return err
	}
	queuectl.ApplyFailure(job, base, time.Now().UTC())

	r := newJobRow(job)
	res, err := sq.Update("jobs").
		Set("state", r.State).
		Set("attempts", r.Attempts).
		Set("updated", r.Updated).
		Set("run_at", r.RunAt).
		Where(sq.Eq{"id": r.ID}).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return queuectl.ErrNotFound
	}
	return nil
}

// Requeue moves a dead job back to pending in a single conditional
// update; it reports false if the job does not exist or is not dead.
func (s *Store) Requeue(ctx context.Context, id string) (bool, error) {
	res, err := sq.Update("jobs").
		Set("state", queuectl.StatePending).
		Set("attempts", 0).
		Set("updated", time.Now().UTC().UnixNano()).
		Set("run_at", nil).
		Where(sq.Eq{"id": id, "state": queuectl.StateDead}).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Lookup retrieves a single job in the store by its identifier.
func (s *Store) Lookup(ctx context.Context, id string) (*queuectl.Job, error) {
	r, err := scanJobRow(sq.Select(jobColumns...).
		From("jobs").
		Where(sq.Eq{"id": id}).
		RunWith(s.db).
		QueryRowContext(ctx))
	if err == sql.ErrNoRows {
		return nil, queuectl.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.toJob(), nil
}

// List returns matching jobs, oldest first.
func (s *Store) List(ctx context.Context, req *queuectl.ListRequest) ([]*queuectl.Job, error) {
	query := sq.Select(jobColumns...).
		From("jobs").
		OrderBy("created ASC", "id ASC")
	if req.State != "" {
		query = query.Where(sq.Eq{"state": req.State})
	}
	if req.Limit > 0 {
		query = query.Limit(uint64(req.Limit))
	}
	if req.Offset > 0 {
		query = query.Offset(uint64(req.Offset))
	}
	rows, err := query.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*queuectl.Job
	for rows.Next() {
		r, err := scanJobRow(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, r.toJob())
	}
	return jobs, rows.Err()
}

// Stats returns statistics about the jobs in the store.
func (s *Store) Stats(ctx context.Context) (*queuectl.Stats, error) {
	rows, err := sq.Select("state", "COUNT(*)").
		From("jobs").
		GroupBy("state").
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &queuectl.Stats{}
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		switch state {
		default:
			return nil, fmt.Errorf("sqlite: found unknown state %v", state)
		case queuectl.StatePending:
			stats.Pending = count
		case queuectl.StateProcessing:
			stats.Processing = count
		case queuectl.StateCompleted:
			stats.Completed = count
		case queuectl.StateFailed:
			stats.Failed = count
		case queuectl.StateDead:
			stats.Dead = count
		}
	}
	return stats, rows.Err()
}

// -- SQLite-internal representation of a job --

type jobRow struct {
	ID         string
	Command    string
	State      string
	Attempts   int
	MaxRetries int
	Created    int64
	Updated    int64
	RunAt      sql.NullInt64
}

func newJobRow(job *queuectl.Job) *jobRow {
	r := &jobRow{
		ID:         job.ID,
		Command:    job.Command,
		State:      job.State,
		Attempts:   job.Attempts,
		MaxRetries: job.MaxRetries,
		Created:    job.CreatedAt.UnixNano(),
		Updated:    job.UpdatedAt.UnixNano(),
	}
	if job.RunAt != nil {
		r.RunAt = sql.NullInt64{Int64: job.RunAt.UnixNano(), Valid: true}
	}
	return r
}

func (r *jobRow) toJob() *queuectl.Job {
	job := &queuectl.Job{
		ID:         r.ID,
		Command:    r.Command,
		State:      r.State,
		Attempts:   r.Attempts,
		MaxRetries: r.MaxRetries,
		CreatedAt:  time.Unix(0, r.Created).UTC(),
		UpdatedAt:  time.Unix(0, r.Updated).UTC(),
	}
	if r.RunAt.Valid {
		runAt := time.Unix(0, r.RunAt.Int64).UTC()
		job.RunAt = &runAt
	}
	return job
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJobRow(row rowScanner) (*jobRow, error) {
	r := new(jobRow)
	err := row.Scan(&r.ID, &r.Command, &r.State, &r.Attempts, &r.MaxRetries, &r.Created, &r.Updated, &r.RunAt)
	if err != nil {
		return nil, err
	}
	return r, nil
}
