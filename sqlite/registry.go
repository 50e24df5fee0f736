package sqlite

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"

	"queuectl"
)

// Registry is the worker directory backed by the workers table. It
// implements the queuectl.Registry interface, so worker processes on
// the same host can find each other through the shared database file.
type Registry struct {
	db *sql.DB
}

// Register records w as an active worker, replacing any previous entry
// for the same pid.
func (r *Registry) Register(ctx context.Context, w *queuectl.WorkerInfo) error {
	_, err := sq.Insert("workers").
		Options("OR REPLACE").
		Columns("pid", "started").
		Values(w.PID, w.StartedAt.UnixNano()).
		RunWith(r.db).
		ExecContext(ctx)
	return err
}

// Unregister removes the entry for pid.
func (r *Registry) Unregister(ctx context.Context, pid int) error {
	_, err := sq.Delete("workers").
		Where(sq.Eq{"pid": pid}).
		RunWith(r.db).
		ExecContext(ctx)
	return err
}

// Active returns every registered worker, ordered by pid.
func (r *Registry) Active(ctx context.Context) ([]*queuectl.WorkerInfo, error) {
	rows, err := sq.Select("pid", "started").
		From("workers").
		OrderBy("pid ASC").
		RunWith(r.db).
		QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workers []*queuectl.WorkerInfo
	for rows.Next() {
		var pid int
		var started int64
		if err := rows.Scan(&pid, &started); err != nil {
			return nil, err
		}
		workers = append(workers, &queuectl.WorkerInfo{
			PID:       pid,
			StartedAt: time.Unix(0, started).UTC(),
		})
	}
	return workers, rows.Err()
}
