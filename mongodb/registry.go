package mongodb

import (
	"context"
	"time"

	"github.com/globalsign/mgo"
	"github.com/globalsign/mgo/bson"

	"queuectl"
)

// Registry is the worker directory backed by a workers collection. It
// implements the queuectl.Registry interface.
type Registry struct {
	coll *mgo.Collection
}

type workerDoc struct {
	PID     int `bson:"_id"`
	Started int64
}

// Register records w as an active worker, replacing any previous entry
// for the same pid.
func (r *Registry) Register(ctx context.Context, w *queuectl.WorkerInfo) error {
	_, err := r.coll.UpsertId(w.PID, &workerDoc{
		PID:     w.PID,
		Started: w.StartedAt.UnixNano(),
	})
	return err
}

// Unregister removes the entry for pid.
func (r *Registry) Unregister(ctx context.Context, pid int) error {
	err := r.coll.RemoveId(pid)
	if err == mgo.ErrNotFound {
		return nil
	}
	return err
}

// Active returns every registered worker, ordered by pid.
func (r *Registry) Active(ctx context.Context) ([]*queuectl.WorkerInfo, error) {
	var list []*workerDoc
	if err := r.coll.Find(bson.M{}).Sort("_id").All(&list); err != nil {
		return nil, err
	}
	var workers []*queuectl.WorkerInfo
	for _, d := range list {
		workers = append(workers, &queuectl.WorkerInfo{
			PID:       d.PID,
			StartedAt: time.Unix(0, d.Started).UTC(),
		})
	}
	return workers, nil
}
