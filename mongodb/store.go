// Package mongodb implements MongoDB-backed persistent storage for
// queuectl. Claims use findAndModify, so a document moves from
// eligible to processing in one atomic step even with many competing
// workers.
package mongodb

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/globalsign/mgo"
	"github.com/globalsign/mgo/bson"
	"github.com/google/uuid"

	"queuectl"
)

const (
	// socketTimeout should be long enough that even a slow mongo server
	// will respond in that length of time. Since mongo servers ping themselves
	// every 10 seconds, we use a value just over 2 ping periods to allow
	// for delayed pings due to issues such as CPU starvation etc.
	socketTimeout = 21 * time.Second

	// dialTimeout should be representative of the upper bound of the
	// time taken to dial a mongo server from within the same cloud/private
	// network.
	dialTimeout = 30 * time.Second

	// defaultCollectionName is the name of the jobs collection in
	// MongoDB. It can be overridden by SetCollectionName. The config
	// and workers collections derive their names from it.
	defaultCollectionName = "queuectl_jobs"
)

// Store represents a MongoDB-based storage backend.
// It implements the queuectl.Store interface.
type Store struct {
	session        *mgo.Session
	db             *mgo.Database
	coll           *mgo.Collection
	collectionName string
	cfg            queuectl.Config
}

// StoreOption is an options provider for Store.
type StoreOption func(*Store)

// NewStore creates a new MongoDB-based storage backend.
func NewStore(mongodbURL string, options ...StoreOption) (*Store, error) {
	st := &Store{
		collectionName: defaultCollectionName,
	}
	for _, opt := range options {
		opt(st)
	}

	uri, err := url.Parse(mongodbURL)
	if err != nil {
		return nil, err
	}
	if uri.Path == "" || uri.Path == "/" {
		return nil, errors.New("mongodb: database missing in URL")
	}
	dbname := uri.Path[1:]

	st.session, err = mgo.DialWithTimeout(mongodbURL, dialTimeout)
	if err != nil {
		return nil, err
	}

	st.session.SetMode(mgo.Monotonic, true)
	st.session.SetSocketTimeout(socketTimeout)

	st.db = st.session.DB(dbname)
	st.coll = st.db.C(st.collectionName)

	if st.cfg == nil {
		st.cfg = &Config{coll: st.db.C(st.collectionName + "_config")}
	}
	return st, nil
}

// Close the MongoDB store.
func (s *Store) Close() error {
	s.session.Close()
	return nil
}

// SetCollectionName overrides the default collection name.
func SetCollectionName(collectionName string) StoreOption {
	return func(s *Store) {
		s.collectionName = collectionName
	}
}

// SetConfig overrides the configuration source. By default the store
// reads policy values from a config collection in the same database.
func SetConfig(cfg queuectl.Config) StoreOption {
	return func(s *Store) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// Config returns the configuration store backed by the same database.
func (s *Store) Config() queuectl.Config {
	return s.cfg
}

// Registry returns the worker directory backed by the same database.
func (s *Store) Registry() queuectl.Registry {
	return &Registry{coll: s.db.C(s.collectionName + "_workers")}
}

// Start creates the indices used by Claim and List.
func (s *Store) Start(ctx context.Context) error {
	if err := s.coll.EnsureIndexKey("state", "run_at"); err != nil {
		return err
	}
	return s.coll.EnsureIndexKey("created")
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
	return s.coll.Insert(newJob(job))
}

// Claim picks the oldest eligible job and moves it into the processing
// state, or returns nil if no job is eligible.
func (s *Store) Claim(ctx context.Context) (*queuectl.Job, error) {
	now := time.Now().UTC()
	change := mgo.Change{
		Update: bson.M{"$set": bson.M{
			"state":   queuectl.StateProcessing,
			"updated": now.UnixNano(),
		}},
		ReturnNew: true,
	}
	var j Job
	_, err := s.coll.Find(bson.M{"$or": []bson.M{
		{"state": queuectl.StatePending},
		{"state": queuectl.StateFailed, "run_at": bson.M{"$lte": now.UnixNano()}},
	}}).Sort("created", "_id").Apply(change, &j)
	if err == mgo.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return j.ToJob(), nil
}

// Complete marks the job as completed. Completing an already completed
// job is a harmless no-op.
func (s *Store) Complete(ctx context.Context, id string) error {
	err := s.coll.UpdateId(id, bson.M{"$set": bson.M{
		"state":   queuectl.StateCompleted,
		"updated": time.Now().UTC().UnixNano(),
	}})
	if err == mgo.ErrNotFound {
		return queuectl.ErrNotFound
	}
	return err
}

// Fail records a failed execution attempt on job.
func (s *Store) Fail(ctx context.Context, job *queuectl.Job) error {
	base, err := queuectl.IntSetting(ctx, s.cfg, queuectl.KeyBackoffBase, queuectl.DefaultBackoffBase)
	if err != nil {
		return err
	}
	queuectl.ApplyFailure(job, base, time.Now().UTC())

	j := newJob(job)
	err = s.coll.UpdateId(j.ID, bson.M{"$set": bson.M{
		"state":    j.State,
		"attempts": j.Attempts,
		"updated":  j.Updated,
		"run_at":   j.RunAt,
	}})
	if err == mgo.ErrNotFound {
		return queuectl.ErrNotFound
	}
	return err
}

// Requeue moves a dead job back to pending; it reports false if the
// job does not exist or is not dead.
func (s *Store) Requeue(ctx context.Context, id string) (bool, error) {
	err := s.coll.Update(
		bson.M{"_id": id, "state": queuectl.StateDead},
		bson.M{"$set": bson.M{
			"state":    queuectl.StatePending,
			"attempts": 0,
			"updated":  time.Now().UTC().UnixNano(),
			"run_at":   nil,
		}},
	)
	if err == mgo.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Lookup retrieves a single job in the store by its identifier.
func (s *Store) Lookup(ctx context.Context, id string) (*queuectl.Job, error) {
	var j Job
	err := s.coll.FindId(id).One(&j)
	if err == mgo.ErrNotFound {
		return nil, queuectl.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return j.ToJob(), nil
}

// List returns matching jobs, oldest first.
func (s *Store) List(ctx context.Context, req *queuectl.ListRequest) ([]*queuectl.Job, error) {
	query := bson.M{}
	if req.State != "" {
		query["state"] = req.State
	}
	var list []*Job
	err := s.coll.Find(query).Sort("created", "_id").Skip(req.Offset).Limit(req.Limit).All(&list)
	if err != nil {
		return nil, err
	}
	var jobs []*queuectl.Job
	for _, j := range list {
		jobs = append(jobs, j.ToJob())
	}
	return jobs, nil
}

// Stats returns statistics about the jobs in the store.
func (s *Store) Stats(ctx context.Context) (*queuectl.Stats, error) {
	pending, err := s.coll.Find(bson.M{"state": queuectl.StatePending}).Count()
	if err != nil {
		return nil, err
	}
	processing, err := s.coll.Find(bson.M{"state": queuectl.StateProcessing}).Count()
	if err != nil {
		return nil, err
	}
	completed, err := s.coll.Find(bson.M{"state": queuectl.StateCompleted}).Count()
	if err != nil {
		return nil, err
	}
	failed, err := s.coll.Find(bson.M{"state": queuectl.StateFailed}).Count()
	if err != nil {
		return nil, err
	}
	dead, err := s.coll.Find(bson.M{"state": queuectl.StateDead}).Count()
	if err != nil {
		return nil, err
	}
	return &queuectl.Stats{
		Pending:    pending,
		Processing: processing,
		Completed:  completed,
		Failed:     failed,
		Dead:       dead,
	}, nil
}

// -- MongoDB-internal representation of a job --

type Job struct {
	ID         string `bson:"_id"`
	Command    string
	State      string
	Attempts   int
	MaxRetries int `bson:"max_retries"`
	Created    int64
	Updated    int64
	RunAt      *int64 `bson:"run_at"`
}

func newJob(job *queuectl.Job) *Job {
	j := &Job{
		ID:         job.ID,
		Command:    job.Command,
		State:      job.State,
		Attempts:   job.Attempts,
		MaxRetries: job.MaxRetries,
		Created:    job.CreatedAt.UnixNano(),
		Updated:    job.UpdatedAt.UnixNano(),
	}
	if job.RunAt != nil {
		runAt := job.RunAt.UnixNano()
		j.RunAt = &runAt
	}
	return j
}

func (j *Job) ToJob() *queuectl.Job {
	job := &queuectl.Job{
		ID:         j.ID,
		Command:    j.Command,
		State:      j.State,
		Attempts:   j.Attempts,
		MaxRetries: j.MaxRetries,
		CreatedAt:  time.Unix(0, j.Created).UTC(),
		UpdatedAt:  time.Unix(0, j.Updated).UTC(),
	}
	if j.RunAt != nil {
		runAt := time.Unix(0, *j.RunAt).UTC()
		job.RunAt = &runAt
	}
	return job
}
