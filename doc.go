// Package queuectl implements a durable, multi-process job queue for
// shell commands.
//
// Clients enqueue jobs via Store.Add. A pool of worker processes
// competes for work: each Worker repeatedly calls Store.Claim, which
// atomically selects the oldest eligible job and moves it into the
// processing state so that no two workers can ever obtain the same job.
// The worker executes the job's command through a Runner with a hard
// timeout and reports the outcome back to the store.
//
// A job is always in one of five states: pending (waiting to be
// claimed), processing (claimed by a worker), completed (finished with
// a zero exit status), failed (waiting out an exponential backoff delay
// before the next attempt), and dead (retries exhausted). Completed is
// terminal. Dead jobs form the dead-letter queue and only move back to
// pending through an explicit Store.Requeue.
//
// Failed executions are retried with exponential backoff. The delay
// before attempt n is backoff_base^n seconds, with the base read from
// the Config collaborator on every failure so that configuration
// changes take effect immediately. Once the attempt count reaches the
// job's max_retries, the job is declared dead.
//
// The Supervisor keeps a fixed number of worker processes alive. It
// spawns them through a Spawner, polls their liveness, replaces workers
// that exit without having been asked to, and coordinates a graceful
// pool-wide shutdown in which every worker may finish its in-flight job
// before exiting. StopAll is an independent shutdown path that signals
// every worker registered in the directory, for pools that were started
// in the background.
//
// Persistent storage is pluggable via the Store interface. The default
// engine is the SQLite-based store in the "sqlite" package; there are
// MySQL and MongoDB stores in the "mysql" and "mongodb" packages and an
// in-memory store for tests. Execution is at-least-once: a store must
// never lose a committed state transition, but a worker crash between
// executing a command and reporting its outcome can lead to a second
// execution after a requeue.
package queuectl
