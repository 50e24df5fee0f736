// Command e2e exercises the full queue end-to-end: it enqueues shell
// commands at a random rate, supervises a pool of real worker
// processes (re-executing itself with -worker for each pool slot) and
// logs queue statistics until it is interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"queuectl"
	"queuectl/sqlite"
)

func main() {
	var (
		dbpath      = flag.String("db", "e2e.db", "path to the queue database file")
		concurrency = flag.Int("c", 2, "number of worker processes")
		fillTime    = flag.Duration("fill-time", 2*time.Second, "interval in which new jobs get added")
		runTime     = flag.Duration("run-time", 3*time.Second, "maximum run time of a single job")
		logInterval = flag.Duration("log-interval", 1*time.Second, "log interval for stats")
		maxRetry    = flag.Int("max-retry", 2, "maximum number of retries per job")
		failureRate = flag.Float64("failure-rate", 0.05, "failure rate in the interval [0.0,1.0]")
		worker      = flag.Bool("worker", false, "run as a worker process (used internally)")
	)
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	rand.Seed(time.Now().UnixNano())

	if *worker {
		if err := runWorker(*dbpath); err != nil {
			log.Fatal(err)
		}
		return
	}

	st, err := sqlite.NewStore(*dbpath)
	if err != nil {
		log.Fatal(err)
	}
	defer st.Close()
	if err := st.Start(context.Background()); err != nil {
		log.Fatal(err)
	}

	exe, err := os.Executable()
	if err != nil {
		log.Fatal(err)
	}
	spawn := queuectl.CommandSpawner(exe, "-worker", "-db", *dbpath)
	s := queuectl.NewSupervisor(spawn, *concurrency)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errc := make(chan error, 1)

	go func() {
		errc <- s.Run(ctx)
	}()

	// Enqueue jobs
	go func() {
		errc <- enqueuer(ctx, st, *fillTime, *runTime, *failureRate, *maxRetry)
	}()

	// Print stats
	go logger(ctx, st, *logInterval)

	// Wait for e.g. Ctrl+C
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGTERM, syscall.SIGINT)
		log.Printf("signal %v", fmt.Sprint(<-c))
		cancel()
	}()

	if err := <-errc; err != nil && err != context.Canceled {
		log.Fatal(err)
	}
	log.Print("exiting")
}

func runWorker(dbpath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	st, err := sqlite.NewStore(dbpath)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Start(ctx); err != nil {
		return err
	}

	w := queuectl.NewWorker(st, queuectl.SetRegistry(st.Registry()))
	return w.Run(ctx)
}

func enqueuer(ctx context.Context, st *sqlite.Store, fillTime, runTime time.Duration, failureRate float64, maxRetry int) error {
	var cnt int

	fillTimeNanos := fillTime.Nanoseconds()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(rand.Int63n(fillTimeNanos)) * time.Nanosecond):
		}
		cnt++
		command := fmt.Sprintf("sleep %.2f", rand.Float64()*runTime.Seconds())
		if rand.Float64() < failureRate {
			command = "exit 1"
		}
		job := &queuectl.Job{
			ID:         fmt.Sprintf("e2e-%05d", cnt),
			Command:    command,
			MaxRetries: maxRetry,
		}
		if err := st.Add(ctx, job); err != nil {
			return err
		}
	}
}

func logger(ctx context.Context, st *sqlite.Store, d time.Duration) {
	t := time.NewTicker(d)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			ss, err := st.Stats(ctx)
			if err == nil {
				fmt.Printf("Pending=%6d Processing=%6d Completed=%6d Failed=%6d Dead=%6d\n",
					ss.Pending,
					ss.Processing,
					ss.Completed,
					ss.Failed,
					ss.Dead)
			}
		case <-ctx.Done():
			return
		}
	}
}
