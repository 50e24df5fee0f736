// Package server implements a small web UI for watching a queue. It
// serves static assets from a public directory and pushes queue state
// to browsers over a WebSocket.
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"queuectl"
)

// Server is a simple web server with a WebSocket backend.
type Server struct {
	store    queuectl.Store
	registry queuectl.Registry
	hub      *hub
}

// New initializes a new Server. The registry may be nil, in which case
// the worker list stays empty.
func New(store queuectl.Store, registry queuectl.Registry) *Server {
	return &Server{
		store:    store,
		registry: registry,
		hub:      newHub(),
	}
}

// Serve initializes the mux and starts the web server at the given address.
func (srv *Server) Serve(addr string) error {
	r := http.NewServeMux()
	r.Handle("/ws", wsserver{store: srv.store, hub: srv.hub})
	r.Handle("/", http.FileServer(http.Dir("public")))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.hub.run(ctx)
	go srv.watch(ctx)
	return http.ListenAndServe(addr, r)
}

// State is the current state of the job queue.
type State struct {
	Type       string                 `json:"type"`
	Stats      *queuectl.Stats        `json:"stats,omitempty"`
	Workers    []*queuectl.WorkerInfo `json:"workers,omitempty"`
	Pending    []*queuectl.Job        `json:"pending,omitempty"`
	Processing []*queuectl.Job        `json:"processing,omitempty"`
	Failed     []*queuectl.Job        `json:"failed,omitempty"`
	Dead       []*queuectl.Job        `json:"dead,omitempty"`
}

// watch periodically collects queue state and broadcasts it to all
// connected clients.
func (srv *Server) watch(ctx context.Context) {
	t := time.NewTicker(1 * time.Second)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			state, err := srv.collect(ctx)
			if err != nil {
				log.Printf("queuectl: ui state: %v", err)
				continue
			}
			payload, err := json.Marshal(state)
			if err != nil {
				log.Printf("queuectl: ui state: %v", err)
				continue
			}
			srv.hub.broadcast <- payload
		case <-ctx.Done():
			return
		}
	}
}

func (srv *Server) collect(ctx context.Context) (*State, error) {
	state := &State{Type: "SET_STATE"}
	stats, err := srv.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	state.Stats = stats
	if srv.registry != nil {
		workers, err := srv.registry.Active(ctx)
		if err != nil {
			return nil, err
		}
		state.Workers = workers
	}
	state.Pending, err = srv.store.List(ctx, &queuectl.ListRequest{State: queuectl.StatePending})
	if err != nil {
		return nil, err
	}
	state.Processing, err = srv.store.List(ctx, &queuectl.ListRequest{State: queuectl.StateProcessing})
	if err != nil {
		return nil, err
	}
	state.Failed, err = srv.store.List(ctx, &queuectl.ListRequest{State: queuectl.StateFailed, Limit: 10})
	if err != nil {
		return nil, err
	}
	state.Dead, err = srv.store.List(ctx, &queuectl.ListRequest{State: queuectl.StateDead, Limit: 10})
	if err != nil {
		return nil, err
	}
	return state, nil
}
