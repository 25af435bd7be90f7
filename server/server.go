// Package server exposes agent.Runner over HTTP: a chi router answering
// POST /v1/agents/{name}/run with Server-Sent Events, one frame per
// agent.Event, per spec's server/CLI surface.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/agentflowhq/agentflow/agent"
	"github.com/agentflowhq/agentflow/registry"
	"github.com/agentflowhq/agentflow/server/ws"
)

// RunRequest is the POST body for a run.
type RunRequest struct {
	Query     string              `json:"query"`
	MaxSteps  int                 `json:"max_steps,omitempty"`
	Debug     bool                `json:"debug,omitempty"`
	TracePath string              `json:"trace_path,omitempty"`
}

// Server wires a named agent.Runner registry onto a chi router.
type Server struct {
	Router  chi.Router
	runners registry.Registry[*agent.Runner]
}

// Config configures a Server.
type Config struct {
	// Runners looks up a Runner by the {name} path parameter.
	Runners registry.Registry[*agent.Runner]
	// JWTSecret, when non-empty, wraps every /v1 route in bearer-token
	// auth (see AuthMiddleware).
	JWTSecret string
	// EnableWS mounts the gorilla/websocket gateway at /v1/ws alongside
	// the SSE endpoint.
	EnableWS bool
}

// New builds a Server. The returned Router can be mounted directly with
// http.ListenAndServe or nested under another chi router.
func New(cfg Config) *Server {
	s := &Server{runners: cfg.Runners}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(v1 chi.Router) {
		if cfg.JWTSecret != "" {
			v1.Use(AuthMiddleware(cfg.JWTSecret))
		}
		v1.Post("/agents/{name}/run", s.handleRun)
		if cfg.EnableWS {
			v1.Handle("/ws", ws.New(cfg.Runners))
		}
	})

	s.Router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	runner, ok := s.runners.Get(name)
	if !ok {
		http.Error(w, fmt.Sprintf(`{"error":"unknown agent %q"}`, name), http.StatusNotFound)
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, `{"error":"query is required"}`, http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, `{"error":"streaming unsupported"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	state := agent.NewState(req.Query, runner.Tools(), agent.DefaultCompletionOptions(), nil, "")
	opts := agent.RunOptions{MaxSteps: req.MaxSteps, Debug: req.Debug, TracePath: req.TracePath}

	ctx := r.Context()
	_, err := runner.RunWithEvents(ctx, state, opts, func(ev agent.Event) {
		writeSSE(w, flusher, ev)
	})
	if err != nil {
		writeSSE(w, flusher, agent.Event{Kind: agent.EventAgentFailed, Error: err.Error()})
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, ev agent.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, payload)
	flusher.Flush()
}

// ListenAndServe starts an HTTP server on addr, shutting down cleanly when
// ctx is cancelled.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
