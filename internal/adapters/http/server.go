package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/weave"
	"github.com/aretw0/weave/internal/logging"
	"github.com/aretw0/weave/internal/presentation/graph"
	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/schema"
	"github.com/go-chi/chi/v5"
)

// Host is the part of *weave.Host the control API drives.
type Host interface {
	Name() string
	Outputs() schema.Values
	SetInput(name string, v schema.Value) error
	View(fn func(g *domain.Graph))
	Procedures() []string
	Start(ctx context.Context, procedure string) (string, error)
	Stop(ctx context.Context, id string) error
	Instance(id string) (*domain.Snapshot, error)
	Instances() []*domain.Snapshot
	ViewInstance(id string, fn func(g *domain.Graph, active []string)) error
}

var _ Host = (*weave.Host)(nil)

// Server serves the host control API.
type Server struct {
	Host    Host
	Metrics http.Handler
	Logger  *slog.Logger
}

// Option configures the handler.
type Option func(*Server)

// WithMetrics mounts h on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.Metrics = h
	}
}

// WithLogger sets the logger for request failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.Logger = logger
	}
}

// NewHandler creates a new HTTP handler for the host.
func NewHandler(host Host, opts ...Option) http.Handler {
	s := &Server{Host: host, Logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/graph", s.GetGraph)
	r.Get("/outputs", s.GetOutputs)
	r.Put("/inputs/{name}", s.PutInput)
	r.Get("/procedures", s.ListProcedures)
	r.Post("/procedures/{name}/start", s.StartProcedure)
	r.Get("/instances", s.ListInstances)
	r.Get("/instances/{id}", s.GetInstance)
	r.Post("/instances/{id}/stop", s.StopInstance)
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "weave-http",
		"version": strings.TrimSpace(weave.Version),
		"graph":   s.Host.Name(),
	})
}

// GetGraph renders the top-level graph. ?format=markdown selects the
// description instead of the Mermaid diagram.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	var body string
	format := r.URL.Query().Get("format")
	s.Host.View(func(g *domain.Graph) {
		if format == "markdown" {
			body = graph.Describe(g)
			return
		}
		body = graph.GenerateMermaid(g, nil)
	})

	if format == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	fmt.Fprint(w, body)
}

// GetOutputs handles the GET /outputs request.
func (s *Server) GetOutputs(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Host.Outputs())
}

// PutInput assigns a top-level input slot. The body is a bare JSON scalar;
// the host casts it to the slot type.
func (s *Server) PutInput(w http.ResponseWriter, r *http.Request) {
	var raw any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.Logger.Warn("PutInput: invalid request body", "error", err)
		return
	}

	name := chi.URLParam(r, "name")
	if err := s.Host.SetInput(name, schema.FromGo(raw)); err != nil {
		s.fail(w, "PutInput", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListProcedures handles the GET /procedures request.
func (s *Server) ListProcedures(w http.ResponseWriter, r *http.Request) {
	names := s.Host.Procedures()
	if names == nil {
		names = []string{}
	}
	s.writeJSON(w, http.StatusOK, names)
}

// StartProcedure handles the POST /procedures/{name}/start request.
func (s *Server) StartProcedure(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	id, err := s.Host.Start(r.Context(), name)
	if err != nil {
		s.fail(w, "StartProcedure", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": id, "procedure": name})
}

// ListInstances handles the GET /instances request.
func (s *Server) ListInstances(w http.ResponseWriter, r *http.Request) {
	snaps := s.Host.Instances()
	if snaps == nil {
		snaps = []*domain.Snapshot{}
	}
	s.writeJSON(w, http.StatusOK, snaps)
}

// GetInstance returns an instance snapshot, or with ?format=mermaid its graph
// with the active steps highlighted.
func (s *Server) GetInstance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if r.URL.Query().Get("format") == "mermaid" {
		var body string
		err := s.Host.ViewInstance(id, func(g *domain.Graph, active []string) {
			body = graph.GenerateMermaid(g, &graph.GraphOverlay{Active: active})
		})
		if err != nil {
			s.fail(w, "GetInstance", err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, body)
		return
	}

	snap, err := s.Host.Instance(id)
	if err != nil {
		s.fail(w, "GetInstance", err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// StopInstance handles the POST /instances/{id}/stop request.
func (s *Server) StopInstance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Host.Stop(r.Context(), id); err != nil {
		s.fail(w, "StopInstance", err)
		return
	}
	snap, err := s.Host.Instance(id)
	if err != nil {
		s.fail(w, "StopInstance", err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("response encode failed", "error", err)
	}
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.Logger.Error(op+" failed", "error", err)
	} else {
		s.Logger.Debug(op+" rejected", "error", err)
	}
	http.Error(w, err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnknownProcedure),
		errors.Is(err, domain.ErrInstanceNotFound),
		errors.Is(err, domain.ErrPortNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNoStartStep):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
