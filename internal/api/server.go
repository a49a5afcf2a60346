package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/trustfit/internal/session"
	"github.com/MikeSquared-Agency/trustfit/internal/trust"
)

// Sessions is the session.Manager surface served over HTTP.
type Sessions interface {
	Ingest(ctx context.Context, sessionID string, performance, feedback int) (session.Update, error)
	Estimate(sessionID string) (session.Snapshot, error)
	Reset(sessionID string) error
	Sessions() []string
}

// History reads persisted estimates. Optional.
type History interface {
	ListEstimates(ctx context.Context, sessionID string, limit int) ([]session.Update, error)
	GetParameters(ctx context.Context, sessionID string) (trust.Parameters, int, error)
}

// Transport reports the health of the event bus connection.
type Transport interface {
	Connected() bool
}

type Server struct {
	router    *chi.Mux
	port      int
	sessions  Sessions
	history   History
	transport Transport
}

func NewServer(port int, apiToken string, sessions Sessions, history History) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		port:     port,
		sessions: sessions,
		history:  history,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/trustfit/status", s.status)

	router.Route("/api/v1/sessions", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Get("/", s.listSessions)
		r.Post("/{id}/observations", s.ingest)
		r.Get("/{id}/estimate", s.estimate)
		r.Get("/{id}/history", s.listHistory)
		r.Get("/{id}/parameters", s.storedParameters)
		r.Delete("/{id}", s.reset)
	})

	return s
}

// SetTransport makes the status endpoint report the event bus state.
func (s *Server) SetTransport(t Transport) {
	s.transport = t
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"service":  "trustfit",
		"status":   "running",
		"sessions": len(s.sessions.Sessions()),
	}
	if s.transport != nil {
		nats := "disconnected"
		if s.transport.Connected() {
			nats = "connected"
		}
		body["nats"] = nats
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
