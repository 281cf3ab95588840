package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/adapters/websocket"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/session"
)

// Server exposes the sessions of a Manager over HTTP.
type Server struct {
	Sessions *session.Manager

	logger    *slog.Logger
	gatherer  prometheus.Gatherer
	wsOptions []websocket.Option
	loadModel bool
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithGatherer sets the metrics source served on /metrics. Defaults to prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// WithTransportOptions configures the websocket transport of each connection.
func WithTransportOptions(opts ...websocket.Option) Option {
	return func(s *Server) {
		s.wsOptions = append(s.wsOptions, opts...)
	}
}

// WithoutModelRequest stops the server from requesting the model when a peer connects.
func WithoutModelRequest() Option {
	return func(s *Server) {
		s.loadModel = false
	}
}

// NewHandler creates the HTTP handler:
//
//	GET    /healthz
//	GET    /metrics
//	GET    /ws                 websocket, new session with a generated ID
//	GET    /ws/{sessionID}     websocket, new session with the given ID
//	GET    /sessions
//	GET    /sessions/{sessionID}
//	DELETE /sessions/{sessionID}
func NewHandler(mgr *session.Manager, opts ...Option) http.Handler {
	s := &Server{
		Sessions:  mgr,
		logger:    logging.NewNop(),
		gatherer:  prometheus.DefaultGatherer,
		loadModel: true,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.GetHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/ws", s.Connect)
	r.Get("/ws/{sessionID}", s.Connect)
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Get("/{sessionID}", s.GetSession)
		r.Delete("/{sessionID}", s.DeleteSession)
	})
	return r
}

// GetHealth handles GET /healthz.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": len(s.Sessions.List()),
	})
}

// Connect upgrades the request to a websocket and serves one session over it
// until the peer disconnects.
func (s *Server) Connect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, err := s.Sessions.Open(ctx, chi.URLParam(r, "sessionID"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrSessionExists) {
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		s.logger.Warn("Connect: session not opened", "err", err)
		return
	}
	id := sess.ID()
	defer func() {
		if err := s.Sessions.Close(context.WithoutCancel(ctx), id); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			s.logger.Warn("Connect: session close failed", "session_id", id, "err", err)
		}
	}()

	transport, err := websocket.Upgrade(w, r, s.wsOptions...)
	if err != nil {
		s.logger.Warn("Connect: upgrade failed", "session_id", id, "err", err)
		return
	}
	s.logger.Info("Peer connected", "session_id", id, "remote_addr", r.RemoteAddr)

	if s.loadModel {
		go func() {
			if _, err := sess.LoadModel(ctx); err != nil && !errors.Is(err, domain.ErrDispatcherClosed) {
				s.logger.Warn("Initial model request failed", "session_id", id, "err", err)
			}
		}()
	}

	if err := sess.Run(ctx, transport); err != nil {
		s.logger.Warn("Session transport ended with error", "session_id", id, "err", err)
	}
	s.logger.Info("Peer disconnected", "session_id", id)
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": s.Sessions.List()})
}

// SessionView is the JSON view of a live session.
type SessionView struct {
	ID        string          `json:"id"`
	Revision  int64           `json:"revision"`
	Selected  []string        `json:"selected"`
	Emitters  int             `json:"feedbackEmitters"`
	Pending   int             `json:"pendingRequests"`
	Published *domain.Element `json:"model,omitempty"`
}

// GetSession handles GET /sessions/{sessionID}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, SessionView{
		ID:        sess.ID(),
		Revision:  sess.Engine().Revision(),
		Selected:  sess.Selection().Selected(),
		Emitters:  sess.Feedback().Emitters(),
		Pending:   sess.Dispatcher().PendingCount(),
		Published: sess.Engine().Published(),
	})
}

// DeleteSession handles DELETE /sessions/{sessionID}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	err := s.Sessions.Close(r.Context(), chi.URLParam(r, "sessionID"))
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		s.logger.Error("DeleteSession failed", "err", err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Response encode failed", "err", err)
	}
}
