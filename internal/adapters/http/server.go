package http

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/holdfast"
	"github.com/aretw0/holdfast/internal/logging"
	"github.com/aretw0/holdfast/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BasePath prefixes every REST route.
const BasePath = "/api/session-manager"

// APIKeyHeader carries the shared secret.
const APIKeyHeader = "X-Api-Key"

// Server exposes a holdfast.Service over HTTP.
type Server struct {
	svc      *holdfast.Service
	apiKey   string
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithAPIKey requires the X-Api-Key header on REST routes. Empty disables auth.
func WithAPIKey(key string) Option {
	return func(s *Server) {
		s.apiKey = key
	}
}

// WithGatherer sets the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates the HTTP handler for svc.
func NewHandler(svc *holdfast.Service, opts ...Option) http.Handler {
	s := &Server{
		svc:      svc,
		gatherer: prometheus.DefaultGatherer,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.getHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route(BasePath, func(r chi.Router) {
		// Observers authenticate with their admission token.
		r.Get("/ws", svc.Broadcaster().ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAPIKey)

			r.Get("/sessions", s.listSessions)
			r.Post("/sessions", s.createSession)
			r.Get("/sessions/by-name/{name}", s.getSessionByName)
			r.Get("/sessions/{id}", s.getSession)
			r.Put("/sessions/{id}", s.updateSession)
			r.Delete("/sessions/{id}", s.deleteSession)
			r.Post("/sessions/{id}/touch", s.touchSession)
			r.Post("/sessions/{id}/lock", s.acquireLock)
			r.Delete("/sessions/{id}/lock", s.releaseLock)

			r.Get("/lock", s.getLock)
			r.Post("/sweep", s.sweep)
			r.Post("/ws/token", s.issueToken)
		})
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+APIKeyHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" {
			got := r.Header.Get(APIKeyHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.apiKey)) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid api key"})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

type errorBody struct {
	Error string `json:"error"`
}

type sessionRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type lockStatus struct {
	Locked     bool       `json:"locked"`
	Holder     string     `json:"holder,omitempty"`
	AcquiredAt *time.Time `json:"acquiredAt,omitempty"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expiresIn"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrSessionExists):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidSession):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrStorageUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": holdfast.Version})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.svc.Sessions().List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var body sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	created, err := s.svc.Sessions().Create(r.Context(), domain.Session{ID: body.ID, Name: body.Name})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	found, err := s.svc.Sessions().Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) getSessionByName(w http.ResponseWriter, r *http.Request) {
	found, err := s.svc.Sessions().GetByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) updateSession(w http.ResponseWriter, r *http.Request) {
	var body sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	err := s.svc.Sessions().Update(r.Context(), domain.Session{ID: chi.URLParam(r, "id"), Name: body.Name})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) touchSession(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.TouchSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) acquireLock(w http.ResponseWriter, r *http.Request) {
	ok, err := s.svc.Locks().Acquire(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusConflict, errorBody{Error: "lock not acquired"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) releaseLock(w http.ResponseWriter, r *http.Request) {
	ok, err := s.svc.Locks().Release(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusConflict, errorBody{Error: "lock not held by session"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getLock(w http.ResponseWriter, r *http.Request) {
	state := s.svc.Locks().State()
	resp := lockStatus{Locked: state.Locked, Holder: state.Holder}
	if state.Locked {
		resp.AcquiredAt = &state.AcquiredAt
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) sweep(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.Janitor().Sweep(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) issueToken(w http.ResponseWriter, r *http.Request) {
	token, err := s.svc.Tokens().Issue(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresIn: int(s.svc.Tokens().TTL().Seconds()),
	})
}
