// Package http exposes the script editor and conversation API over REST.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/urbangroup/botflow/internal/logging"
	"github.com/urbangroup/botflow/pkg/compiler"
	"github.com/urbangroup/botflow/pkg/engine"
	"github.com/urbangroup/botflow/pkg/graph"
	"github.com/urbangroup/botflow/pkg/ports"
	"github.com/urbangroup/botflow/pkg/script"
	"github.com/urbangroup/botflow/pkg/session"
	"github.com/urbangroup/botflow/pkg/validate"
)

// Server wires the engine, stores and session manager into HTTP handlers.
type Server struct {
	scripts  ports.ScriptStore
	sessions *session.Manager
	engine   *engine.Engine
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates the HTTP server facade.
func NewServer(scripts ports.ScriptStore, sessions *session.Manager, eng *engine.Engine, opts ...Option) *Server {
	s := &Server{
		scripts:  scripts,
		sessions: sessions,
		engine:   eng,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router. Extra middleware (e.g. metrics) is applied
// before the routes.
func (s *Server) Handler(mw ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	for _, m := range mw {
		r.Use(m)
	}

	r.Get("/health", s.getHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/scripts", func(r chi.Router) {
			r.Get("/", s.listScripts)
			r.Post("/validate", s.validateScript)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getScript)
				r.Put("/", s.putScript)
				r.Delete("/", s.deleteScript)
				r.Get("/graph", s.getGraph)
				r.Put("/graph", s.putGraph)
			})
		})
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.listSessions)
			r.Post("/", s.startSession)
			r.Route("/{phone}", func(r chi.Router) {
				r.Get("/", s.getSession)
				r.Delete("/", s.deleteSession)
				r.Post("/messages", s.postMessage)
				r.Post("/transition", s.postTransition)
			})
		})
	})

	return r
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// -- Scripts --

func (s *Server) listScripts(w http.ResponseWriter, r *http.Request) {
	scripts, err := s.scripts.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scripts)
}

func (s *Server) getScript(w http.ResponseWriter, r *http.Request) {
	sc, err := s.scripts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

// saveResponse returns the stored script together with the validation
// outcome, so the editor can surface warnings on a successful save.
type saveResponse struct {
	Script   *script.Script   `json:"script"`
	Warnings []validate.Issue `json:"warnings,omitempty"`
}

func (s *Server) putScript(w http.ResponseWriter, r *http.Request) {
	var sc script.Script
	if err := json.NewDecoder(r.Body).Decode(&sc); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	sc.ID = chi.URLParam(r, "id")

	s.saveValidated(w, r, &sc)
}

func (s *Server) saveValidated(w http.ResponseWriter, r *http.Request, sc *script.Script) {
	result := validate.Check(sc)
	if !result.OK() {
		writeJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	if err := s.scripts.Put(r.Context(), sc); err != nil {
		s.writeError(w, err)
		return
	}
	stored, err := s.scripts.Get(r.Context(), sc.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saveResponse{Script: stored, Warnings: result.Warnings})
}

func (s *Server) deleteScript(w http.ResponseWriter, r *http.Request) {
	if err := s.scripts.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) validateScript(w http.ResponseWriter, r *http.Request) {
	var sc script.Script
	if err := json.NewDecoder(r.Body).Decode(&sc); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, validate.Check(&sc))
}

func (s *Server) getGraph(w http.ResponseWriter, r *http.Request) {
	sc, err := s.scripts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	g, err := compiler.Decompile(sc)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) putGraph(w http.ResponseWriter, r *http.Request) {
	var g graph.Graph
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	g.ScriptID = id

	// Compile against the stored script so unresolved option targets keep
	// their previous next_step.
	prev, err := s.scripts.Get(r.Context(), id)
	if err != nil && !errors.Is(err, script.ErrScriptNotFound) {
		s.writeError(w, err)
		return
	}

	sc, err := compiler.Compile(&g, prev)
	if err != nil {
		var structural *compiler.StructuralError
		if errors.As(err, &structural) {
			writeJSON(w, http.StatusUnprocessableEntity, structural)
			return
		}
		s.writeError(w, err)
		return
	}

	s.saveValidated(w, r, sc)
}

// -- Sessions --

type startSessionRequest struct {
	Phone    string `json:"phone"`
	ScriptID string `json:"script_id"`
}

type sessionResponse struct {
	Session *script.Session `json:"session"`
	Reply   *engine.Reply   `json:"reply,omitempty"`
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	var body startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Phone == "" || body.ScriptID == "" {
		http.Error(w, "phone and script_id are required", http.StatusBadRequest)
		return
	}

	sess, reply, err := s.engine.StartSession(r.Context(), body.Phone, body.ScriptID)
	if err != nil {
		// A failed session still lands in the store for the diagnostics view.
		if sess != nil && sess.Status == script.StatusFailed {
			if saveErr := s.sessions.Start(r.Context(), sess); saveErr != nil {
				s.logger.Error("failed to persist failed session", "phone", sess.Phone, "err", saveErr)
			}
		}
		s.writeError(w, err)
		return
	}
	if err := s.sessions.Start(r.Context(), sess); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{Session: sess, Reply: reply})
}

type messageRequest struct {
	Text string `json:"text"`
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	var body messageRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	phone := chi.URLParam(r, "phone")

	var reply *engine.Reply
	sess, err := s.sessions.Transition(r.Context(), phone, func(ctx context.Context, cur *script.Session) (*script.Session, error) {
		next, rep, err := s.engine.HandleMessage(ctx, cur, body.Text)
		reply = rep
		return next, err
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: sess, Reply: reply})
}

type transitionRequest struct {
	Target string `json:"target"`
}

func (s *Server) postTransition(w http.ResponseWriter, r *http.Request) {
	var body transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Target == "" {
		http.Error(w, "target is required", http.StatusBadRequest)
		return
	}
	phone := chi.URLParam(r, "phone")

	var reply *engine.Reply
	sess, err := s.sessions.Transition(r.Context(), phone, func(ctx context.Context, cur *script.Session) (*script.Session, error) {
		next, rep, err := s.engine.InjectTransition(ctx, cur, body.Target)
		reply = rep
		return next, err
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: sess, Reply: reply})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	phones, err := s.sessions.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, phones)
}

// getSession serves the diagnostics view: current state plus the full
// event log.
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Load(r.Context(), chi.URLParam(r, "phone"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), chi.URLParam(r, "phone")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// -- Helpers --

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, script.ErrScriptNotFound), errors.Is(err, script.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrScriptInactive), errors.Is(err, engine.ErrSessionNotActive):
		status = http.StatusConflict
	default:
		var dangling *engine.DanglingTargetError
		var cycle *engine.SkipCycleError
		if errors.As(err, &dangling) || errors.As(err, &cycle) {
			status = http.StatusUnprocessableEntity
		}
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
