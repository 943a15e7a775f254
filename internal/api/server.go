// Package api provides the HTTP handlers for viewsmith: the layout
// endpoints, the SSE stream and the session history reads.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"viewsmith/internal/history"
	"viewsmith/internal/middleware"
	"viewsmith/internal/session"
	"viewsmith/internal/store"
)

// defaultSessionID names the session used when a request carries none.
const defaultSessionID = "default"

// Options tunes the server beyond its core dependencies.
type Options struct {
	// AllowedOrigins feeds the CORS middleware. Empty means any origin.
	AllowedOrigins []string

	// HistoryWindow caps chat_history responses. Zero returns everything.
	HistoryWindow int
}

// Server holds the handler dependencies.
type Server struct {
	executor *session.Executor
	db       *store.Store
	history  *history.Store
	opts     Options
}

// NewServer wires the API over an executor, the store and the history log.
func NewServer(executor *session.Executor, db *store.Store, hist *history.Store, opts Options) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{executor: executor, db: db, history: hist, opts: opts}
}

// Routes builds the router with the global middleware chain.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(s.opts.AllowedOrigins))

	r.Post("/ai_layout", s.handleLayout)
	r.Get("/ai_layout_stream", s.handleLayoutStream)
	r.Get("/chat_history", s.handleChatHistory)
	r.Get("/last_view", s.handleLastView)

	return r
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
