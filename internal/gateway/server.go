package gateway

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/gurnameh-99/fact-den/internal/feed"
	"github.com/gurnameh-99/fact-den/internal/ports"
	"github.com/gurnameh-99/fact-den/pkg/logger"
)

// Server exposes the feed core to the browser UI over JSON/HTTP.
type Server struct {
	feed      *feed.Service
	identity  ports.Identity
	directory ports.AuthorDirectory
	validate  *validator.Validate
	accessLog *log.Logger
	cors      string
}

// NewServer wires the HTTP surface.
func NewServer(feedSvc *feed.Service, identity ports.Identity, directory ports.AuthorDirectory, corsOrigin string) *Server {
	return &Server{
		feed:      feedSvc,
		identity:  identity,
		directory: directory,
		validate:  validator.New(),
		accessLog: logger.New("gateway"),
		cors:      corsOrigin,
	}
}

// Handler builds the router with the full middleware chain.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/api/auth/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/logout", s.handleLogout).Methods(http.MethodPost)

	r.HandleFunc("/api/me", s.handleGetAccount).Methods(http.MethodGet)
	r.HandleFunc("/api/me", s.handleUpdateAccount).Methods(http.MethodPut)

	r.HandleFunc("/api/posts", s.handleListPosts).Methods(http.MethodGet)
	r.HandleFunc("/api/posts", s.handleCreatePost).Methods(http.MethodPost)
	r.HandleFunc("/api/posts/{id:[0-9]+}", s.handleGetPost).Methods(http.MethodGet)
	r.HandleFunc("/api/posts/{id:[0-9]+}/comments", s.handleAddComment).Methods(http.MethodPost)
	r.HandleFunc("/api/posts/{id:[0-9]+}/vote", s.handleVote).Methods(http.MethodPost)
	r.HandleFunc("/api/posts/{id:[0-9]+}/expand", s.handleExpand).Methods(http.MethodPost)
	r.HandleFunc("/api/posts/{id:[0-9]+}/sources", s.handleSources).Methods(http.MethodGet)
	r.HandleFunc("/api/posts/{id:[0-9]+}/verdict/refresh", s.handleRefreshVerdict).Methods(http.MethodPost)

	return Chain(r,
		RecoverMiddleware(s.accessLog),
		RequestIDMiddleware,
		LoggingMiddleware(s.accessLog),
		CORSMiddleware(s.cors),
	)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

func writeError(w http.ResponseWriter, status int, msg string, retryable bool) {
	writeJSON(w, status, errorBody{Error: msg, Retryable: retryable})
}
