// Package server exposes the HTTP surface: registration and login, the
// websocket endpoint, static files and a liveness check.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/christopherjohns/chatterbox/internal/chat"
	"github.com/christopherjohns/chatterbox/internal/config"
	"github.com/christopherjohns/chatterbox/internal/directory"
	"github.com/christopherjohns/chatterbox/internal/history"
	"github.com/christopherjohns/chatterbox/internal/room"
	"github.com/christopherjohns/chatterbox/internal/ws"
	"github.com/redis/go-redis/v9"
	"nhooyr.io/websocket"
)

const shutdownTimeout = 5 * time.Second

// Server is the chatterbox HTTP server and the chat components behind it.
type Server struct {
	cfg     *config.Config
	mux     *http.ServeMux
	handler http.Handler
	static  http.Handler

	users *directory.Directory
	rooms *room.Store
	conns *ws.ConnManager

	histStore history.Store
}

// Option configures a Server.
type Option func(*Server)

// WithRedis stores room history in Redis instead of process memory.
func WithRedis(client redis.Cmdable) Option {
	return func(s *Server) {
		s.histStore = history.NewRedis(client, s.cfg.HistoryLimit)
	}
}

// New creates a Server from the given configuration.
func New(cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		cfg: cfg,
		mux: http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.histStore == nil {
		s.histStore = history.NewMemory(cfg.HistoryLimit)
	}

	s.users = directory.New(cfg.UsersFile, cfg.RefreshInterval.Std())
	s.rooms = room.NewStore(s.histStore)
	s.conns = ws.NewConnManager()
	coord := chat.NewCoordinator(chat.NewRegistry(), s.rooms, ws.NewEmitter(s.conns))
	wsHandler := ws.NewHandler(s.conns, coord, s.acceptOptions())

	if cfg.StaticDir != "" {
		if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
			s.static = http.FileServer(http.Dir(cfg.StaticDir))
		}
	}

	s.routes(wsHandler)
	s.handler = s.withCORS(s.mux)
	return s
}

// acceptOptions derives websocket origin checking from the configured
// CORS origin.
func (s *Server) acceptOptions() *websocket.AcceptOptions {
	if s.cfg.AllowedOrigin == "*" {
		return &websocket.AcceptOptions{InsecureSkipVerify: true}
	}
	if u, err := url.Parse(s.cfg.AllowedOrigin); err == nil && u.Host != "" {
		return &websocket.AcceptOptions{OriginPatterns: []string{u.Host}}
	}
	return &websocket.AcceptOptions{OriginPatterns: []string{s.cfg.AllowedOrigin}}
}

func (s *Server) routes(wsHandler http.Handler) {
	s.mux.Handle("GET /ws", wsHandler)
	s.mux.HandleFunc("POST /register", s.handleRegister)
	s.mux.HandleFunc("POST /login", s.handleLogin)
	s.mux.HandleFunc("/", s.handleRoot)
}

// Run loads the user directory, starts its refresh loop and serves HTTP
// until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if err := s.users.Refresh(); err != nil {
		return fmt.Errorf("load user directory: %w", err)
	}
	go s.users.Run(ctx)

	httpSrv := &http.Server{
		Addr:    s.cfg.ListenAddr,
		Handler: s.handler,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Print("shutting down")
	s.conns.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, "chatterbox is running")
		return
	}
	if s.static != nil {
		s.static.ServeHTTP(w, r)
		return
	}
	http.NotFound(w, r)
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body.", http.StatusBadRequest)
		return
	}

	err := s.users.Register(req.Username, req.Password, req.Nickname)
	switch {
	case errors.Is(err, directory.ErrInvalidInput):
		http.Error(w, "All fields are required.", http.StatusBadRequest)
	case errors.Is(err, directory.ErrAlreadyExists):
		http.Error(w, "Username already taken.", http.StatusBadRequest)
	case err != nil:
		log.Printf("server: registration failed: %v", err)
		http.Error(w, "Registration failed.", http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, "Registration successful.")
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body.", http.StatusBadRequest)
		return
	}

	cred, err := s.users.Verify(req.Username, req.Password)
	if err != nil {
		http.Error(w, "Invalid credentials.", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"nickname": cred.Nickname})
}
