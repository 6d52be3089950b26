// Package api serves the local UI: the single-page app, a proxy to the notes
// backend and a websocket feed of session and collection state.
package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zlnvch/notesync/api/ws"
	"github.com/zlnvch/notesync/guard"
	"github.com/zlnvch/notesync/hooks"
	"github.com/zlnvch/notesync/session"
)

type Config struct {
	// BackendURL is where /api/* requests are proxied to.
	BackendURL string
	// StaticDir holds the built single-page app. Empty disables it.
	StaticDir      string
	AllowedOrigins []string
}

type Deps struct {
	Sessions *session.Store
	Guard    *guard.Guard
	Notes    *hooks.Notes
	Teams    *hooks.Teams
}

type Server struct {
	router      *chi.Mux
	proxy       *httputil.ReverseProxy
	wsHandler   *ws.Handler
	wsUpgrader  websocket.Upgrader
	guard       *guard.Guard
	cfg         Config
	shutdownCtx context.Context
	logger      zerolog.Logger
}

// NewServer wires the routes and starts the websocket hub, which runs until
// shutdownCtx is done.
func NewServer(cfg Config, deps Deps, shutdownCtx context.Context, logger zerolog.Logger) (*Server, error) {
	backend, err := url.Parse(cfg.BackendURL)
	if err != nil || backend.Scheme == "" || backend.Host == "" {
		return nil, fmt.Errorf("invalid backend url %q", cfg.BackendURL)
	}

	logger = logger.With().Str("component", "api").Logger()

	hub := ws.NewHub(logger)
	go hub.Run(shutdownCtx)

	feed := newStateFeed(deps.Sessions, deps.Notes, deps.Teams, hub)
	feed.bind()
	wsHandler := ws.NewHandler(feed, hub, logger)

	s := &Server{
		router:      chi.NewRouter(),
		proxy:       newBackendProxy(backend, logger),
		wsHandler:   wsHandler,
		wsUpgrader:  wsHandler.NewWsUpgrader(cfg.AllowedOrigins),
		guard:       deps.Guard,
		cfg:         cfg,
		shutdownCtx: shutdownCtx,
		logger:      logger,
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	s.router.Handle("/api/*", s.proxy)

	s.router.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		s.wsHandler.ServeWS(s.wsUpgrader, w, r, s.shutdownCtx)
	})

	app := newSPAHandler(s.cfg.StaticDir)

	// Protected views
	s.router.Group(func(r chi.Router) {
		r.Use(s.guard.Middleware)
		r.Get("/dashboard", app.ServeHTTP)
		r.Get("/private-notes", app.ServeHTTP)
		r.Get("/groups", app.ServeHTTP)
		r.Get("/groups/*", app.ServeHTTP)
		r.Get("/note/*", app.ServeHTTP)
	})

	s.router.NotFound(app.ServeHTTP)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("Request")
	})
}
