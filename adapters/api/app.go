// Package api exposes group coherence runs over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"groupcoh/internal"
	"groupcoh/internal/coherence"
	"groupcoh/internal/config"
)

const (
	serverReadTimeout  = 2 * time.Minute
	serverWriteTimeout = 30 * time.Minute
	serverIdleTimeout  = 2 * time.Minute
)

// App is the HTTP front end of a coherence engine
type App struct {
	router *chi.Mux
	engine *coherence.Engine
	config config.ServerConfig
	logger *internal.Logger
}

// NewApp creates the router and registers every route.
func NewApp(engine *coherence.Engine, cfg config.ServerConfig, logger *internal.Logger) *App {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	app := &App{
		router: chi.NewRouter(),
		engine: engine,
		config: cfg,
		logger: logger.With("api"),
	}

	app.setupMiddleware()
	app.setupRoutes()
	return app
}

// setupMiddleware configures HTTP middleware
func (a *App) setupMiddleware() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
}

// setupRoutes configures the application routes
func (a *App) setupRoutes() {
	a.router.Get("/healthz", a.handleHealth)

	a.router.Route("/api/coherence", func(r chi.Router) {
		r.Use(a.limitBody)
		r.Post("/group", a.handleGroup)
		r.Post("/dual", a.handleDual)
	})
}

// Handler returns the routed handler.
func (a *App) Handler() http.Handler {
	return a.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (a *App) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         ":" + a.config.Port,
		Handler:      a.router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening on :%s", a.config.Port)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func (a *App) limitBody(next http.Handler) http.Handler {
	limit := int64(a.config.MaxBodyMB) << 20
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes the given value as JSON and writes it with status.
func (a *App) writeJSON(w http.ResponseWriter, status int, value interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(value); err != nil {
		a.logger.Error("failed to encode JSON response: %v", err)
	}
}
