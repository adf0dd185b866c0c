// Package server provides the HTTP server for the taiji coaching UI.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ayusman/taiji/internal/app"
	"github.com/ayusman/taiji/internal/server/api"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	// App backs every /api route except health. Nil serves health and
	// static files only.
	App *app.App
	// Stream is the MJPEG source behind /api/stream. It is usually also the
	// App's render surface.
	Stream *StreamHub
	Logger *slog.Logger
}

// Server represents the HTTP server for the taiji application.
type Server struct {
	config      Config
	mux         *http.ServeMux
	start       time.Time
	logger      *slog.Logger
	calibration *api.CalibrationHandler
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		logger: logger.With("component", "server"),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if a := s.config.App; a != nil {
		s.calibration = api.NewCalibrationHandler(a.Session(), a.Calibration(), a, s.logger)
		s.mux.Handle("/api/calibration", s.calibration)

		sequences := api.NewSequenceHandler(a.Session())
		s.mux.Handle("/api/sequences", sequences)
		s.mux.Handle("/api/sequences/", sequences)

		s.mux.Handle("/api/segments/", api.NewSegmentHandler(a.Session(), a.Retarget(), a.Settings().Retarget.VideosDir, s.logger))

		// The socket is registered before the prefix so it is not routed
		// to the command handler.
		s.mux.Handle("/api/practice/ws", NewPracticeSocket(a, 0, s.logger))
		s.mux.Handle("/api/practice/", api.NewPracticeHandler(a, s.logger))

		coachHandler := api.NewCoachHandler(a.Coach())
		s.mux.Handle("/api/analysis", coachHandler)
		s.mux.Handle("/api/summary", coachHandler)

		s.mux.Handle("/api/events", NewEventsHandler(a.Session(), s.logger))
	}

	if s.config.Stream != nil {
		s.mux.Handle("/api/stream", s.config.Stream)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if a := s.config.App; a != nil {
		response["session"] = a.Session().ID()
		response["view"] = a.View()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		// Streams and sockets end with ctx instead of holding Shutdown open.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	if s.calibration != nil {
		s.calibration.Cancel()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}
