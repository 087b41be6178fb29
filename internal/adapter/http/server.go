package http

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/climate-data-pipeline/internal/adapter/artifact"
)

// servable lists the artifacts exposed under /data/{name}.
var servable = map[string]bool{
	artifact.RawData:            true,
	artifact.GlobalTrends:       true,
	artifact.CountryTrends:      true,
	artifact.AccelerationMatrix: true,
	artifact.CountryLocations:   true,
}

// Server exposes health, readiness, metrics, and the pipeline's JSON
// artifacts over HTTP.
type Server struct {
	httpServer *http.Server
	dataDir    string
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and
// /data/{name} routes. dataDir is the directory holding the JSON artifacts.
func NewServer(addr, dataDir string, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		dataDir: dataDir,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /data/{name}", s.handleData)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr, "data_dir", s.dataDir)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !servable[name] {
		sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "unknown artifact"})
		return
	}

	f, err := os.Open(filepath.Join(s.dataDir, name))
	if errors.Is(err, fs.ErrNotExist) {
		sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "artifact not generated yet"})
		return
	}
	if err != nil {
		s.logger.Error("open artifact", "name", name, "error", err)
		sharedobs.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "artifact unavailable"})
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.logger.Error("stat artifact", "name", name, "error", err)
		sharedobs.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "artifact unavailable"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	http.ServeContent(w, r, name, info.ModTime(), f)
}
