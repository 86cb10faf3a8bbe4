// Package health serves the node status endpoint.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/bft-labs/frameship/internal/app"
	"github.com/bft-labs/frameship/internal/ports"
)

// Path is where the status document is served.
const Path = "/healthz"

const shutdownTimeout = 5 * time.Second

// Report is the status document.
type Report struct {
	State      string        `json:"state"`
	Since      time.Time     `json:"since"`
	Healthy    bool          `json:"healthy"`
	Controller *app.Snapshot `json:"controller,omitempty"`
}

// Reporter produces the current report.
type Reporter func() Report

// Server exposes a Reporter over HTTP.
type Server struct {
	addr   string
	report Reporter
	logger ports.Logger
}

// NewServer creates a status server listening on addr.
func NewServer(addr string, report Reporter, logger ports.Logger) *Server {
	return &Server{addr: addr, report: report, logger: logger}
}

// Handler returns the HTTP handler for the status endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+Path, s.serveHealth)
	return mux
}

func (s *Server) serveHealth(w http.ResponseWriter, _ *http.Request) {
	r := s.report()
	w.Header().Set("Content-Type", "application/json")
	if !r.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(r); err != nil {
		s.logger.Debug("health response write failed", ports.Err(err))
	}
}

// Serve listens until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("health endpoint listening", ports.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
