package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go-scada-flow/internal/logging"
)

// SetupRoutes sets up the HTTP routes for the API server. Every route is
// read-only; valve commands never arrive over the network.
func (s *Server) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Plant state
	mux.HandleFunc("/api/state", s.corsMiddleware(s.GetState))
	mux.HandleFunc("/api/tanks", s.corsMiddleware(s.GetTanks))
	mux.HandleFunc("/api/pipes", s.corsMiddleware(s.GetPipes))
	mux.HandleFunc("/api/valves", s.corsMiddleware(s.GetValves))
	mux.HandleFunc("/api/status", s.corsMiddleware(s.GetStatus))

	// Rule diagnostics
	mux.HandleFunc("/api/diagnostics", s.corsMiddleware(s.GetDiagnostics))

	// Health check endpoint
	mux.HandleFunc("/api/health", s.corsMiddleware(s.HealthCheck))

	// API documentation endpoint
	mux.HandleFunc("/api/docs", s.corsMiddleware(s.APIDocs))

	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}

	return mux
}

// corsMiddleware adds CORS headers to allow cross-origin requests
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only GET method is allowed")
			return
		}

		next(w, r)
	}
}

// HealthCheck returns the health status of the API
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	state := s.sim.State()
	status := map[string]interface{}{
		"status":  "healthy",
		"service": "go-scada-flow",
		"version": "1.0.0",
		"network": state.NetworkID,
		"tick":    state.Tick,
		"running": s.sim.Running(),
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	}

	s.writeSuccess(w, status, "Service is healthy")
}

// APIDocs returns API documentation
func (s *Server) APIDocs(w http.ResponseWriter, r *http.Request) {
	endpoints := map[string]interface{}{
		"Plant State": map[string]interface{}{
			"GET /api/state":  "Full snapshot: tick, pump angle, tanks, valves and pipes",
			"GET /api/tanks":  "Tank amounts, capacities and levels",
			"GET /api/pipes":  "Pipe flow flags and waypoints",
			"GET /api/valves": "Valve positions",
			"GET /api/status": "Operator status lines, one per tank",
		},
		"Diagnostics": map[string]interface{}{
			"GET /api/diagnostics": "Per-rule firing diagnostics and plant warnings",
		},
		"Utility": map[string]interface{}{
			"GET /api/health": "Health check",
			"GET /api/docs":   "API documentation",
		},
	}
	if s.metrics != nil {
		endpoints["Metrics"] = map[string]interface{}{
			"GET /metrics": "Prometheus metrics",
		}
	}

	docs := map[string]interface{}{
		"title":       "Go SCADA Flow API",
		"version":     "1.0.0",
		"description": "Read-only observation API for the tank/valve/pipe flow simulation",
		"endpoints":   endpoints,
	}

	s.writeSuccess(w, docs, "")
}

// StartServer serves the API on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) StartServer(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.SetupRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info(ctx, "starting flow API server",
		logging.String("addr", addr),
		logging.String("docs", "/api/docs"),
		logging.String("health", "/api/health"),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.logger.Info(shutdownCtx, "flow API server stopped")
		return nil
	}
}
