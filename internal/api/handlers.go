package api

import (
	"encoding/json"
	"net/http"
	"time"

	"go-scada-flow/internal/engine"
	"go-scada-flow/internal/logging"
	"go-scada-flow/internal/models"
)

// Plant is the read surface the API serves. *simulation.Simulator satisfies it.
type Plant interface {
	State() models.State
	Inspect() (models.State, []engine.RuleDiagnostic)
	Running() bool
}

// Option configures a Server
type Option func(*Server)

// WithMetrics mounts a Prometheus handler at /metrics
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithLogger sets the server logger
func WithLogger(l logging.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server represents the API server
type Server struct {
	sim     Plant
	metrics http.Handler
	logger  logging.Logger
	started time.Time
}

// NewServer creates a new API server over the given plant
func NewServer(sim Plant, opts ...Option) *Server {
	s := &Server{
		sim:     sim,
		logger:  logging.Noop(),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Response structures

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

type StateResponse struct {
	models.State
	Running bool `json:"running"`
}

type TankInfo struct {
	models.TankState
	Percent float64 `json:"percent"`
	Empty   bool    `json:"empty"`
	Full    bool    `json:"full"`
}

type TankListResponse struct {
	Tick  uint64     `json:"tick"`
	Tanks []TankInfo `json:"tanks"`
}

type PipeListResponse struct {
	Tick      uint64             `json:"tick"`
	PumpAngle float64            `json:"pumpAngle"`
	Pipes     []models.PipeState `json:"pipes"`
	Flowing   []string           `json:"flowing"`
}

type ValveListResponse struct {
	Tick   uint64              `json:"tick"`
	Valves []models.ValveState `json:"valves"`
}

// Helper functions

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err string, message string) {
	s.writeJSON(w, status, ErrorResponse{
		Error:   err,
		Message: message,
	})
}

func (s *Server) writeSuccess(w http.ResponseWriter, data interface{}, message string) {
	s.writeJSON(w, http.StatusOK, SuccessResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

func tankInfo(t models.TankState) TankInfo {
	return TankInfo{
		TankState: t,
		Percent:   t.Level * 100,
		Empty:     t.Amount <= models.Epsilon,
		Full:      t.Amount >= t.Capacity-models.Epsilon,
	}
}

// API Handlers

// GetState returns the full plant snapshot
func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	s.writeSuccess(w, StateResponse{State: s.sim.State(), Running: s.sim.Running()}, "")
}

// GetTanks returns tank levels. ?id= narrows the result to one tank.
func (s *Server) GetTanks(w http.ResponseWriter, r *http.Request) {
	state := s.sim.State()

	if id := r.URL.Query().Get("id"); id != "" {
		t, ok := state.Tank(id)
		if !ok {
			s.writeError(w, http.StatusNotFound, "tank_not_found", "Tank with ID "+id+" not found")
			return
		}
		s.writeSuccess(w, tankInfo(t), "")
		return
	}

	tanks := make([]TankInfo, len(state.Tanks))
	for i, t := range state.Tanks {
		tanks[i] = tankInfo(t)
	}
	s.writeSuccess(w, TankListResponse{Tick: state.Tick, Tanks: tanks}, "")
}

// GetPipes returns pipe flow flags and the pump angle. ?id= narrows the result to one pipe.
func (s *Server) GetPipes(w http.ResponseWriter, r *http.Request) {
	state := s.sim.State()

	if id := r.URL.Query().Get("id"); id != "" {
		p, ok := state.Pipe(id)
		if !ok {
			s.writeError(w, http.StatusNotFound, "pipe_not_found", "Pipe with ID "+id+" not found")
			return
		}
		s.writeSuccess(w, p, "")
		return
	}

	flowing := state.FlowingPipes()
	if flowing == nil {
		flowing = []string{}
	}
	s.writeSuccess(w, PipeListResponse{
		Tick:      state.Tick,
		PumpAngle: state.PumpAngle,
		Pipes:     state.Pipes,
		Flowing:   flowing,
	}, "")
}

// GetValves returns valve positions
func (s *Server) GetValves(w http.ResponseWriter, r *http.Request) {
	state := s.sim.State()
	s.writeSuccess(w, ValveListResponse{Tick: state.Tick, Valves: state.Valves}, "")
}

// GetStatus returns the operator status panel lines
func (s *Server) GetStatus(w http.ResponseWriter, r *http.Request) {
	state := s.sim.State()
	s.writeSuccess(w, map[string]interface{}{
		"tick":      state.Tick,
		"pumpAngle": state.PumpAngle,
		"lines":     state.StatusLines(),
	}, "")
}
