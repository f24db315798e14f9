// Package health exposes liveness/readiness HTTP endpoints for the Agent
// Runner process, grounded on the teacher's internal/health/health.go, plus
// host CPU/RAM stats via gopsutil as an ambient ops addition the teacher
// itself does not report (see SPEC_FULL.md's health-server section).
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/driftline/signalcore/internal/ports"
	"github.com/driftline/signalcore/pkg/logger"
)

// DBPinger is satisfied by internal/storage/postgres.DB.
type DBPinger interface {
	Health(ctx context.Context) error
}

// LockPinger is satisfied by internal/runlock.Client.
type LockPinger interface {
	Health(ctx context.Context) error
}

// Server serves /healthz (liveness) and /readyz (readiness) for K8s-style
// probes.
type Server struct {
	server    *http.Server
	db        DBPinger
	locks     LockPinger // nil when the distributed lock is disabled
	repo      ports.Repository
	ready     bool
	readyMu   sync.RWMutex
	startTime time.Time
}

// HealthStatus is the /healthz liveness response.
type HealthStatus struct {
	Status  string            `json:"status"`
	Uptime  string            `json:"uptime"`
	Checks  map[string]string `json:"checks,omitempty"`
	HostCPU float64           `json:"hostCpuPercent,omitempty"`
	HostMem float64           `json:"hostMemPercent,omitempty"`
}

// ReadinessStatus is the /readyz readiness response.
type ReadinessStatus struct {
	Ready  bool              `json:"ready"`
	Checks map[string]string `json:"checks"`
	Agents AgentsStatus      `json:"agents"`
}

// AgentsStatus summarizes the active-agent population at readiness-check
// time.
type AgentsStatus struct {
	Active int `json:"active"`
}

// NewServer builds the health server. locks may be nil when the
// distributed run lock is disabled.
func NewServer(port string, db DBPinger, locks LockPinger, repo ports.Repository) *Server {
	mux := http.NewServeMux()

	s := &Server{
		server: &http.Server{
			Addr:         ":" + port,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		db:        db,
		locks:     locks,
		repo:      repo,
		startTime: time.Now(),
	}

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReadiness)

	return s
}

// Start runs the server until it is Stopped; returns nil on a clean
// shutdown.
func (s *Server) Start() error {
	logger.Info("health server starting", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	logger.Info("stopping health server")
	return s.server.Shutdown(ctx)
}

// SetReady marks the service ready or not-ready for /readyz.
func (s *Server) SetReady(ready bool) {
	s.readyMu.Lock()
	defer s.readyMu.Unlock()
	s.ready = ready
}

func (s *Server) isReady() bool {
	s.readyMu.RLock()
	defer s.readyMu.RUnlock()
	return s.ready
}

// handleHealth is the liveness probe: always 200 if the process can answer
// HTTP at all, since a dependency outage shouldn't get the pod killed.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status: "healthy",
		Uptime: time.Since(s.startTime).Round(time.Second).String(),
	}

	cpuPct, memPct := hostStats()
	status.HostCPU = cpuPct
	status.HostMem = memPct

	if r.URL.Query().Get("verbose") == "true" {
		status.Checks = s.runChecks(r.Context())
	}

	writeJSON(w, http.StatusOK, status)
}

// handleReadiness is the readiness probe: 200 only once SetReady(true) has
// been called and every dependency check passes.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := s.runChecks(r.Context())

	allHealthy := true
	for _, v := range checks {
		if v != "healthy" {
			allHealthy = false
			break
		}
	}

	active := 0
	if agents, err := s.repo.ListActiveAgents(r.Context()); err == nil {
		active = len(agents)
	} else {
		checks["agents"] = "unhealthy: " + err.Error()
		allHealthy = false
	}

	ready := s.isReady() && allHealthy

	status := ReadinessStatus{
		Ready:  ready,
		Checks: checks,
		Agents: AgentsStatus{Active: active},
	}

	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (s *Server) runChecks(ctx context.Context) map[string]string {
	checks := make(map[string]string)

	if err := s.db.Health(ctx); err != nil {
		checks["database"] = "unhealthy: " + err.Error()
	} else {
		checks["database"] = "healthy"
	}

	if s.locks != nil {
		if err := s.locks.Health(ctx); err != nil {
			checks["runlock"] = "unhealthy: " + err.Error()
		} else {
			checks["runlock"] = "healthy"
		}
	}

	return checks
}

// hostStats reports CPU/RAM usage for the health payload, treating a
// gopsutil failure as "0, not fatal" since host stats are informational,
// not a readiness gate.
func hostStats() (cpuPercent, memPercent float64) {
	pcts, err := cpu.Percent(100*time.Millisecond, false)
	if err == nil && len(pcts) > 0 {
		cpuPercent = pcts[0]
	}

	vm, err := mem.VirtualMemory()
	if err == nil {
		memPercent = vm.UsedPercent
	}

	return cpuPercent, memPercent
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
