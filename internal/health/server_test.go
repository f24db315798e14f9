package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/driftline/signalcore/internal/ports/testdoubles"
	"github.com/driftline/signalcore/pkg/models"
)

type fakePinger struct {
	err error
}

func (f fakePinger) Health(ctx context.Context) error { return f.err }

func newTestServer(dbErr, lockErr error, agents map[string]*models.AgentConfig) *Server {
	repo := testdoubles.NewRepository()
	for id, a := range agents {
		repo.Agents[id] = a
	}
	return NewServer("0", fakePinger{err: dbErr}, fakePinger{err: lockErr}, repo)
}

func TestHandleHealth_AlwaysReturns200(t *testing.T) {
	s := newTestServer(errors.New("db down"), nil, nil)

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	s.handleHealth(w, req)

	if w.Code != 200 {
		t.Fatalf("expected liveness probe to always return 200, got %d", w.Code)
	}

	var status HealthStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if status.Status != "healthy" {
		t.Fatalf("expected status=healthy, got %q", status.Status)
	}
	if status.Checks != nil {
		t.Fatal("expected no checks without ?verbose=true")
	}
}

func TestHandleHealth_VerboseIncludesChecks(t *testing.T) {
	s := newTestServer(errors.New("db down"), nil, nil)

	req := httptest.NewRequest("GET", "/healthz?verbose=true", nil)
	w := httptest.NewRecorder()
	s.handleHealth(w, req)

	var status HealthStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if status.Checks["database"] == "healthy" {
		t.Fatal("expected the database check to report unhealthy")
	}
}

func TestHandleReadiness_NotReadyUntilSetReady(t *testing.T) {
	s := newTestServer(nil, nil, nil)

	req := httptest.NewRequest("GET", "/readyz", nil)
	w := httptest.NewRecorder()
	s.handleReadiness(w, req)

	if w.Code != 503 {
		t.Fatalf("expected 503 before SetReady(true), got %d", w.Code)
	}

	s.SetReady(true)

	w = httptest.NewRecorder()
	s.handleReadiness(w, req)
	if w.Code != 200 {
		t.Fatalf("expected 200 after SetReady(true) with healthy deps, got %d", w.Code)
	}

	var status ReadinessStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to decode readiness response: %v", err)
	}
	if !status.Ready {
		t.Fatal("expected Ready=true")
	}
}

func TestHandleReadiness_UnhealthyDependencyBlocksReady(t *testing.T) {
	s := newTestServer(nil, errors.New("redis down"), nil)
	s.SetReady(true)

	req := httptest.NewRequest("GET", "/readyz", nil)
	w := httptest.NewRecorder()
	s.handleReadiness(w, req)

	if w.Code != 503 {
		t.Fatalf("expected 503 when a dependency is unhealthy, got %d", w.Code)
	}
}

func TestHandleReadiness_ReportsActiveAgentCount(t *testing.T) {
	agents := map[string]*models.AgentConfig{
		"a1": {ID: "a1", Status: models.AgentStatusRunning},
	}
	s := newTestServer(nil, nil, agents)
	s.SetReady(true)

	req := httptest.NewRequest("GET", "/readyz", nil)
	w := httptest.NewRecorder()
	s.handleReadiness(w, req)

	var status ReadinessStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to decode readiness response: %v", err)
	}
	if status.Agents.Active != 1 {
		t.Fatalf("expected 1 active agent, got %d", status.Agents.Active)
	}
}
