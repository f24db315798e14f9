package runlock

import (
	"context"
	"testing"
)

func TestNoopLockFactory_AlwaysAcquires(t *testing.T) {
	f := NewNoopLockFactory()
	lock := f.CreateAgentLock("agent-1")

	acquired, err := lock.TryAcquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acquired {
		t.Fatal("expected the noop lock to always acquire")
	}

	held, err := lock.CheckLockHeld(context.Background())
	if err != nil || !held {
		t.Fatalf("expected noop lock to report held, got held=%v err=%v", held, err)
	}

	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("unexpected error releasing noop lock: %v", err)
	}

	if lock.GetAgentID() != "agent-1" {
		t.Fatalf("expected agent ID to be preserved, got %q", lock.GetAgentID())
	}
}

func TestNoopLockFactory_DistinctAgentsGetDistinctLocks(t *testing.T) {
	f := NewNoopLockFactory()
	a := f.CreateAgentLock("agent-a")
	b := f.CreateAgentLock("agent-b")

	if a.GetAgentID() == b.GetAgentID() {
		t.Fatal("expected distinct agent IDs on locks minted for different agents")
	}
}
