package runlock

import (
	"context"
	"fmt"
	"time"

	"github.com/amyangfei/redlock-go/v3/redlock"
	"go.uber.org/zap"

	"github.com/driftline/signalcore/pkg/logger"
)

// DistributedLock is one agent-scoped Redlock, satisfying
// internal/ports.AgentLock.
type DistributedLock struct {
	lockManager *redlock.RedLock
	agentID     string
	lockName    string
	ttl         time.Duration
	locked      bool
}

// NewDistributedLock builds a lock for one agent ID, not yet acquired.
func NewDistributedLock(lockManager *redlock.RedLock, agentID string) *DistributedLock {
	return &DistributedLock{
		lockManager: lockManager,
		agentID:     agentID,
		lockName:    fmt.Sprintf("agent:lock:%s", agentID),
		ttl:         30 * time.Second,
	}
}

// TryAcquire attempts to acquire this agent's lock. A false, nil return
// means another Runner process already holds it for this cycle — the
// caller should skip the agent this tick rather than treat it as an error.
func (dl *DistributedLock) TryAcquire(ctx context.Context) (bool, error) {
	expiry, err := dl.lockManager.Lock(ctx, dl.lockName, dl.ttl)
	if err != nil {
		logger.Debug("agent lock already held by another instance",
			zap.String("agent_id", dl.agentID),
			zap.String("lock_name", dl.lockName),
		)
		return false, nil
	}
	if expiry <= 0 {
		return false, fmt.Errorf("failed to acquire lock: invalid expiry %v", expiry)
	}

	dl.locked = true

	logger.Debug("agent lock acquired",
		zap.String("agent_id", dl.agentID),
		zap.String("lock_name", dl.lockName),
		zap.Duration("ttl", dl.ttl),
		zap.Duration("expiry", expiry),
	)

	go dl.renewLock(ctx)

	return true, nil
}

// Release releases the lock, tolerating natural expiry.
func (dl *DistributedLock) Release(ctx context.Context) error {
	if !dl.locked {
		return nil
	}

	if err := dl.lockManager.UnLock(ctx, dl.lockName); err != nil {
		logger.Warn("failed to release agent lock (may have already expired)",
			zap.String("agent_id", dl.agentID),
			zap.String("lock_name", dl.lockName),
			zap.Error(err),
		)
	}

	dl.locked = false
	return nil
}

// renewLock extends the lock at 2/3 of its TTL for as long as the cycle's
// context stays alive, via release-then-reacquire since redlock-go has no
// built-in renewal call.
func (dl *DistributedLock) renewLock(ctx context.Context) {
	ticker := time.NewTicker((dl.ttl * 2) / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !dl.locked {
				return
			}

			if err := dl.lockManager.UnLock(ctx, dl.lockName); err != nil {
				logger.Error("agent lock renewal failed (unlock)", zap.String("agent_id", dl.agentID), zap.Error(err))
				dl.locked = false
				return
			}

			expiry, err := dl.lockManager.Lock(ctx, dl.lockName, dl.ttl)
			if err != nil || expiry <= 0 {
				logger.Error("agent lock lost during renewal", zap.String("agent_id", dl.agentID), zap.Error(err))
				dl.locked = false
				return
			}
		}
	}
}

// CheckLockHeld reports whether this instance still believes it holds the
// lock, without a round-trip to Redis.
func (dl *DistributedLock) CheckLockHeld(ctx context.Context) (bool, error) {
	return dl.locked, nil
}

func (dl *DistributedLock) GetAgentID() string {
	return dl.agentID
}
