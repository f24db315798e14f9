package runlock

import (
	"context"

	"github.com/driftline/signalcore/internal/ports"
)

// RedisLockFactory mints a DistributedLock per agent ID from one shared
// RedLock manager, satisfying internal/ports.LockFactory.
type RedisLockFactory struct {
	client *Client
}

func NewRedisLockFactory(client *Client) *RedisLockFactory {
	return &RedisLockFactory{client: client}
}

func (f *RedisLockFactory) CreateAgentLock(agentID string) ports.AgentLock {
	return NewDistributedLock(f.client.lockManager, agentID)
}

// NoopLockFactory mints locks that always succeed, for single-instance
// deployments running with RedisConfig.Enabled=false — the distributed
// lock is additive safety, not a required dependency.
type NoopLockFactory struct{}

func NewNoopLockFactory() *NoopLockFactory {
	return &NoopLockFactory{}
}

func (f *NoopLockFactory) CreateAgentLock(agentID string) ports.AgentLock {
	return &noopLock{agentID: agentID}
}

type noopLock struct {
	agentID string
}

func (l *noopLock) TryAcquire(ctx context.Context) (bool, error)   { return true, nil }
func (l *noopLock) Release(ctx context.Context) error              { return nil }
func (l *noopLock) CheckLockHeld(ctx context.Context) (bool, error) { return true, nil }
func (l *noopLock) GetAgentID() string                             { return l.agentID }

var (
	_ ports.LockFactory = (*RedisLockFactory)(nil)
	_ ports.LockFactory = (*NoopLockFactory)(nil)
	_ ports.AgentLock   = (*noopLock)(nil)
	_ ports.AgentLock   = (*DistributedLock)(nil)
)
