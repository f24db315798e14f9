package clickhouse

import (
	"time"

	"github.com/driftline/signalcore/pkg/models"
)

// Mirror combines a TradeBatchWriter and a LogBatchWriter behind the shape
// internal/ports.TelemetryMirror expects, so the runner can hold one field
// regardless of how many underlying ClickHouse tables back it.
type Mirror struct {
	trades *TradeBatchWriter
	logs   *LogBatchWriter
}

// NewMirror wires up both batch writers against the same repository with
// shared batch-size/flush-interval settings.
func NewMirror(repo *Repository, maxBatch int, maxWait time.Duration) *Mirror {
	return &Mirror{
		trades: NewTradeBatchWriter(repo, maxBatch, maxWait),
		logs:   NewLogBatchWriter(repo, maxBatch, maxWait),
	}
}

func (m *Mirror) AddTrade(t models.AgentTrade) { m.trades.AddTrade(t) }
func (m *Mirror) AddLog(l models.AgentLog)     { m.logs.AddLog(l) }

// Close flushes and stops both underlying batch writers.
func (m *Mirror) Close() error {
	if err := m.trades.Close(); err != nil {
		return err
	}
	return m.logs.Close()
}
