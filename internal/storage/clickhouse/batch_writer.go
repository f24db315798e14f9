package clickhouse

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/driftline/signalcore/pkg/logger"
	"github.com/driftline/signalcore/pkg/models"
)

// BatchWriter buffers records and flushes them to ClickHouse in batches,
// either when the buffer fills or on a fixed interval, whichever comes
// first.
type BatchWriter struct {
	repo        *Repository
	buffer      []interface{}
	bufferMu    sync.Mutex
	maxBatch    int
	maxWait     time.Duration
	flushTicker *time.Ticker
	flushFunc   func(context.Context, *Repository, []interface{}) error
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

func newBatchWriter(
	repo *Repository,
	maxBatch int,
	maxWait time.Duration,
	flushFunc func(context.Context, *Repository, []interface{}) error,
) *BatchWriter {
	ctx, cancel := context.WithCancel(context.Background())

	bw := &BatchWriter{
		repo:      repo,
		buffer:    make([]interface{}, 0, maxBatch),
		maxBatch:  maxBatch,
		maxWait:   maxWait,
		flushFunc: flushFunc,
		ctx:       ctx,
		cancel:    cancel,
	}

	bw.flushTicker = time.NewTicker(maxWait)

	bw.wg.Add(1)
	go bw.autoFlush()

	return bw
}

// Add appends a record to the buffer, flushing immediately if the buffer
// has reached maxBatch.
func (bw *BatchWriter) Add(record interface{}) {
	bw.bufferMu.Lock()
	bw.buffer = append(bw.buffer, record)
	shouldFlush := len(bw.buffer) >= bw.maxBatch
	bw.bufferMu.Unlock()

	if shouldFlush {
		bw.flush()
	}
}

func (bw *BatchWriter) autoFlush() {
	defer bw.wg.Done()

	for {
		select {
		case <-bw.flushTicker.C:
			bw.flush()
		case <-bw.ctx.Done():
			bw.flush()
			return
		}
	}
}

func (bw *BatchWriter) flush() {
	bw.bufferMu.Lock()
	if len(bw.buffer) == 0 {
		bw.bufferMu.Unlock()
		return
	}

	toWrite := make([]interface{}, len(bw.buffer))
	copy(toWrite, bw.buffer)
	bw.buffer = bw.buffer[:0]
	bw.bufferMu.Unlock()

	ctx, cancel := context.WithTimeout(bw.ctx, 30*time.Second)
	defer cancel()

	if err := bw.flushFunc(ctx, bw.repo, toWrite); err != nil {
		logger.Error("failed to flush batch to clickhouse",
			zap.Int("records", len(toWrite)),
			zap.Error(err),
		)
		return
	}

	logger.Debug("flushed batch to clickhouse", zap.Int("records", len(toWrite)))
}

// Close stops the flush ticker and flushes any remaining buffered records.
func (bw *BatchWriter) Close() error {
	bw.flushTicker.Stop()
	bw.cancel()
	bw.wg.Wait()
	return nil
}

// TradeBatchWriter batches AgentTrade records destined for
// agent_trades_mirror.
type TradeBatchWriter struct {
	*BatchWriter
}

func NewTradeBatchWriter(repo *Repository, maxBatch int, maxWait time.Duration) *TradeBatchWriter {
	flushFunc := func(ctx context.Context, r *Repository, records []interface{}) error {
		trades := make([]models.AgentTrade, len(records))
		for i, record := range records {
			trades[i] = record.(models.AgentTrade)
		}
		return r.SaveTrades(ctx, trades)
	}

	return &TradeBatchWriter{BatchWriter: newBatchWriter(repo, maxBatch, maxWait, flushFunc)}
}

func (tbw *TradeBatchWriter) AddTrade(trade models.AgentTrade) {
	tbw.Add(trade)
}

// LogBatchWriter batches AgentLog records destined for agent_logs_mirror.
type LogBatchWriter struct {
	*BatchWriter
}

func NewLogBatchWriter(repo *Repository, maxBatch int, maxWait time.Duration) *LogBatchWriter {
	flushFunc := func(ctx context.Context, r *Repository, records []interface{}) error {
		logs := make([]models.AgentLog, len(records))
		for i, record := range records {
			logs[i] = record.(models.AgentLog)
		}
		return r.SaveLogs(ctx, logs)
	}

	return &LogBatchWriter{BatchWriter: newBatchWriter(repo, maxBatch, maxWait, flushFunc)}
}

func (lbw *LogBatchWriter) AddLog(log models.AgentLog) {
	lbw.Add(log)
}
