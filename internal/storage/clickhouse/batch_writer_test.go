package clickhouse

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/driftline/signalcore/internal/ports"
	"github.com/driftline/signalcore/pkg/models"
)

// recordingFlusher stands in for a *Repository in tests: newBatchWriter only
// ever calls flushFunc, never Repository's own methods directly, so a nil
// *Repository passed through unused is safe as long as flushFunc never
// touches it.
type recordingFlusher struct {
	mu      sync.Mutex
	batches [][]interface{}
}

func (rf *recordingFlusher) record(_ context.Context, _ *Repository, records []interface{}) error {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	batch := make([]interface{}, len(records))
	copy(batch, records)
	rf.batches = append(rf.batches, batch)
	return nil
}

func (rf *recordingFlusher) totalRecords() int {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	n := 0
	for _, b := range rf.batches {
		n += len(b)
	}
	return n
}

func TestBatchWriter_FlushesOnMaxBatch(t *testing.T) {
	rf := &recordingFlusher{}
	bw := newBatchWriter(nil, 3, time.Hour, rf.record)
	defer bw.Close()

	bw.Add("a")
	bw.Add("b")
	bw.Add("c")

	deadline := time.Now().Add(time.Second)
	for rf.totalRecords() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if rf.totalRecords() != 3 {
		t.Fatalf("expected 3 flushed records after hitting maxBatch, got %d", rf.totalRecords())
	}
}

func TestBatchWriter_FlushesRemainderOnClose(t *testing.T) {
	rf := &recordingFlusher{}
	bw := newBatchWriter(nil, 100, time.Hour, rf.record)

	bw.Add("x")
	bw.Add("y")

	if err := bw.Close(); err != nil {
		t.Fatalf("unexpected error closing batch writer: %v", err)
	}
	if rf.totalRecords() != 2 {
		t.Fatalf("expected Close to flush the 2 buffered records, got %d", rf.totalRecords())
	}
}

func TestMirror_SatisfiesTelemetryMirrorPort(t *testing.T) {
	var _ ports.TelemetryMirror = (*Mirror)(nil)
}

func TestTradeBatchWriter_BuffersUntilFlush(t *testing.T) {
	repo := NewRepository(nil)
	tbw := NewTradeBatchWriter(repo, 10, time.Hour)
	defer tbw.Close()

	tbw.AddTrade(models.AgentTrade{ID: "t1", AgentID: "agent-1"})

	if len(tbw.buffer) != 1 {
		t.Fatalf("expected 1 buffered trade before any flush, got %d", len(tbw.buffer))
	}
}
