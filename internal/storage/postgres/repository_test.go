package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/driftline/signalcore/pkg/models"
	"github.com/driftline/signalcore/test/testdb"
)

// These tests exercise Repository against a live, migrated Postgres
// instance reachable via TEST_DATABASE_URL (or testdb's local default DSN);
// they are integration tests and fail when no such database is reachable.

func TestRepository_CreateAndGetPosition(t *testing.T) {
	db := testdb.Setup(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	pos := &models.AgentPosition{
		ID:              "pos-1",
		AgentID:         "agent-1",
		TokenAddress:    "tokenA",
		TokenSymbol:     "TOKA",
		Chain:           models.ChainSolana,
		Side:            "long",
		Size:            10,
		AvgEntryPrice:   1.5,
		CurrentPrice:    1.5,
		HighestPrice:    1.5,
		StopLossPrice:   1.35,
		TakeProfitPrice: 1.8,
		Status:          models.PositionOpen,
		OpenedAt:        time.Now(),
	}

	if err := repo.CreatePosition(ctx, pos); err != nil {
		t.Fatalf("failed to create position: %v", err)
	}

	found, err := repo.GetPosition(ctx, pos.ID)
	if err != nil {
		t.Fatalf("failed to get position: %v", err)
	}
	if found.TokenSymbol != "TOKA" || found.Size != 10 {
		t.Fatalf("unexpected position: %+v", found)
	}

	open, err := repo.ListOpenPositionsByAgent(ctx, "agent-1")
	if err != nil {
		t.Fatalf("failed to list open positions: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("expected 1 open position, got %d", len(open))
	}
}

func TestRepository_CloseAgentPosition(t *testing.T) {
	db := testdb.Setup(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	pos := &models.AgentPosition{
		ID:            "pos-2",
		AgentID:       "agent-1",
		TokenAddress:  "tokenB",
		TokenSymbol:   "TOKB",
		Chain:         models.ChainSolana,
		Side:          "long",
		Size:          5,
		AvgEntryPrice: 2.0,
		CurrentPrice:  2.0,
		HighestPrice:  2.0,
		Status:        models.PositionOpen,
		OpenedAt:      time.Now(),
	}
	if err := repo.CreatePosition(ctx, pos); err != nil {
		t.Fatalf("failed to create position: %v", err)
	}

	if err := repo.CloseAgentPosition(ctx, pos.ID, 2.2, 1.0); err != nil {
		t.Fatalf("failed to close position: %v", err)
	}

	closed, err := repo.GetPosition(ctx, pos.ID)
	if err != nil {
		t.Fatalf("failed to get closed position: %v", err)
	}
	if closed.Status != models.PositionClosed {
		t.Fatalf("expected position to be closed, got status %v", closed.Status)
	}
	if closed.RealizedPnl != 1.0 {
		t.Fatalf("expected realized pnl 1.0, got %v", closed.RealizedPnl)
	}

	open, err := repo.ListOpenPositionsByAgent(ctx, "agent-1")
	if err != nil {
		t.Fatalf("failed to list open positions: %v", err)
	}
	for _, p := range open {
		if p.ID == pos.ID {
			t.Fatal("closed position should not appear in open-positions listing")
		}
	}
}

func TestRepository_UpsertSignalPerformanceAccumulates(t *testing.T) {
	db := testdb.Setup(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	if err := repo.UpsertSignalPerformance(ctx, "test:whale_accumulating", models.StrategyBalanced, true, 8.0); err != nil {
		t.Fatalf("failed first upsert: %v", err)
	}
	if err := repo.UpsertSignalPerformance(ctx, "test:whale_accumulating", models.StrategyBalanced, false, -3.0); err != nil {
		t.Fatalf("failed second upsert: %v", err)
	}

	all, err := repo.GetAllSignalPerformance(ctx)
	if err != nil {
		t.Fatalf("failed to get signal performance: %v", err)
	}

	var found *models.SignalPerformance
	for i := range all {
		if all[i].Signal == "test:whale_accumulating" && all[i].Strategy == models.StrategyBalanced {
			found = &all[i]
		}
	}
	if found == nil {
		t.Fatal("expected an accumulated signal_performance row")
	}
	if found.Wins != 1 || found.Losses != 1 || found.Count != 2 {
		t.Fatalf("unexpected accumulation: %+v", found)
	}
}

func TestRepository_GetAgentTradesOrdersByTimestampDesc(t *testing.T) {
	db := testdb.Setup(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		trade := &models.AgentTrade{
			ID:        "trade-" + string(rune('a'+i)),
			AgentID:   "agent-trades",
			Type:      models.TradeBuy,
			Amount:    1,
			Price:     1,
			Total:     1,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.CreateAgentTrade(ctx, trade); err != nil {
			t.Fatalf("failed to create trade %d: %v", i, err)
		}
	}

	trades, err := repo.GetAgentTrades(ctx, "agent-trades", 2)
	if err != nil {
		t.Fatalf("failed to get agent trades: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("expected limit=2 trades, got %d", len(trades))
	}
	if !trades[0].Timestamp.After(trades[1].Timestamp) {
		t.Fatalf("expected trades ordered newest-first, got %+v", trades)
	}
}
