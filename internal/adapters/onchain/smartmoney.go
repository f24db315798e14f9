package onchain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/driftline/signalcore/internal/ports"
	"github.com/driftline/signalcore/pkg/logger"
	"github.com/driftline/signalcore/pkg/models"
)

const whaleAlertTxURL = "https://api.whale-alert.io/v1/transactions"

// WhaleSmartMoneySource implements ports.SmartMoneySource over Whale
// Alert's recent-large-transactions feed, grounded on WhaleAlertAdapter:
// same API, same request shape, but netted per-token into a
// models.SmartMoneySignal instead of raw transactions.
type WhaleSmartMoneySource struct {
	client  *http.Client
	apiKey  string
	enabled bool

	mu       sync.RWMutex
	cachedAt time.Time
	byToken  map[string]models.SmartMoneySignal
}

// NewWhaleSmartMoneySource returns a disabled source when apiKey is empty:
// Whale Alert requires a paid key, so an unconfigured deployment simply
// reports "no data" (nil, nil) for every lookup rather than failing.
func NewWhaleSmartMoneySource(apiKey string) *WhaleSmartMoneySource {
	return &WhaleSmartMoneySource{
		client:  &http.Client{Timeout: 10 * time.Second},
		apiKey:  apiKey,
		enabled: apiKey != "",
		byToken: make(map[string]models.SmartMoneySignal),
	}
}

type whaleAlertResponse struct {
	Result       string `json:"result"`
	Transactions []struct {
		Symbol string `json:"symbol"`
		Amount float64 `json:"amount"`
		AmountUSD float64 `json:"amount_usd"`
		From   struct {
			OwnerType string `json:"owner_type"`
		} `json:"from"`
		To struct {
			OwnerType string `json:"owner_type"`
		} `json:"to"`
	} `json:"transactions"`
}

// GetSmartMoneySignal reports whale flow for address/chain. A nil result
// with a nil error means no data, matching ports.SmartMoneySource's
// documented "treated as neutral" contract — the case when the source is
// disabled or the token had no recent large transactions.
func (w *WhaleSmartMoneySource) GetSmartMoneySignal(ctx context.Context, address string, chain models.Chain) (*models.SmartMoneySignal, error) {
	if !w.enabled {
		return nil, nil
	}

	if err := w.refreshIfStale(ctx); err != nil {
		return nil, err
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	sig, ok := w.byToken[address]
	if !ok {
		return nil, nil
	}
	return &sig, nil
}

func (w *WhaleSmartMoneySource) refreshIfStale(ctx context.Context) error {
	w.mu.RLock()
	fresh := time.Since(w.cachedAt) < time.Minute
	w.mu.RUnlock()
	if fresh {
		return nil
	}

	start := time.Now().Add(-time.Hour).Unix()
	url := fmt.Sprintf("%s?api_key=%s&start=%d&min_value=100000", whaleAlertTxURL, w.apiKey, start)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to build whale-alert request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("whale-alert request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("whale-alert API error %d: %s", resp.StatusCode, string(body))
	}

	var raw whaleAlertResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return fmt.Errorf("failed to decode whale-alert response: %w", err)
	}

	byToken := make(map[string]models.SmartMoneySignal)
	for _, tx := range raw.Transactions {
		sig := byToken[tx.Symbol]
		isExchangeDest := tx.To.OwnerType == "exchange"
		isExchangeSrc := tx.From.OwnerType == "exchange"
		switch {
		case isExchangeDest && !isExchangeSrc:
			sig.TopTraderSells++
			sig.NetFlow -= tx.AmountUSD
		case isExchangeSrc && !isExchangeDest:
			sig.TopTraderBuys++
			sig.NetFlow += tx.AmountUSD
		}
		sig.TopWalletCount++
		byToken[tx.Symbol] = sig
	}
	for sym, sig := range byToken {
		sig.WhaleAccumulationScore = accumulationScore(sig)
		byToken[sym] = sig
	}

	w.mu.Lock()
	w.byToken = byToken
	w.cachedAt = time.Now()
	w.mu.Unlock()

	logger.Debug("whale-alert smart money refreshed", zap.Int("tokens", len(byToken)))
	return nil
}

func accumulationScore(sig models.SmartMoneySignal) float64 {
	total := sig.TopTraderBuys + sig.TopTraderSells
	if total == 0 {
		return 0
	}
	return (float64(sig.TopTraderBuys) - float64(sig.TopTraderSells)) / float64(total) * 100
}

var _ ports.SmartMoneySource = (*WhaleSmartMoneySource)(nil)
