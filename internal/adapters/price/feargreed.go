package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/driftline/signalcore/internal/ports"
	"github.com/driftline/signalcore/pkg/models"
)

const alternativeMeFngURL = "https://api.alternative.me/fng/?limit=2"

// FearGreedSource implements ports.FearGreedSource over alternative.me's
// Fear & Greed index, cached in-memory the same way CoinGeckoProvider
// caches spot prices.
type FearGreedSource struct {
	client *http.Client

	mu       sync.RWMutex
	cachedAt time.Time
	cached   *models.FearGreed
}

func NewFearGreedSource() *FearGreedSource {
	return &FearGreedSource{client: &http.Client{Timeout: 10 * time.Second}}
}

type fngResponse struct {
	Data []struct {
		Value               string `json:"value"`
		ValueClassification string `json:"value_classification"`
	} `json:"data"`
}

// Get polls the gauge, caching for 10 minutes per ports.FearGreedSource's
// documented cadence.
func (f *FearGreedSource) Get(ctx context.Context) (*models.FearGreed, error) {
	f.mu.RLock()
	if f.cached != nil && time.Since(f.cachedAt) < 10*time.Minute {
		cached := f.cached
		f.mu.RUnlock()
		return cached, nil
	}
	f.mu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, alternativeMeFngURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build fear/greed request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fear/greed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fear/greed API error %d: %s", resp.StatusCode, string(body))
	}

	var raw fngResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode fear/greed response: %w", err)
	}
	if len(raw.Data) == 0 {
		return nil, fmt.Errorf("fear/greed response had no data points")
	}

	value, _ := strconv.ParseFloat(raw.Data[0].Value, 64)
	fg := &models.FearGreed{
		Value:          value,
		Classification: raw.Data[0].ValueClassification,
		TradingBias:    biasFromValue(value),
	}
	if len(raw.Data) > 1 {
		prev, _ := strconv.ParseFloat(raw.Data[1].Value, 64)
		fg.Trend = trendOf(value, prev)
	}

	f.mu.Lock()
	f.cached = fg
	f.cachedAt = time.Now()
	f.mu.Unlock()

	return fg, nil
}

func biasFromValue(v float64) models.TradingBias {
	switch {
	case v <= 25:
		return models.TradingBiasBuy // extreme fear: contrarian buy bias
	case v >= 75:
		return models.TradingBiasSell // extreme greed: contrarian sell bias
	default:
		return models.TradingBiasHold
	}
}

func trendOf(current, previous float64) string {
	switch {
	case current > previous:
		return "rising"
	case current < previous:
		return "falling"
	default:
		return "flat"
	}
}

var _ ports.FearGreedSource = (*FearGreedSource)(nil)
