package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/driftline/signalcore/internal/ports"
	"github.com/driftline/signalcore/internal/sentiment"
	"github.com/driftline/signalcore/pkg/models"
)

const coindeskFeedURL = "https://www.coindesk.com/arc/outboundfeeds/news/?outputType=json&size=50"

type headline struct {
	title     string
	sentiment float64
	impact    int
	urgency   string
}

// CoinDeskNewsSource implements ports.NewsSource over CoinDesk's public
// JSON feed, grounded on CoinDeskProvider's request shape, scored with the
// teacher's keyword-weighted sentiment.Analyzer and sentiment.ImpactScorer
// rather than an external NLP API.
type CoinDeskNewsSource struct {
	client   *http.Client
	analyzer *sentiment.Analyzer
	impact   *sentiment.ImpactScorer

	mu        sync.RWMutex
	fetchedAt time.Time
	headlines []headline
}

func NewCoinDeskNewsSource() *CoinDeskNewsSource {
	return &CoinDeskNewsSource{
		client:   &http.Client{Timeout: 10 * time.Second},
		analyzer: sentiment.NewAnalyzer(),
		impact:   sentiment.NewImpactScorer(),
	}
}

type coindeskFeedItem struct {
	Headlines struct {
		Basic string `json:"basic"`
	} `json:"headlines"`
}

// GetNewsForToken filters the cached feed for headlines mentioning symbol
// and reports their average sentiment plus a high-impact count (headlines
// whose keyword impact score is 8 or above, on the ImpactScorer's 1-10
// scale).
func (c *CoinDeskNewsSource) GetNewsForToken(ctx context.Context, symbol string) (*models.NewsSignal, error) {
	if err := c.refreshIfStale(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var total float64
	var matched, highImpact int
	lowerSymbol := strings.ToLower(symbol)
	for _, h := range c.headlines {
		if !strings.Contains(strings.ToLower(h.title), lowerSymbol) {
			continue
		}
		matched++
		total += h.sentiment
		if h.impact >= 8 {
			highImpact++
		}
	}

	if matched == 0 {
		return nil, nil
	}

	return &models.NewsSignal{
		OverallSentiment: total / float64(matched),
		HighImpactCount:  highImpact,
	}, nil
}

// GetOverallMarketNewsSentiment averages sentiment across the whole cached
// feed as the market-wide baseline ports.NewsSource documents.
func (c *CoinDeskNewsSource) GetOverallMarketNewsSentiment(ctx context.Context) (float64, error) {
	if err := c.refreshIfStale(ctx); err != nil {
		return 0, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.headlines) == 0 {
		return 0, nil
	}

	var total float64
	for _, h := range c.headlines {
		total += h.sentiment
	}
	return total / float64(len(c.headlines)), nil
}

func (c *CoinDeskNewsSource) refreshIfStale(ctx context.Context) error {
	c.mu.RLock()
	fresh := time.Since(c.fetchedAt) < 5*time.Minute
	c.mu.RUnlock()
	if fresh {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, coindeskFeedURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to build coindesk feed request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("coindesk feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("coindesk feed error %d: %s", resp.StatusCode, string(body))
	}

	var items []coindeskFeedItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return fmt.Errorf("failed to decode coindesk feed response: %w", err)
	}

	headlines := make([]headline, 0, len(items))
	for _, item := range items {
		if item.Headlines.Basic == "" {
			continue
		}
		impact, urgency := c.impact.ScoreImpact(item.Headlines.Basic, "")
		headlines = append(headlines, headline{
			title:     item.Headlines.Basic,
			sentiment: c.analyzer.AnalyzeSentiment(item.Headlines.Basic),
			impact:    impact,
			urgency:   urgency,
		})
	}

	c.mu.Lock()
	c.headlines = headlines
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	return nil
}

var _ ports.NewsSource = (*CoinDeskNewsSource)(nil)
