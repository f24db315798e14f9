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

const redditHotURL = "https://www.reddit.com/r/CryptoCurrency/hot.json?limit=75"

type redditMention struct {
	title       string
	score       int
	numComments int
}

// RedditSocialSource implements ports.SocialSource over r/CryptoCurrency's
// hot listing, grounded on RedditProvider's request shape but aggregated
// per-symbol into a models.SocialSignal instead of raw news items, scored
// with the teacher's sentiment.Analyzer.
type RedditSocialSource struct {
	client   *http.Client
	analyzer *sentiment.Analyzer

	mu        sync.RWMutex
	fetchedAt time.Time
	mentions  []redditMention
}

func NewRedditSocialSource() *RedditSocialSource {
	return &RedditSocialSource{
		client:   &http.Client{Timeout: 10 * time.Second},
		analyzer: sentiment.NewAnalyzer(),
	}
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title       string `json:"title"`
				Score       int    `json:"score"`
				NumComments int    `json:"num_comments"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// GetSocial reports attention for symbol across the cached hot listing.
func (r *RedditSocialSource) GetSocial(ctx context.Context, symbol string) (*models.SocialSignal, error) {
	if err := r.refreshIfStale(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	lowerSymbol := strings.ToLower(symbol)
	var volume float64
	var mentionCount int
	for _, m := range r.mentions {
		if !strings.Contains(strings.ToLower(m.title), lowerSymbol) {
			continue
		}
		mentionCount++
		volume += float64(m.score + m.numComments)
	}

	if mentionCount == 0 {
		return nil, nil
	}

	return &models.SocialSignal{
		SocialVolume: volume,
		Sentiment:    r.sentimentAcrossTitles(lowerSymbol),
		SocialSpike:  mentionCount >= 5,
	}, nil
}

func (r *RedditSocialSource) sentimentAcrossTitles(lowerSymbol string) float64 {
	var total float64
	var n int
	for _, m := range r.mentions {
		if !strings.Contains(strings.ToLower(m.title), lowerSymbol) {
			continue
		}
		total += r.analyzer.AnalyzeSentiment(m.title)
		n++
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

func (r *RedditSocialSource) refreshIfStale(ctx context.Context) error {
	r.mu.RLock()
	fresh := time.Since(r.fetchedAt) < 5*time.Minute
	r.mu.RUnlock()
	if fresh {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, redditHotURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to build reddit request: %w", err)
	}
	req.Header.Set("User-Agent", "signalcore/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("reddit request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("reddit API error %d: %s", resp.StatusCode, string(body))
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return fmt.Errorf("failed to decode reddit response: %w", err)
	}

	mentions := make([]redditMention, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		mentions = append(mentions, redditMention{
			title:       child.Data.Title,
			score:       child.Data.Score,
			numComments: child.Data.NumComments,
		})
	}

	r.mu.Lock()
	r.mentions = mentions
	r.fetchedAt = time.Now()
	r.mu.Unlock()

	return nil
}

var _ ports.SocialSource = (*RedditSocialSource)(nil)
