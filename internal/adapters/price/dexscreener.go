package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/driftline/signalcore/internal/ports"
	"github.com/driftline/signalcore/pkg/logger"
	"github.com/driftline/signalcore/pkg/models"
)

const (
	dexscreenerBoostsURL = "https://api.dexscreener.com/token-boosts/latest/v1"
	dexscreenerPairsURL  = "https://api.dexscreener.com/latest/dex/tokens/%s"
)

// DexScreenerSource implements ports.PairSource and ports.LiquiditySource by
// polling DexScreener's boosted-token feed (the BoostsActive field on
// ports.Pair exists precisely because this is the upstream that reports it)
// and resolving each boosted token address to its best pair.
type DexScreenerSource struct {
	client   *http.Client
	cacheTTL time.Duration

	mu        sync.RWMutex
	cachedAt  time.Time
	cache     []ports.Pair
	snapshots map[models.TokenKey]models.LiquiditySnapshot
}

// NewDexScreenerSource builds a source that refreshes its pair list at most
// once per cacheTTL, matching the ~30s cadence ports.PairSource documents.
func NewDexScreenerSource(cacheTTL time.Duration) *DexScreenerSource {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &DexScreenerSource{
		client:    &http.Client{Timeout: 10 * time.Second},
		cacheTTL:  cacheTTL,
		snapshots: make(map[models.TokenKey]models.LiquiditySnapshot),
	}
}

type dexBoostedToken struct {
	ChainID     string `json:"chainId"`
	TokenAddress string `json:"tokenAddress"`
	Amount      float64 `json:"amount"`
}

type dexPairsResponse struct {
	Pairs []dexPair `json:"pairs"`
}

type dexPair struct {
	ChainID       string `json:"chainId"`
	PairAddress   string `json:"pairAddress"`
	BaseToken     dexToken `json:"baseToken"`
	QuoteToken    dexToken `json:"quoteToken"`
	PriceUSD      string `json:"priceUsd"`
	PriceChange   struct {
		H1  float64 `json:"h1"`
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	Txns struct {
		H24 struct {
			Buys  int `json:"buys"`
			Sells int `json:"sells"`
		} `json:"h24"`
	} `json:"txns"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	FDV           float64 `json:"fdv"`
	MarketCap     float64 `json:"marketCap"`
	PairCreatedAt int64   `json:"pairCreatedAt"`
	Boosts        struct {
		Active int `json:"active"`
	} `json:"boosts"`
}

type dexToken struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
}

var dexChainToModel = map[string]models.Chain{
	"solana":   models.ChainSolana,
	"ethereum": models.ChainEthereum,
	"base":     models.ChainBase,
	"bsc":      models.ChainBSC,
	"tron":     models.ChainTron,
}

// ListLivePairs refreshes the boosted-token list and resolves each to its
// highest-liquidity pair. Stale cache is served on transient upstream
// failure rather than surfacing an error for a 30s blip.
func (d *DexScreenerSource) ListLivePairs(ctx context.Context) ([]ports.Pair, error) {
	d.mu.RLock()
	fresh := time.Since(d.cachedAt) < d.cacheTTL
	cached := d.cache
	d.mu.RUnlock()
	if fresh {
		return cached, nil
	}

	boosted, err := d.fetchBoostedTokens(ctx)
	if err != nil {
		if cached != nil {
			logger.Warn("dexscreener boosts refresh failed, serving stale cache", zap.Error(err))
			return cached, nil
		}
		return nil, err
	}

	var pairs []ports.Pair
	snapshots := make(map[models.TokenKey]models.LiquiditySnapshot)

	for _, tok := range boosted {
		chain, ok := dexChainToModel[tok.ChainID]
		if !ok {
			continue
		}
		resp, err := d.fetchPairsForToken(ctx, tok.TokenAddress)
		if err != nil || len(resp.Pairs) == 0 {
			continue
		}

		best := bestLiquidityPair(resp.Pairs)
		pair := toPortPair(chain, best)
		pairs = append(pairs, pair)

		key := models.TokenKey{Chain: chain, Address: best.BaseToken.Address}
		snapshots[key] = models.LiquiditySnapshot{
			CurrentLiquidity: best.Liquidity.USD,
			ChangePercent:    best.PriceChange.H1,
			IsDraining:       best.PriceChange.H1 < -10,
			IsGrowing:        best.PriceChange.H1 > 10,
			VolumeToLiqRatio: ratio(best.Volume.H24, best.Liquidity.USD),
		}
	}

	d.mu.Lock()
	d.cache = pairs
	d.cachedAt = time.Now()
	d.snapshots = snapshots
	d.mu.Unlock()

	return pairs, nil
}

// GetSnapshot reports the liquidity state last observed for address/chain
// during a ListLivePairs refresh. No data yet observed returns nil, nil —
// callers treat an absent snapshot as neutral, not an error.
func (d *DexScreenerSource) GetSnapshot(ctx context.Context, address string, chain models.Chain) (*models.LiquiditySnapshot, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	snap, ok := d.snapshots[models.TokenKey{Chain: chain, Address: address}]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

// MarketFlowDirection approximates market-wide liquidity flow as the
// fraction of cached pairs currently growing vs. draining liquidity.
func (d *DexScreenerSource) MarketFlowDirection(ctx context.Context) (models.LiquidityFlow, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var growing, draining int
	for _, snap := range d.snapshots {
		if snap.IsGrowing {
			growing++
		}
		if snap.IsDraining {
			draining++
		}
	}

	switch {
	case growing > draining*2:
		return models.LiquidityFlowInflow, nil
	case draining > growing*2:
		return models.LiquidityFlowOutflow, nil
	default:
		return models.LiquidityFlowNeutral, nil
	}
}

func bestLiquidityPair(pairs []dexPair) dexPair {
	best := pairs[0]
	for _, p := range pairs[1:] {
		if p.Liquidity.USD > best.Liquidity.USD {
			best = p
		}
	}
	return best
}

func toPortPair(chain models.Chain, p dexPair) ports.Pair {
	var priceUSD float64
	fmt.Sscanf(p.PriceUSD, "%f", &priceUSD)

	return ports.Pair{
		Chain:          chain,
		PairAddress:    p.PairAddress,
		BaseAddress:    p.BaseToken.Address,
		BaseSymbol:     p.BaseToken.Symbol,
		QuoteAddress:   p.QuoteToken.Address,
		QuoteSymbol:    p.QuoteToken.Symbol,
		PriceUSD:       priceUSD,
		PriceChange1h:  p.PriceChange.H1,
		PriceChange24h: p.PriceChange.H24,
		Volume24h:      p.Volume.H24,
		Buys24h:        p.Txns.H24.Buys,
		Sells24h:       p.Txns.H24.Sells,
		LiquidityUSD:   p.Liquidity.USD,
		MarketCap:      marketCapOf(p),
		PairCreatedAt:  time.UnixMilli(p.PairCreatedAt),
		BoostsActive:   p.Boosts.Active,
	}
}

func marketCapOf(p dexPair) float64 {
	if p.MarketCap > 0 {
		return p.MarketCap
	}
	return p.FDV
}

func ratio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func (d *DexScreenerSource) fetchBoostedTokens(ctx context.Context) ([]dexBoostedToken, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dexscreenerBoostsURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build dexscreener boosts request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dexscreener boosts request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("dexscreener boosts error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tokens []dexBoostedToken
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, fmt.Errorf("failed to decode dexscreener boosts response: %w", err)
	}
	return tokens, nil
}

func (d *DexScreenerSource) fetchPairsForToken(ctx context.Context, address string) (*dexPairsResponse, error) {
	url := fmt.Sprintf(dexscreenerPairsURL, address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build dexscreener pairs request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dexscreener pairs request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("dexscreener pairs error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out dexPairsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode dexscreener pairs response: %w", err)
	}
	return &out, nil
}

var (
	_ ports.PairSource      = (*DexScreenerSource)(nil)
	_ ports.LiquiditySource = (*DexScreenerSource)(nil)
)
