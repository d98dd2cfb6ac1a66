package quoteApi

import (
	"context"
	"log/slog"
	"time"

	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/utils"
	"github.com/patrickmn/go-cache"
)

type Oracle interface {
	GetQuote(ctx context.Context, symbol string, assetType model.AssetType) (float64, error)
	Provider() string
}

// CachedOracle memoizes successful quotes for ttl. Failures are never cached.
type CachedOracle struct {
	next  Oracle
	cache *cache.Cache
}

func NewCachedOracle(next Oracle, ttl time.Duration) *CachedOracle {
	return &CachedOracle{next: next, cache: cache.New(ttl, 2*ttl)}
}

func (c *CachedOracle) Provider() string {
	return c.next.Provider()
}

func (c *CachedOracle) GetQuote(ctx context.Context, symbol string, assetType model.AssetType) (float64, error) {
	key := string(assetType) + ":" + model.SymbolKey(symbol)

	if price, found := c.cache.Get(key); found {
		slog.Debug("quote cache hit", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("key", key))
		return price.(float64), nil
	}

	price, err := c.next.GetQuote(ctx, symbol, assetType)
	if err != nil {
		return 0, err
	}

	c.cache.SetDefault(key, price)

	return price, nil
}
