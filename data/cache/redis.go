package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/portfolio_tracker/config"
	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/utils"
	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("error cache miss")

const portfolioKeyPrefix = "portfolio:"

type RedisCache struct {
	redis *redis.Client
	cfg   *config.Config
}

func NewRedisCache(redisClient *redis.Client, cfg *config.Config) *RedisCache {
	return &RedisCache{redis: redisClient, cfg: cfg}
}

func portfolioKey(portfolioID string) string {
	return portfolioKeyPrefix + portfolioID
}

// SetPortfolio stores the whole last-known-good snapshot of a portfolio.
func (r *RedisCache) SetPortfolio(ctx context.Context, portfolio model.Portfolio) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "RedisCache.SetPortfolio"
	slog.Debug("SetPortfolio start", slog.String("rqID", rqID), slog.String("op", op), slog.String("portfolioID", portfolio.ID))

	portfolioJson, err := json.Marshal(portfolio)
	if err != nil {
		slog.Error("can't marshall portfolio", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return fmt.Errorf("marshal portfolio: %w", err)
	}

	err = r.redis.Set(ctx, portfolioKey(portfolio.ID), portfolioJson, r.cfg.Cache.PortfolioExpiration).Err()
	if err != nil {
		slog.Error("failed on redis.Set", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("SetPortfolio completed", slog.String("rqID", rqID), slog.String("op", op))

	return nil
}

func (r *RedisCache) GetPortfolio(ctx context.Context, portfolioID string) (model.Portfolio, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "RedisCache.GetPortfolio"
	slog.Debug("GetPortfolio start", slog.String("rqID", rqID), slog.String("op", op), slog.String("portfolioID", portfolioID))

	res, err := r.redis.Get(ctx, portfolioKey(portfolioID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Portfolio{}, ErrCacheMiss
		}
		slog.Error("failed on redis.Get", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Portfolio{}, err
	}

	portfolio := model.Portfolio{}
	err = json.Unmarshal([]byte(res), &portfolio)
	if err != nil {
		slog.Error("can't unmarshall portfolio", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Portfolio{}, fmt.Errorf("unmarshal portfolio: %w", err)
	}

	slog.Debug("GetPortfolio finished", slog.String("rqID", rqID), slog.String("op", op))

	return portfolio, nil
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.redis.Ping(ctx).Err()
}
