package marketService

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/KotFed0t/portfolio_tracker/internal/externalApi"
	"github.com/KotFed0t/portfolio_tracker/internal/ledger"
	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/internal/service"
	"github.com/KotFed0t/portfolio_tracker/internal/state"
	"github.com/KotFed0t/portfolio_tracker/utils"
)

const (
	MinPrice = 0.01

	stockVolatility  = 0.005
	cryptoVolatility = 0.015
)

type Oracle interface {
	GetQuote(ctx context.Context, symbol string, assetType model.AssetType) (float64, error)
	Provider() string
}

type MarketService struct {
	oracle   Oracle
	sessions *state.Registry

	mu  sync.Mutex
	rnd *rand.Rand
}

// New uses rnd for the fallback random walk, nil means a randomly seeded source.
func New(oracle Oracle, sessions *state.Registry, rnd *rand.Rand) *MarketService {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &MarketService{oracle: oracle, sessions: sessions, rnd: rnd}
}

func (s *MarketService) Provider() string {
	return s.oracle.Provider()
}

func (s *MarketService) GetQuote(ctx context.Context, symbol string, assetType model.AssetType) (float64, error) {
	price, err := s.oracle.GetQuote(ctx, symbol, assetType)
	if err != nil {
		if errors.Is(err, externalApi.ErrQuoteUnavailable) || errors.Is(err, externalApi.ErrNotFound) {
			return 0, service.ErrNotFound
		}
		return 0, err
	}
	return price, nil
}

// Tick refreshes currentPrice of every holding in portfolios with the market open.
// Shares and avgPrice are never touched and nothing is written remotely.
func (s *MarketService) Tick(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "MarketService.Tick"

	updated := 0
	for _, session := range s.sessions.All() {
		if !session.MarketOpen() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		prices := s.quotes(ctx, session.Portfolio())

		_, _ = session.Update(func(p *model.Portfolio) error {
			updated += ledger.SetPrices(p.Holdings, prices)
			return nil
		})
	}

	slog.Debug("market tick done", slog.String("rqID", rqID), slog.String("op", op), slog.Int("updated", updated))

	return nil
}

func (s *MarketService) quotes(ctx context.Context, p model.Portfolio) map[string]float64 {
	prices := make(map[string]float64, len(p.Holdings))
	for _, h := range p.SortedHoldings() {
		price, err := s.oracle.GetQuote(ctx, h.Symbol, h.AssetType)
		if err != nil {
			last := h.CurrentPrice
			if last <= 0 {
				last = h.AvgPrice
			}
			price = s.walk(last, h.AssetType)
		}
		prices[h.Symbol] = math.Max(price, MinPrice)
	}
	return prices
}

// walk moves price by a uniform step within the asset class volatility.
func (s *MarketService) walk(price float64, assetType model.AssetType) float64 {
	vol := stockVolatility
	if assetType == model.AssetCrypto {
		vol = cryptoVolatility
	}

	s.mu.Lock()
	step := (s.rnd.Float64()*2 - 1) * vol
	s.mu.Unlock()

	return math.Max(price*(1+step), MinPrice)
}
