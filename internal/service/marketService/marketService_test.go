package marketService

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/KotFed0t/portfolio_tracker/internal/externalApi"
	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/internal/service"
	"github.com/KotFed0t/portfolio_tracker/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOracle struct {
	prices map[string]float64
}

func (o fakeOracle) Provider() string { return "fake" }

func (o fakeOracle) GetQuote(_ context.Context, symbol string, _ model.AssetType) (float64, error) {
	p, ok := o.prices[symbol]
	if !ok {
		return 0, externalApi.ErrQuoteUnavailable
	}
	return p, nil
}

func newPortfolio(id string, holdings ...model.Holding) model.Portfolio {
	p := model.NewPortfolio(id, id)
	for _, h := range holdings {
		p.Holdings[h.Symbol] = h
	}
	return p
}

func TestTick_OnlyPricesChange(t *testing.T) {
	reg := state.NewRegistry()
	open := state.NewSession(newPortfolio("open",
		model.Holding{Symbol: "AAPL", Shares: 2, AvgPrice: 100, CurrentPrice: 100, AssetType: model.AssetStock},
		model.Holding{Symbol: "BTC", Shares: 0.5, AvgPrice: 60000, CurrentPrice: 60000, AssetType: model.AssetCrypto},
		model.Holding{Symbol: "XYZ", Shares: 1, AvgPrice: 50, CurrentPrice: 50, AssetType: model.AssetStock},
	))
	open.SetMarketOpen(true)
	reg.Put(open)

	closed := state.NewSession(newPortfolio("closed",
		model.Holding{Symbol: "AAPL", Shares: 1, AvgPrice: 100, CurrentPrice: 100},
	))
	reg.Put(closed)

	s := New(fakeOracle{prices: map[string]float64{"AAPL": 120}}, reg, rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, s.Tick(context.Background()))

	p := open.Portfolio()
	assert.Equal(t, 120.0, p.Holdings["AAPL"].CurrentPrice)
	assert.Equal(t, 2.0, p.Holdings["AAPL"].Shares)
	assert.Equal(t, 100.0, p.Holdings["AAPL"].AvgPrice)

	// no quote: bounded random walk
	assert.InDelta(t, 60000, p.Holdings["BTC"].CurrentPrice, 60000*0.015)
	assert.InDelta(t, 50, p.Holdings["XYZ"].CurrentPrice, 50*0.005)
	assert.Equal(t, 60000.0, p.Holdings["BTC"].AvgPrice)

	assert.Equal(t, 100.0, closed.Portfolio().Holdings["AAPL"].CurrentPrice)
}

func TestWalk_FlooredAtMinPrice(t *testing.T) {
	s := New(fakeOracle{}, state.NewRegistry(), rand.New(rand.NewPCG(3, 4)))

	for range 100 {
		assert.GreaterOrEqual(t, s.walk(0.001, model.AssetCrypto), MinPrice)
	}
}

func TestTick_ZeroPriceFallsBackToAvg(t *testing.T) {
	reg := state.NewRegistry()
	sess := state.NewSession(newPortfolio("p",
		model.Holding{Symbol: "VOO", Shares: 1, AvgPrice: 400, CurrentPrice: 0, AssetType: model.AssetETF},
	))
	sess.SetMarketOpen(true)
	reg.Put(sess)

	s := New(fakeOracle{}, reg, rand.New(rand.NewPCG(5, 6)))
	require.NoError(t, s.Tick(context.Background()))

	assert.InDelta(t, 400, sess.Portfolio().Holdings["VOO"].CurrentPrice, 400*0.005)
}

func TestGetQuote_MapsUnavailable(t *testing.T) {
	s := New(fakeOracle{prices: map[string]float64{"AAPL": 1}}, state.NewRegistry(), nil)

	price, err := s.GetQuote(context.Background(), "AAPL", model.AssetStock)
	require.NoError(t, err)
	assert.Equal(t, 1.0, price)

	_, err = s.GetQuote(context.Background(), "NOPE", model.AssetStock)
	assert.ErrorIs(t, err, service.ErrNotFound)
	assert.Equal(t, "fake", s.Provider())
}
