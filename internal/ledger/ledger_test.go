package ledger

import (
	"testing"

	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tx(typ model.TxType, symbol string, shares, price float64) model.Transaction {
	return model.Transaction{Type: typ, Symbol: symbol, Shares: shares, Price: price, TotalValue: shares * price}
}

func TestApply_WeightedAverageCost(t *testing.T) {
	l := New(nil)
	holdings := map[string]model.Holding{}

	_, err := l.Apply(holdings, tx(model.TxBuy, "X", 100, 10), "")
	require.NoError(t, err)
	res, err := l.Apply(holdings, tx(model.TxBuy, "x", 100, 20), "")
	require.NoError(t, err)

	assert.False(t, res.Created)
	require.Len(t, holdings, 1)
	h := holdings["X"]
	assert.InDelta(t, 200, h.Shares, 1e-9)
	assert.InDelta(t, 15, h.AvgPrice, 1e-9)
}

func TestApply_NewHoldingEnrichedFromReference(t *testing.T) {
	l := New(DefaultReference)
	holdings := map[string]model.Holding{}

	res, err := l.Apply(holdings, tx(model.TxBuy, " aapl ", 3, 150), "")
	require.NoError(t, err)

	assert.True(t, res.Created)
	h := holdings["AAPL"]
	assert.NotEmpty(t, h.ID)
	assert.Equal(t, "AAPL", h.Symbol)
	assert.Equal(t, "Apple Inc.", h.Name)
	assert.Equal(t, "Technology", h.Sector)
	assert.Equal(t, "US", h.Country)
	assert.Equal(t, 150.0, h.AvgPrice)
	assert.Equal(t, 150.0, h.CurrentPrice)
	assert.Equal(t, model.AssetStock, h.AssetType)
}

func TestApply_NewHoldingDefaults(t *testing.T) {
	l := New(DefaultReference)
	holdings := map[string]model.Holding{}

	_, err := l.Apply(holdings, tx(model.TxBuy, "ZZZZ", 1, 2), model.AssetCrypto)
	require.NoError(t, err)

	h := holdings["ZZZZ"]
	assert.Equal(t, "ZZZZ", h.Name)
	assert.Equal(t, "Unknown", h.Sector)
	assert.Equal(t, "Unknown", h.Country)
	assert.Equal(t, 0.0, h.DividendYield)
	assert.Equal(t, model.AssetCrypto, h.AssetType)
}

func TestApply_SellKeepsAvgPrice(t *testing.T) {
	l := New(nil)
	holdings := map[string]model.Holding{}

	_, _ = l.Apply(holdings, tx(model.TxBuy, "X", 10, 10), "")
	_, err := l.Apply(holdings, tx(model.TxSell, "X", 4, 100), "")
	require.NoError(t, err)

	assert.InDelta(t, 6, holdings["X"].Shares, 1e-9)
	assert.InDelta(t, 10, holdings["X"].AvgPrice, 1e-9)
}

func TestApply_SellToZeroRemovesHolding(t *testing.T) {
	l := New(nil)
	holdings := map[string]model.Holding{}

	_, _ = l.Apply(holdings, tx(model.TxBuy, "X", 10, 5), "")
	_, _ = l.Apply(holdings, tx(model.TxBuy, "Y", 1, 3), "")
	res, err := l.Apply(holdings, tx(model.TxSell, "X", 10, 7), "")
	require.NoError(t, err)

	assert.True(t, res.Removed)
	assert.NotContains(t, holdings, "X")
	assert.InDelta(t, 3, model.TotalValue(holdings), 1e-9)
}

func TestApply_SellWithinEpsilonRemovesHolding(t *testing.T) {
	l := New(nil)
	holdings := map[string]model.Holding{}

	_, _ = l.Apply(holdings, tx(model.TxBuy, "X", 0.3, 1), "")
	_, _ = l.Apply(holdings, tx(model.TxSell, "X", 0.1, 1), "")
	_, _ = l.Apply(holdings, tx(model.TxSell, "X", 0.2, 1), "")

	assert.Empty(t, holdings)
}

func TestApply_SellMoreThanHeldIsClamped(t *testing.T) {
	l := New(nil)
	holdings := map[string]model.Holding{}

	_, _ = l.Apply(holdings, tx(model.TxBuy, "X", 5, 5), "")
	res, err := l.Apply(holdings, tx(model.TxSell, "X", 8, 5), "")
	require.NoError(t, err)

	assert.True(t, res.Clamped)
	assert.True(t, res.Removed)
	assert.Empty(t, holdings)
}

func TestApply_SellUnknownSymbolIsRejected(t *testing.T) {
	l := New(nil)
	holdings := map[string]model.Holding{}

	_, err := l.Apply(holdings, tx(model.TxSell, "X", 1, 5), "")

	assert.ErrorIs(t, err, ErrUnknownHolding)
	assert.Empty(t, holdings)
}

func TestApply_InvalidTransactions(t *testing.T) {
	l := New(nil)
	holdings := map[string]model.Holding{}

	cases := []model.Transaction{
		tx(model.TxBuy, "", 1, 1),
		tx(model.TxBuy, "X", 0, 1),
		tx(model.TxBuy, "X", -1, 1),
		tx(model.TxBuy, "X", 1, -1),
		tx("HOLD", "X", 1, 1),
	}
	for _, c := range cases {
		_, err := l.Apply(holdings, c, "")
		assert.ErrorIs(t, err, ErrInvalidTransaction)
	}
	assert.Empty(t, holdings)
}

func TestTotalValue_IsPureFunctionOfHoldings(t *testing.T) {
	holdings := map[string]model.Holding{
		"A": {Symbol: "A", Shares: 0.1, CurrentPrice: 0.7},
		"B": {Symbol: "B", Shares: 3.3, CurrentPrice: 1.1},
		"C": {Symbol: "C", Shares: 1e-3, CurrentPrice: 12345.678},
		"D": {Symbol: "D", Shares: 17, CurrentPrice: 0.3},
	}

	first := model.TotalValue(holdings)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, model.TotalValue(holdings))
	}
}

func TestPrune(t *testing.T) {
	holdings := map[string]model.Holding{
		"A": {Symbol: "A", Shares: 1e-9},
		"B": {Symbol: "B", Shares: 2},
		"C": {Symbol: "C", Shares: 0},
	}

	removed := Prune(holdings)

	assert.ElementsMatch(t, []string{"A", "C"}, removed)
	assert.Len(t, holdings, 1)
	assert.Contains(t, holdings, "B")
}

func TestEdit(t *testing.T) {
	holdings := map[string]model.Holding{"A": {Symbol: "A", Shares: 2, AvgPrice: 10}}

	price := 12.5
	res, err := Edit(holdings, "a", model.HoldingPatch{AvgPrice: &price})
	require.NoError(t, err)
	assert.False(t, res.Removed)
	assert.Equal(t, 12.5, holdings["A"].AvgPrice)

	zero := 0.0
	res, err = Edit(holdings, "A", model.HoldingPatch{Shares: &zero})
	require.NoError(t, err)
	assert.True(t, res.Removed)
	assert.Empty(t, holdings)

	_, err = Edit(holdings, "A", model.HoldingPatch{Shares: &zero})
	assert.ErrorIs(t, err, ErrUnknownHolding)
}

func TestSetPrices_TouchesOnlyCurrentPrice(t *testing.T) {
	holdings := map[string]model.Holding{"A": {Symbol: "A", Shares: 2, AvgPrice: 10, CurrentPrice: 10}}

	n := SetPrices(holdings, map[string]float64{"a": 11, "GONE": 5})

	assert.Equal(t, 1, n)
	assert.Equal(t, model.Holding{Symbol: "A", Shares: 2, AvgPrice: 10, CurrentPrice: 11}, holdings["A"])
	assert.NotContains(t, holdings, "GONE")
}
