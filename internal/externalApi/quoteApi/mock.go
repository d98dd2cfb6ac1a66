package quoteApi

import (
	"context"
	"hash/fnv"

	"github.com/KotFed0t/portfolio_tracker/internal/externalApi"
	"github.com/KotFed0t/portfolio_tracker/internal/model"
)

// MockOracle returns a stable synthetic price per symbol. It is used when no real feed is configured.
type MockOracle struct{}

func NewMockOracle() *MockOracle {
	return &MockOracle{}
}

func (m *MockOracle) Provider() string {
	return ProviderMock
}

func (m *MockOracle) GetQuote(_ context.Context, symbol string, assetType model.AssetType) (float64, error) {
	symbol = model.SymbolKey(symbol)
	if symbol == "" {
		return 0, externalApi.ErrQuoteUnavailable
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	base := 10 + float64(h.Sum32()%50000)/100

	if assetType == model.AssetCrypto {
		base *= 100
	}

	return base, nil
}
