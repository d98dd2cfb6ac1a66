package dbConverter

import (
	"testing"
	"time"

	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/internal/model/dbModel"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestConvertHolding_NormalizesSymbolAndNumbers(t *testing.T) {
	h := ConvertHolding(dbModel.Holding{
		HoldingID:    "h1",
		Symbol:       " aapl",
		Shares:       decimal.RequireFromString("2.5"),
		AvgPrice:     decimal.RequireFromString("100.25"),
		CurrentPrice: decimal.RequireFromString("110"),
		AssetType:    "ETF",
	})

	assert.Equal(t, "AAPL", h.Symbol)
	assert.Equal(t, 2.5, h.Shares)
	assert.Equal(t, 100.25, h.AvgPrice)
	assert.Equal(t, 110.0, h.CurrentPrice)
	assert.Equal(t, model.AssetETF, h.AssetType)
}

func TestConvertTransaction_RecomputesTotal(t *testing.T) {
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	tx := ConvertTransaction(dbModel.Transaction{
		TransactionID: "t1",
		TxDate:        date,
		TxType:        "SELL",
		Symbol:        "x",
		Shares:        decimal.NewFromInt(4),
		Price:         decimal.RequireFromString("2.5"),
		TotalValue:    decimal.NewFromInt(999),
	})

	assert.Equal(t, model.TxSell, tx.Type)
	assert.Equal(t, "X", tx.Symbol)
	assert.Equal(t, 10.0, tx.TotalValue)
	assert.Equal(t, date, tx.Date)
}
