package xslsxGenerator

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestGenerate(t *testing.T) {
	p := model.NewPortfolio("p1", "Main")
	p.Holdings["AAPL"] = model.Holding{Symbol: "AAPL", Name: "Apple Inc.", Shares: 2, AvgPrice: 100, CurrentPrice: 150, AssetType: model.AssetStock}
	p.Holdings["BND"] = model.Holding{Symbol: "BND", Name: "Vanguard Total Bond", Shares: 1, AvgPrice: 70, CurrentPrice: 60, AssetType: model.AssetETF}
	p.Transactions = []model.Transaction{
		{Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Type: model.TxBuy, Symbol: "BND", Shares: 1, Price: 70, TotalValue: 70},
		{Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Type: model.TxBuy, Symbol: "AAPL", Shares: 2, Price: 100, TotalValue: 200},
	}

	data, ext, err := New().Generate(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, ".xlsx", ext)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{holdingsSheet, transactionsSheet}, f.GetSheetList())

	title, err := f.GetCellValue(holdingsSheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Main", title)

	sym, _ := f.GetCellValue(holdingsSheet, "A3")
	assert.Equal(t, "AAPL", sym)
	sym, _ = f.GetCellValue(holdingsSheet, "A4")
	assert.Equal(t, "BND", sym)

	total, _ := f.GetCellValue(holdingsSheet, "G5")
	assert.Equal(t, "360", total)

	date, _ := f.GetCellValue(transactionsSheet, "A3")
	assert.Equal(t, "2024-03-01", date)
}
