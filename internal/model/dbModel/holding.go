package dbModel

import (
	"time"

	"github.com/shopspring/decimal"
)

type Holding struct {
	HoldingID        string          `db:"holding_id"`
	PortfolioID      string          `db:"portfolio_id"`
	Symbol           string          `db:"symbol"`
	Name             string          `db:"name"`
	Shares           decimal.Decimal `db:"shares"`
	AvgPrice         decimal.Decimal `db:"avg_price"`
	CurrentPrice     decimal.Decimal `db:"current_price"`
	AssetType        string          `db:"asset_type"`
	Sector           string          `db:"sector"`
	Country          string          `db:"country"`
	DividendYield    decimal.Decimal `db:"dividend_yield"`
	TargetAllocation decimal.Decimal `db:"target_allocation"`
	UpdatedAt        time.Time       `db:"dt_update"`
}

type Transaction struct {
	TransactionID string          `db:"transaction_id"`
	PortfolioID   string          `db:"portfolio_id"`
	TxDate        time.Time       `db:"tx_date"`
	TxType        string          `db:"tx_type"`
	Symbol        string          `db:"symbol"`
	Name          string          `db:"name"`
	Shares        decimal.Decimal `db:"shares"`
	Price         decimal.Decimal `db:"price"`
	TotalValue    decimal.Decimal `db:"total_value"`
	CreatedAt     time.Time       `db:"dt_create"`
}
