package dbModel

import (
	"time"

	"github.com/shopspring/decimal"
)

type Portfolio struct {
	PortfolioID string          `db:"portfolio_id"`
	Name        string          `db:"name"`
	CashBalance decimal.Decimal `db:"cash_balance"`
	CreatedAt   time.Time       `db:"dt_create"`
}

type ManualAsset struct {
	AssetID     string          `db:"asset_id"`
	PortfolioID string          `db:"portfolio_id"`
	Name        string          `db:"name"`
	Category    string          `db:"category"`
	Value       decimal.Decimal `db:"value"`
}

type Liability struct {
	LiabilityID  string          `db:"liability_id"`
	PortfolioID  string          `db:"portfolio_id"`
	Name         string          `db:"name"`
	Balance      decimal.Decimal `db:"balance"`
	InterestRate decimal.Decimal `db:"interest_rate"`
}
