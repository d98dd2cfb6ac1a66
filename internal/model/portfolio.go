package model

import (
	"maps"
	"slices"
)

type Portfolio struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	CashBalance  float64            `json:"cashBalance"`
	Holdings     map[string]Holding `json:"holdings"`
	Transactions []Transaction      `json:"transactions"`
	ManualAssets []ManualAsset      `json:"manualAssets"`
	Liabilities  []Liability        `json:"liabilities"`
	// Local is set when the portfolio could not be created remotely and lives only in this process and the cache.
	Local bool `json:"local,omitempty"`
}

type ManualAsset struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Value    float64 `json:"value"`
}

type Liability struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Balance      float64 `json:"balance"`
	InterestRate float64 `json:"interestRate"`
}

func NewPortfolio(id, name string) Portfolio {
	return Portfolio{
		ID:           id,
		Name:         name,
		Holdings:     map[string]Holding{},
		Transactions: []Transaction{},
		ManualAssets: []ManualAsset{},
		Liabilities:  []Liability{},
	}
}

// TotalValue is always recomputed from the holdings, it is never stored.
func (p Portfolio) TotalValue() float64 {
	return TotalValue(p.Holdings)
}

// TotalValue sums shares*currentPrice in symbol order so that the result does not depend on map iteration order.
func TotalValue(holdings map[string]Holding) float64 {
	total := 0.0
	for _, key := range slices.Sorted(maps.Keys(holdings)) {
		total += holdings[key].MarketValue()
	}
	return total
}

// SortedHoldings returns holdings ordered by symbol.
func (p Portfolio) SortedHoldings() []Holding {
	res := make([]Holding, 0, len(p.Holdings))
	for _, key := range slices.Sorted(maps.Keys(p.Holdings)) {
		res = append(res, p.Holdings[key])
	}
	return res
}

func (p Portfolio) Clone() Portfolio {
	c := p
	c.Holdings = maps.Clone(p.Holdings)
	if c.Holdings == nil {
		c.Holdings = map[string]Holding{}
	}
	c.Transactions = slices.Clone(p.Transactions)
	c.ManualAssets = slices.Clone(p.ManualAssets)
	c.Liabilities = slices.Clone(p.Liabilities)
	return c
}

type PortfolioSummary struct {
	PortfolioID   string  `json:"portfolioId"`
	PortfolioName string  `json:"portfolioName"`
	TotalValue    float64 `json:"totalValue"`
	CostBasis     float64 `json:"costBasis"`
	HoldingsCount int     `json:"holdingsCount"`
}

func (p Portfolio) Summary() PortfolioSummary {
	cost := 0.0
	for _, h := range p.SortedHoldings() {
		cost += h.Shares * h.AvgPrice
	}
	return PortfolioSummary{
		PortfolioID:   p.ID,
		PortfolioName: p.Name,
		TotalValue:    p.TotalValue(),
		CostBasis:     cost,
		HoldingsCount: len(p.Holdings),
	}
}

// ChangeEvent is a remote change notification for a portfolio.
type ChangeEvent struct {
	PortfolioID string `json:"portfolio_id"`
	Table       string `json:"table"`
}
