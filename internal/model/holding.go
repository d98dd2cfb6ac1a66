package model

import "strings"

type AssetType string

const (
	AssetStock  AssetType = "stock"
	AssetETF    AssetType = "etf"
	AssetCrypto AssetType = "crypto"
	AssetBond   AssetType = "bond"
)

func ParseAssetType(s string) AssetType {
	switch AssetType(strings.ToLower(strings.TrimSpace(s))) {
	case AssetETF:
		return AssetETF
	case AssetCrypto:
		return AssetCrypto
	case AssetBond:
		return AssetBond
	default:
		return AssetStock
	}
}

type Holding struct {
	ID               string    `json:"id"`
	Symbol           string    `json:"symbol"`
	Name             string    `json:"name"`
	Shares           float64   `json:"shares"`
	AvgPrice         float64   `json:"avgPrice"`
	CurrentPrice     float64   `json:"currentPrice"`
	AssetType        AssetType `json:"assetType"`
	Sector           string    `json:"sector"`
	Country          string    `json:"country"`
	DividendYield    float64   `json:"dividendYield"`
	TargetAllocation float64   `json:"targetAllocation"`
}

func (h Holding) MarketValue() float64 {
	return h.Shares * h.CurrentPrice
}

// HoldingPatch описывает прямое редактирование позиции, nil поля не меняются
type HoldingPatch struct {
	Name             *string  `json:"name,omitempty"`
	Shares           *float64 `json:"shares,omitempty"`
	AvgPrice         *float64 `json:"avgPrice,omitempty"`
	CurrentPrice     *float64 `json:"currentPrice,omitempty"`
	Sector           *string  `json:"sector,omitempty"`
	Country          *string  `json:"country,omitempty"`
	DividendYield    *float64 `json:"dividendYield,omitempty"`
	TargetAllocation *float64 `json:"targetAllocation,omitempty"`
}

// SymbolKey is the case-insensitive ledger key of a symbol.
func SymbolKey(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
