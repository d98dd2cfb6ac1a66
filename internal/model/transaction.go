package model

import "time"

type TxType string

const (
	TxBuy  TxType = "BUY"
	TxSell TxType = "SELL"
)

type Transaction struct {
	ID         string    `json:"id"`
	Date       time.Time `json:"date"`
	Type       TxType    `json:"type"`
	Symbol     string    `json:"symbol"`
	Name       string    `json:"name,omitempty"`
	Shares     float64   `json:"shares"`
	Price      float64   `json:"price"`
	TotalValue float64   `json:"totalValue"`
}

// TradeRequest is a single BUY/SELL as entered by a user or the chat assistant.
type TradeRequest struct {
	Type      TxType    `json:"type"`
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name,omitempty"`
	Shares    any       `json:"shares"`
	Price     any       `json:"price"`
	AssetType AssetType `json:"assetType,omitempty"`
}

// ImportRecord is one untrusted row coming from a CSV file or a broker feed.
// Shares and Price may be numbers or formatted strings.
type ImportRecord struct {
	Date   string `json:"date"`
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
	Shares any    `json:"shares"`
	Price  any    `json:"price"`
	Name   string `json:"name,omitempty"`
}
