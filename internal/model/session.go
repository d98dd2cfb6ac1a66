package model

// ChatSession связывает чат ассистента с портфелем
type ChatSession struct {
	PortfolioID string `json:"portfolioId"`
}
