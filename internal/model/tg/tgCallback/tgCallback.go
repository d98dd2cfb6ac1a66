package tgCallback

// Callbacks buttons uniques
const (
	RefreshPortfolio string = "refresh_portfolio"
	ExportPortfolio  string = "export_portfolio"
	MarketOpen       string = "market_open"  // включить симуляцию котировок
	MarketClose      string = "market_close" // выключить симуляцию котировок
)
