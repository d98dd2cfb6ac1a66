package ledger

import "github.com/KotFed0t/portfolio_tracker/internal/model"

// Metadata is static reference data used to enrich a newly opened position.
type Metadata struct {
	Name          string
	AssetType     model.AssetType
	Sector        string
	Country       string
	DividendYield float64
}

type Reference interface {
	Lookup(symbol string) (Metadata, bool)
}

type StaticReference map[string]Metadata

func (r StaticReference) Lookup(symbol string) (Metadata, bool) {
	m, ok := r[model.SymbolKey(symbol)]
	return m, ok
}

func DefaultMetadata() Metadata {
	return Metadata{
		AssetType: model.AssetStock,
		Sector:    "Unknown",
		Country:   "Unknown",
	}
}

// DefaultReference covers the symbols the dashboard knows about out of the box.
var DefaultReference = StaticReference{
	"AAPL":  {Name: "Apple Inc.", AssetType: model.AssetStock, Sector: "Technology", Country: "US", DividendYield: 0.5},
	"MSFT":  {Name: "Microsoft Corp.", AssetType: model.AssetStock, Sector: "Technology", Country: "US", DividendYield: 0.7},
	"GOOGL": {Name: "Alphabet Inc.", AssetType: model.AssetStock, Sector: "Communication Services", Country: "US"},
	"AMZN":  {Name: "Amazon.com Inc.", AssetType: model.AssetStock, Sector: "Consumer Discretionary", Country: "US"},
	"NVDA":  {Name: "NVIDIA Corp.", AssetType: model.AssetStock, Sector: "Technology", Country: "US", DividendYield: 0.03},
	"TSLA":  {Name: "Tesla Inc.", AssetType: model.AssetStock, Sector: "Consumer Discretionary", Country: "US"},
	"JPM":   {Name: "JPMorgan Chase & Co.", AssetType: model.AssetStock, Sector: "Financials", Country: "US", DividendYield: 2.2},
	"KO":    {Name: "Coca-Cola Co.", AssetType: model.AssetStock, Sector: "Consumer Staples", Country: "US", DividendYield: 3.0},
	"ASML":  {Name: "ASML Holding N.V.", AssetType: model.AssetStock, Sector: "Technology", Country: "NL", DividendYield: 0.9},
	"VOO":   {Name: "Vanguard S&P 500 ETF", AssetType: model.AssetETF, Sector: "Diversified", Country: "US", DividendYield: 1.3},
	"VTI":   {Name: "Vanguard Total Stock Market ETF", AssetType: model.AssetETF, Sector: "Diversified", Country: "US", DividendYield: 1.4},
	"BND":   {Name: "Vanguard Total Bond Market ETF", AssetType: model.AssetBond, Sector: "Fixed Income", Country: "US", DividendYield: 3.5},
	"BTC":   {Name: "Bitcoin", AssetType: model.AssetCrypto, Sector: "Crypto", Country: "Global"},
	"ETH":   {Name: "Ethereum", AssetType: model.AssetCrypto, Sector: "Crypto", Country: "Global"},
	"SOL":   {Name: "Solana", AssetType: model.AssetCrypto, Sector: "Crypto", Country: "Global"},
}
