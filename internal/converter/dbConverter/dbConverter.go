package dbConverter

import (
	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/internal/model/dbModel"
	"github.com/KotFed0t/portfolio_tracker/internal/sanitizer"
	"github.com/shopspring/decimal"
)

// все числа из БД проходят через sanitizer перед попаданием в ledger

func ConvertHolding(dbHolding dbModel.Holding) model.Holding {
	return model.Holding{
		ID:               dbHolding.HoldingID,
		Symbol:           model.SymbolKey(dbHolding.Symbol),
		Name:             dbHolding.Name,
		Shares:           sanitizer.Number(dbHolding.Shares),
		AvgPrice:         sanitizer.Number(dbHolding.AvgPrice),
		CurrentPrice:     sanitizer.Number(dbHolding.CurrentPrice),
		AssetType:        model.ParseAssetType(dbHolding.AssetType),
		Sector:           dbHolding.Sector,
		Country:          dbHolding.Country,
		DividendYield:    sanitizer.Number(dbHolding.DividendYield),
		TargetAllocation: sanitizer.Number(dbHolding.TargetAllocation),
	}
}

func HoldingToDb(portfolioID string, h model.Holding) dbModel.Holding {
	return dbModel.Holding{
		HoldingID:        h.ID,
		PortfolioID:      portfolioID,
		Symbol:           model.SymbolKey(h.Symbol),
		Name:             h.Name,
		Shares:           decimal.NewFromFloat(h.Shares),
		AvgPrice:         decimal.NewFromFloat(h.AvgPrice),
		CurrentPrice:     decimal.NewFromFloat(h.CurrentPrice),
		AssetType:        string(h.AssetType),
		Sector:           h.Sector,
		Country:          h.Country,
		DividendYield:    decimal.NewFromFloat(h.DividendYield),
		TargetAllocation: decimal.NewFromFloat(h.TargetAllocation),
	}
}

func ConvertTransaction(dbTx dbModel.Transaction) model.Transaction {
	shares := sanitizer.Number(dbTx.Shares)
	price := sanitizer.Number(dbTx.Price)
	return model.Transaction{
		ID:         dbTx.TransactionID,
		Date:       dbTx.TxDate,
		Type:       model.TxType(dbTx.TxType),
		Symbol:     model.SymbolKey(dbTx.Symbol),
		Name:       dbTx.Name,
		Shares:     shares,
		Price:      price,
		TotalValue: shares * price,
	}
}

func TransactionToDb(portfolioID string, tx model.Transaction) dbModel.Transaction {
	return dbModel.Transaction{
		TransactionID: tx.ID,
		PortfolioID:   portfolioID,
		TxDate:        tx.Date,
		TxType:        string(tx.Type),
		Symbol:        model.SymbolKey(tx.Symbol),
		Name:          tx.Name,
		Shares:        decimal.NewFromFloat(tx.Shares),
		Price:         decimal.NewFromFloat(tx.Price),
		TotalValue:    decimal.NewFromFloat(tx.TotalValue),
	}
}

func ConvertPortfolio(dbPortfolio dbModel.Portfolio) model.Portfolio {
	p := model.NewPortfolio(dbPortfolio.PortfolioID, dbPortfolio.Name)
	p.CashBalance = sanitizer.Number(dbPortfolio.CashBalance)
	return p
}

func ConvertManualAsset(dbAsset dbModel.ManualAsset) model.ManualAsset {
	return model.ManualAsset{
		ID:       dbAsset.AssetID,
		Name:     dbAsset.Name,
		Category: dbAsset.Category,
		Value:    sanitizer.Number(dbAsset.Value),
	}
}

func ConvertLiability(dbLiability dbModel.Liability) model.Liability {
	return model.Liability{
		ID:           dbLiability.LiabilityID,
		Name:         dbLiability.Name,
		Balance:      sanitizer.Number(dbLiability.Balance),
		InterestRate: sanitizer.Number(dbLiability.InterestRate),
	}
}
