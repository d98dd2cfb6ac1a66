package xslsxGenerator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/utils"
	"github.com/xuri/excelize/v2"
)

const (
	holdingsSheet     = "Holdings"
	transactionsSheet = "Transactions"
)

type XSLSXGenerator struct{}

func New() *XSLSXGenerator {
	return &XSLSXGenerator{}
}

func (g *XSLSXGenerator) Generate(ctx context.Context, portfolio model.Portfolio) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XSLSXGenerator.Generate"

	slog.Debug("Generate start", slog.String("rqID", rqID), slog.String("op", op), slog.String("portfolioID", portfolio.ID))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	if err = g.fillHoldings(f, portfolio); err != nil {
		slog.Error("got error while filling holdings", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	if err = g.fillTransactions(f, portfolio); err != nil {
		slog.Error("got error while filling transactions", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	// Удаляем лист по умолчанию "Sheet1"
	if err := f.DeleteSheet("Sheet1"); err != nil {
		slog.Error("got error while deleting Sheet1", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		slog.Error("got error while Saving file to bytes buffer", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	slog.Debug("Generate completed", slog.String("rqID", rqID), slog.String("op", op))

	return buf.Bytes(), ".xlsx", nil
}

// titleRow merges from:to on row 1 and paints it with color.
func (g *XSLSXGenerator) titleRow(f *excelize.File, sheet, from, to, title, color string) error {
	if err := f.MergeCell(sheet, from, to); err != nil {
		return err
	}

	_ = f.SetCellStr(sheet, from, title)

	styleID, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Font: &excelize.Font{
			Bold: true,
			Size: 11,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{color},
		},
	})
	if err != nil {
		return err
	}

	if err := f.SetCellStyle(sheet, from, from, styleID); err != nil {
		return fmt.Errorf("apply style: %w", err)
	}

	return nil
}

func (g *XSLSXGenerator) fillHoldings(f *excelize.File, portfolio model.Portfolio) error {
	if _, err := f.NewSheet(holdingsSheet); err != nil {
		return err
	}

	title := portfolio.Name
	if title == "" {
		title = portfolio.ID
	}
	if err := g.titleRow(f, holdingsSheet, "A1", "J1", title, "#cfe2f3"); err != nil {
		return err
	}

	header := []any{"symbol", "name", "type", "shares", "avg price", "current price", "market value", "weight, %", "sector", "country"}
	if err := f.SetSheetRow(holdingsSheet, "A2", &header); err != nil {
		return err
	}

	total := portfolio.TotalValue()
	holdings := portfolio.SortedHoldings()

	for i, h := range holdings {
		weight := 0.0
		if total > 0 {
			weight = h.MarketValue() / total * 100
		}
		row := []any{h.Symbol, h.Name, string(h.AssetType), h.Shares, h.AvgPrice, h.CurrentPrice, h.MarketValue(), weight, h.Sector, h.Country}
		if err := f.SetSheetRow(holdingsSheet, fmt.Sprintf("A%d", i+3), &row); err != nil {
			return err
		}
	}

	// итог
	totalRow := len(holdings) + 3
	_ = f.SetCellStr(holdingsSheet, fmt.Sprintf("F%d", totalRow), "total")
	_ = f.SetCellValue(holdingsSheet, fmt.Sprintf("G%d", totalRow), total)

	return nil
}

func (g *XSLSXGenerator) fillTransactions(f *excelize.File, portfolio model.Portfolio) error {
	if _, err := f.NewSheet(transactionsSheet); err != nil {
		return err
	}

	if err := g.titleRow(f, transactionsSheet, "A1", "F1", "Transaction history", "#cccccc"); err != nil {
		return err
	}

	header := []any{"date", "type", "symbol", "shares", "price", "total"}
	if err := f.SetSheetRow(transactionsSheet, "A2", &header); err != nil {
		return err
	}

	for i, tx := range portfolio.Transactions {
		row := []any{tx.Date.Format("2006-01-02"), string(tx.Type), tx.Symbol, tx.Shares, tx.Price, tx.TotalValue}
		if err := f.SetSheetRow(transactionsSheet, fmt.Sprintf("A%d", i+3), &row); err != nil {
			return err
		}
	}

	return nil
}
