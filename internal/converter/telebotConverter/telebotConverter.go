package telebotConverter

import (
	"fmt"
	"strings"

	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/internal/model/tg/tgCallback"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v4"
)

var (
	selector = &tele.ReplyMarkup{}

	BtnRefresh     = selector.Data("🔄 Обновить", tgCallback.RefreshPortfolio)
	BtnExport      = selector.Data("📥 Выгрузить в xlsx", tgCallback.ExportPortfolio)
	BtnMarketOpen  = selector.Data("▶️ Открыть рынок", tgCallback.MarketOpen)
	BtnMarketClose = selector.Data("⏸ Закрыть рынок", tgCallback.MarketClose)
)

func money(v float64) string {
	return "$" + decimal.NewFromFloat(v).StringFixed(2)
}

func PortfolioDetailsResponse(portfolio model.Portfolio) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}
	var sb strings.Builder

	summary := portfolio.Summary()

	// Заголовок портфеля
	sb.WriteString(fmt.Sprintf("📊 Портфель: %s\n", portfolio.Name))
	sb.WriteString(fmt.Sprintf("🆔 %s\n", portfolio.ID))
	if portfolio.Local {
		sb.WriteString("⚠️ сохранен только локально\n")
	}
	sb.WriteString(fmt.Sprintf("💰 Стоимость: %s\n", money(summary.TotalValue)))
	sb.WriteString(fmt.Sprintf("💵 Вложено: %s\n\n", money(summary.CostBasis)))

	if len(portfolio.Holdings) == 0 {
		sb.WriteString("Портфель пуст. Добавьте позицию: /buy AAPL 10 150\n")
	} else {
		sb.WriteString("📋 Состав портфеля:\n\n")
	}

	for i, h := range portfolio.SortedHoldings() {
		weight := 0.0
		if summary.TotalValue > 0 {
			weight = h.MarketValue() / summary.TotalValue * 100
		}

		sb.WriteString(fmt.Sprintf("%d. %s (%s)\n", i+1, h.Symbol, h.Name))
		sb.WriteString(fmt.Sprintf("   ▸ Кол-во: %s\n", decimal.NewFromFloat(h.Shares).String()))
		sb.WriteString(fmt.Sprintf("   ▸ Средняя цена: %s\n", money(h.AvgPrice)))
		sb.WriteString(fmt.Sprintf("   ▸ Текущая цена: %s\n", money(h.CurrentPrice)))
		sb.WriteString(fmt.Sprintf("   ▸ Стоимость: %s (%.1f%%)\n\n", money(h.MarketValue()), weight))
	}

	markup.Inline(
		markup.Row(BtnRefresh, BtnExport),
		markup.Row(BtnMarketOpen, BtnMarketClose),
	)

	return sb.String(), markup
}

func TransactionResponse(tx model.TradeRequest, portfolio model.Portfolio) string {
	h, held := portfolio.Holdings[model.SymbolKey(tx.Symbol)]

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("✅ %s %s записано\n", tx.Type, model.SymbolKey(tx.Symbol)))
	if held {
		sb.WriteString(fmt.Sprintf("В портфеле: %s шт. по средней %s\n", decimal.NewFromFloat(h.Shares).String(), money(h.AvgPrice)))
	} else {
		sb.WriteString("Позиция закрыта\n")
	}
	sb.WriteString(fmt.Sprintf("Стоимость портфеля: %s", money(portfolio.TotalValue())))
	return sb.String()
}
