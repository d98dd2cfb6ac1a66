package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/KotFed0t/portfolio_tracker/data/session"
	"github.com/KotFed0t/portfolio_tracker/internal/converter/telebotConverter"
	"github.com/KotFed0t/portfolio_tracker/internal/ledger"
	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/internal/service"
	"github.com/KotFed0t/portfolio_tracker/internal/service/syncService"
	"github.com/KotFed0t/portfolio_tracker/utils"
	tele "gopkg.in/telebot.v4"
)

const (
	internalErrMsg = "что-то пошло не так..."
	noPortfolioMsg = "к чату не привязан портфель, начните с /start или /use <id>"
	tradeUsageMsg  = "формат: /%s ТИКЕР КОЛ-ВО [ЦЕНА]"
)

var errBadArgs = errors.New("error bad command arguments")

type PortfolioService interface {
	CreatePortfolio(ctx context.Context, name string) (model.Portfolio, error)
	GetPortfolio(ctx context.Context, portfolioID string) (model.Portfolio, error)
	ApplyTransaction(ctx context.Context, portfolioID string, req model.TradeRequest) (model.Portfolio, *syncService.Task, error)
	SetMarketOpen(ctx context.Context, portfolioID string, open bool) model.Portfolio
	Export(ctx context.Context, portfolioID string) (fileBytes []byte, filename, link string, err error)
}

type MarketService interface {
	GetQuote(ctx context.Context, symbol string, assetType model.AssetType) (float64, error)
}

type Session interface {
	GetSession(ctx context.Context, key string) (model.ChatSession, error)
	SetSession(ctx context.Context, key string, session model.ChatSession) error
}

type Controller struct {
	portfolios PortfolioService
	market     MarketService
	session    Session
}

func NewController(portfolios PortfolioService, market MarketService, session Session) *Controller {
	return &Controller{
		portfolios: portfolios,
		market:     market,
		session:    session,
	}
}

func chatKey(c tele.Context) string {
	return strconv.FormatInt(c.Chat().ID, 10)
}

func (ctrl *Controller) Start(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	name := "Telegram " + chatKey(c)
	if sender := c.Sender(); sender != nil && sender.FirstName != "" {
		name = sender.FirstName + " portfolio"
	}

	p, err := ctrl.portfolios.CreatePortfolio(ctx, name)
	if err != nil {
		slog.Error("got error from portfolios.CreatePortfolio", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	if err = ctrl.session.SetSession(ctx, chatKey(c), model.ChatSession{PortfolioID: p.ID}); err != nil {
		slog.Error("got error from session.SetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	text, markup := telebotConverter.PortfolioDetailsResponse(p)
	return c.Send(text, markup)
}

func (ctrl *Controller) Use(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	args := c.Args()
	if len(args) != 1 {
		return c.Send("формат: /use ID_ПОРТФЕЛЯ")
	}

	p, err := ctrl.portfolios.GetPortfolio(ctx, args[0])
	if err != nil {
		slog.Error("got error from portfolios.GetPortfolio", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	if err = ctrl.session.SetSession(ctx, chatKey(c), model.ChatSession{PortfolioID: p.ID}); err != nil {
		slog.Error("got error from session.SetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	text, markup := telebotConverter.PortfolioDetailsResponse(p)
	return c.Send(text, markup)
}

func (ctrl *Controller) Buy(c tele.Context) error {
	return ctrl.trade(c, model.TxBuy)
}

func (ctrl *Controller) Sell(c tele.Context) error {
	return ctrl.trade(c, model.TxSell)
}

func (ctrl *Controller) trade(c tele.Context, txType model.TxType) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	portfolioID, err := ctrl.portfolioID(ctx, c)
	if err != nil {
		return ctrl.sendPortfolioErr(c, err)
	}

	req, err := ParseTradeArgs(txType, c.Args())
	if err != nil {
		return c.Send(fmt.Sprintf(tradeUsageMsg, strings.ToLower(string(txType))))
	}

	// без цены берем текущую котировку
	if req.Price == nil {
		price, err := ctrl.market.GetQuote(ctx, req.Symbol, "")
		if err != nil {
			return c.Send("не удалось получить котировку, укажите цену явно")
		}
		req.Price = price
	}

	p, _, err := ctrl.portfolios.ApplyTransaction(ctx, portfolioID, req)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrUnknownHolding):
			return c.Send("такой позиции нет в портфеле")
		case errors.Is(err, ledger.ErrInvalidTransaction):
			return c.Send("количество и цена должны быть положительными")
		}
		slog.Error("got error from portfolios.ApplyTransaction", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send(telebotConverter.TransactionResponse(req, p))
}

func (ctrl *Controller) Portfolio(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	portfolioID, err := ctrl.portfolioID(ctx, c)
	if err != nil {
		return ctrl.sendPortfolioErr(c, err)
	}

	p, err := ctrl.portfolios.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	text, markup := telebotConverter.PortfolioDetailsResponse(p)
	return c.Send(text, markup)
}

func (ctrl *Controller) Refresh(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	portfolioID, err := ctrl.portfolioID(ctx, c)
	if err != nil {
		return ctrl.sendPortfolioErr(c, err)
	}

	p, err := ctrl.portfolios.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	_ = c.Respond()
	text, markup := telebotConverter.PortfolioDetailsResponse(p)
	return c.Edit(text, markup)
}

func (ctrl *Controller) OpenMarket(c tele.Context) error {
	return ctrl.toggleMarket(c, true)
}

func (ctrl *Controller) CloseMarket(c tele.Context) error {
	return ctrl.toggleMarket(c, false)
}

func (ctrl *Controller) toggleMarket(c tele.Context, open bool) error {
	ctx := utils.CreateCtxWithRqID(c)

	portfolioID, err := ctrl.portfolioID(ctx, c)
	if err != nil {
		return ctrl.sendPortfolioErr(c, err)
	}

	p := ctrl.portfolios.SetMarketOpen(ctx, portfolioID, open)

	msg := "рынок закрыт"
	if open {
		msg = "рынок открыт, цены обновляются"
	}
	_ = c.Respond(&tele.CallbackResponse{Text: msg})

	text, markup := telebotConverter.PortfolioDetailsResponse(p)
	return c.Edit(text, markup)
}

func (ctrl *Controller) Export(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	portfolioID, err := ctrl.portfolioID(ctx, c)
	if err != nil {
		return ctrl.sendPortfolioErr(c, err)
	}

	if c.Callback() != nil {
		_ = c.Respond()
	}

	data, filename, link, err := ctrl.portfolios.Export(ctx, portfolioID)
	if err != nil {
		slog.Error("got error from portfolios.Export", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	if link != "" {
		return c.Send("📥 Выгрузка готова: " + link)
	}

	doc := &tele.Document{File: tele.FromReader(bytes.NewReader(data)), FileName: filename}
	return c.Send(doc)
}

func (ctrl *Controller) Help(c tele.Context) error {
	return c.Send("команды: /start, /use ID, /buy ТИКЕР КОЛ-ВО [ЦЕНА], /sell ТИКЕР КОЛ-ВО [ЦЕНА], /portfolio, /export")
}

func (ctrl *Controller) portfolioID(ctx context.Context, c tele.Context) (string, error) {
	chatSession, err := ctrl.session.GetSession(ctx, chatKey(c))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return "", service.ErrPortfolioNotActive
		}
		slog.Error("got error from session.GetSession", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("err", err.Error()))
		return "", err
	}
	if chatSession.PortfolioID == "" {
		return "", service.ErrPortfolioNotActive
	}
	return chatSession.PortfolioID, nil
}

func (ctrl *Controller) sendPortfolioErr(c tele.Context, err error) error {
	if errors.Is(err, service.ErrPortfolioNotActive) {
		return c.Send(noPortfolioMsg)
	}
	return c.Send(internalErrMsg)
}

// ParseTradeArgs parses "SYMBOL SHARES [PRICE]". A missing price is left nil.
func ParseTradeArgs(txType model.TxType, args []string) (model.TradeRequest, error) {
	if len(args) < 2 || len(args) > 3 {
		return model.TradeRequest{}, errBadArgs
	}

	req := model.TradeRequest{
		Type:   txType,
		Symbol: model.SymbolKey(args[0]),
		Shares: strings.ReplaceAll(args[1], ",", "."),
	}
	if req.Symbol == "" {
		return model.TradeRequest{}, errBadArgs
	}

	if len(args) == 3 {
		req.Price = strings.ReplaceAll(args[2], ",", ".")
	}

	return req, nil
}
