package quoteApi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/KotFed0t/portfolio_tracker/config"
	"github.com/KotFed0t/portfolio_tracker/internal/externalApi"
	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/utils"
	"github.com/go-resty/resty/v2"
)

const (
	ProviderFmp   = "fmp"
	ProviderEodhd = "eodhd"
	ProviderProxy = "proxy"
	ProviderMock  = "mock"
)

// coinGecko ids for the symbols we trade, everything else is looked up by lowercased symbol
var cryptoIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"SOL":  "solana",
	"ADA":  "cardano",
	"DOGE": "dogecoin",
	"XRP":  "ripple",
}

type QuoteApi struct {
	provider string
	key      string
	client   *resty.Client
	crypto   *resty.Client
}

func New(cfg *config.Config) (*QuoteApi, error) {
	var p config.Provider
	switch cfg.API.QuoteProvider {
	case ProviderFmp:
		p = cfg.API.Fmp
	case ProviderEodhd:
		p = cfg.API.Eodhd
	case ProviderProxy:
		p = cfg.API.Proxy
	default:
		return nil, fmt.Errorf("unknown quote provider %q", cfg.API.QuoteProvider)
	}

	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(p.Url)

	crypto := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.Crypto.Url)

	return &QuoteApi{provider: cfg.API.QuoteProvider, key: p.Key, client: client, crypto: crypto}, nil
}

func (a *QuoteApi) Provider() string {
	return a.provider
}

func (a *QuoteApi) GetQuote(ctx context.Context, symbol string, assetType model.AssetType) (float64, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "QuoteApi.GetQuote"
	symbol = model.SymbolKey(symbol)

	slog.Debug("GetQuote start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.String("provider", a.provider))

	if symbol == "" {
		return 0, externalApi.ErrQuoteUnavailable
	}

	var (
		price float64
		err   error
	)

	if assetType == model.AssetCrypto {
		price, err = a.getCryptoQuote(ctx, symbol)
	} else {
		switch a.provider {
		case ProviderFmp:
			price, err = a.getFmpQuote(ctx, symbol)
		case ProviderEodhd:
			price, err = a.getEodhdQuote(ctx, symbol)
		default:
			price, err = a.getProxyQuote(ctx, symbol, assetType)
		}
	}

	if err != nil {
		slog.Warn("quote unavailable", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.String("err", err.Error()))
		return 0, fmt.Errorf("%w: %s", externalApi.ErrQuoteUnavailable, err.Error())
	}

	if price <= 0 {
		return 0, externalApi.ErrQuoteUnavailable
	}

	slog.Debug("GetQuote completed", slog.String("rqID", rqID), slog.String("op", op), slog.Float64("price", price))

	return price, nil
}

func (a *QuoteApi) get(ctx context.Context, client *resty.Client, url string, pathParams, params map[string]string, dest any) error {
	resp, err := client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetPathParams(pathParams).
		SetQueryParams(params).
		Get(url)
	if err != nil {
		return err
	}

	if resp.StatusCode() == http.StatusNotFound {
		return externalApi.ErrNotFound
	}
	if resp.IsError() {
		return fmt.Errorf("unexpected status %d", resp.StatusCode())
	}

	return json.Unmarshal(resp.Body(), dest)
}

func (a *QuoteApi) getFmpQuote(ctx context.Context, symbol string) (float64, error) {
	var raw []struct {
		Symbol string  `json:"symbol"`
		Price  float64 `json:"price"`
	}

	err := a.get(ctx, a.client, "/api/v3/quote-short/{symbol}",
		map[string]string{"symbol": symbol},
		map[string]string{"apikey": a.key},
		&raw,
	)
	if err != nil {
		return 0, err
	}

	if len(raw) == 0 {
		return 0, externalApi.ErrNotFound
	}

	return raw[0].Price, nil
}

func (a *QuoteApi) getEodhdQuote(ctx context.Context, symbol string) (float64, error) {
	// eodhd ждет тикер с биржей, по умолчанию US
	if !strings.Contains(symbol, ".") {
		symbol += ".US"
	}

	var raw struct {
		Code  string          `json:"code"`
		Close json.RawMessage `json:"close"`
	}

	err := a.get(ctx, a.client, "/api/real-time/{symbol}",
		map[string]string{"symbol": symbol},
		map[string]string{"api_token": a.key, "fmt": "json"},
		&raw,
	)
	if err != nil {
		return 0, err
	}

	// для неизвестных тикеров eodhd возвращает "NA" вместо числа
	var price float64
	if err = json.Unmarshal(raw.Close, &price); err != nil {
		return 0, externalApi.ErrNotFound
	}

	return price, nil
}

func (a *QuoteApi) getProxyQuote(ctx context.Context, symbol string, assetType model.AssetType) (float64, error) {
	var raw struct {
		Ticker string  `json:"ticker"`
		Price  float64 `json:"price"`
		Error  string  `json:"error"`
	}

	params := map[string]string{}
	if assetType != "" {
		params["asset"] = string(assetType)
	}

	err := a.get(ctx, a.client, "/api/price/{symbol}", map[string]string{"symbol": symbol}, params, &raw)
	if err != nil {
		return 0, err
	}

	if raw.Error != "" {
		return 0, fmt.Errorf("proxy error: %s", raw.Error)
	}

	return raw.Price, nil
}

func (a *QuoteApi) getCryptoQuote(ctx context.Context, symbol string) (float64, error) {
	id, ok := cryptoIDs[symbol]
	if !ok {
		id = strings.ToLower(symbol)
	}

	raw := map[string]map[string]float64{}

	err := a.get(ctx, a.crypto, "/api/v3/simple/price", nil,
		map[string]string{"ids": id, "vs_currencies": "usd"},
		&raw,
	)
	if err != nil {
		return 0, err
	}

	price, ok := raw[id]["usd"]
	if !ok {
		return 0, externalApi.ErrNotFound
	}

	return price, nil
}
