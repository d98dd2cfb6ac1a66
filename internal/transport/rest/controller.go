package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/KotFed0t/portfolio_tracker/internal/importer/csvImporter"
	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/internal/service/portfolioService"
	"github.com/KotFed0t/portfolio_tracker/internal/service/syncService"
	"github.com/KotFed0t/portfolio_tracker/utils"
	"github.com/go-chi/chi/v5"
)

const (
	maxBodyBytes = 10 << 20
	xlsxMime     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type PortfolioService interface {
	CreatePortfolio(ctx context.Context, name string) (model.Portfolio, error)
	GetPortfolio(ctx context.Context, portfolioID string) (model.Portfolio, error)
	ApplyTransaction(ctx context.Context, portfolioID string, req model.TradeRequest) (model.Portfolio, *syncService.Task, error)
	ImportTransactions(ctx context.Context, portfolioID string, records []model.ImportRecord) (portfolioService.ImportResult, error)
	EditHolding(ctx context.Context, portfolioID, symbol string, patch model.HoldingPatch) (model.Holding, *syncService.Task, error)
	DeleteHolding(ctx context.Context, portfolioID, symbol string) (*syncService.Task, error)
	SetMarketOpen(ctx context.Context, portfolioID string, open bool) model.Portfolio
	Export(ctx context.Context, portfolioID string) (fileBytes []byte, filename, link string, err error)
}

type MarketService interface {
	GetQuote(ctx context.Context, symbol string, assetType model.AssetType) (float64, error)
	Provider() string
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Controller struct {
	portfolios  PortfolioService
	market      MarketService
	cache       Pinger
	db          Pinger
	waitTimeout time.Duration
}

func NewController(portfolios PortfolioService, market MarketService, cache, db Pinger, waitTimeout time.Duration) *Controller {
	return &Controller{portfolios: portfolios, market: market, cache: cache, db: db, waitTimeout: waitTimeout}
}

// Health always answers 200: the app keeps serving from the cache or memory when a backend is down.
func (ctrl *Controller) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":   "ok",
		"provider": ctrl.market.Provider(),
		"redis":    pingStatus(r.Context(), ctrl.cache),
		"postgres": pingStatus(r.Context(), ctrl.db),
	})
}

func pingStatus(ctx context.Context, p Pinger) string {
	if p == nil {
		return "disabled"
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		return "unavailable"
	}
	return "ok"
}

func (ctrl *Controller) GetPrice(w http.ResponseWriter, r *http.Request) {
	ticker := model.SymbolKey(chi.URLParam(r, "ticker"))
	assetType := model.ParseAssetType(r.URL.Query().Get("asset"))

	price, err := ctrl.market.GetQuote(r.Context(), ticker, assetType)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{"ticker": ticker, "price": price})
}

func (ctrl *Controller) CreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	p, err := ctrl.portfolios.CreatePortfolio(r.Context(), body.Name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, newPortfolioResponse(p))
}

func (ctrl *Controller) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	p, err := ctrl.portfolios.GetPortfolio(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, newPortfolioResponse(p))
}

func (ctrl *Controller) ApplyTransaction(w http.ResponseWriter, r *http.Request) {
	var req model.TradeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, _, err := ctrl.portfolios.ApplyTransaction(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, newPortfolioResponse(p))
}

func (ctrl *Controller) ImportTransactions(w http.ResponseWriter, r *http.Request) {
	rqID := utils.GetRequestIDFromCtx(r.Context())

	records, ok := ctrl.readImportRecords(w, r)
	if !ok {
		return
	}

	res, err := ctrl.portfolios.ImportTransactions(r.Context(), chi.URLParam(r, "id"), records)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := importResponse{Portfolio: newPortfolioResponse(res.Portfolio), Accepted: res.Accepted, Rejected: res.Rejected}

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if !wait {
		writeJSON(w, r, http.StatusAccepted, resp)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), ctrl.waitTimeout)
	defer cancel()

	report, err := res.Task.Wait(ctx)
	if err != nil {
		// фоновая запись продолжается, просто не дождались
		slog.Warn("import persistence still running", slog.String("rqID", rqID), slog.String("err", err.Error()))
		writeJSON(w, r, http.StatusAccepted, resp)
		return
	}

	resp.Sync = &report
	writeJSON(w, r, http.StatusOK, resp)
}

func (ctrl *Controller) readImportRecords(w http.ResponseWriter, r *http.Request) ([]model.ImportRecord, bool) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "text/csv" {
		records, err := csvImporter.Parse(r.Context(), http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeServiceError(w, r, err)
			return nil, false
		}
		return records, true
	}

	var records []model.ImportRecord
	if !decodeJSON(w, r, &records) {
		return nil, false
	}
	return records, true
}

func (ctrl *Controller) EditHolding(w http.ResponseWriter, r *http.Request) {
	var patch model.HoldingPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	h, _, err := ctrl.portfolios.EditHolding(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "symbol"), patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, h)
}

func (ctrl *Controller) DeleteHolding(w http.ResponseWriter, r *http.Request) {
	if _, err := ctrl.portfolios.DeleteHolding(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "symbol")); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (ctrl *Controller) SetMarket(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Open bool `json:"open"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	p := ctrl.portfolios.SetMarketOpen(r.Context(), chi.URLParam(r, "id"), body.Open)

	writeJSON(w, r, http.StatusOK, map[string]any{"portfolio": newPortfolioResponse(p), "marketOpen": body.Open})
}

func (ctrl *Controller) Export(w http.ResponseWriter, r *http.Request) {
	data, filename, link, err := ctrl.portfolios.Export(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if link != "" {
		w.Header().Set("X-Download-Link", link)
	}
	w.Header().Set("Content-Type", xlsxMime)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, r, http.StatusBadRequest, "invalid json: "+strings.TrimSpace(err.Error()))
		return false
	}
	return true
}
