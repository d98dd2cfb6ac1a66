package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/KotFed0t/portfolio_tracker/internal/importer/csvImporter"
	"github.com/KotFed0t/portfolio_tracker/internal/ledger"
	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/internal/service"
	"github.com/KotFed0t/portfolio_tracker/internal/service/syncService"
	"github.com/KotFed0t/portfolio_tracker/internal/state"
	"github.com/KotFed0t/portfolio_tracker/utils"
)

type portfolioResponse struct {
	model.Portfolio
	TotalValue float64 `json:"totalValue"`
	CostBasis  float64 `json:"costBasis"`
}

func newPortfolioResponse(p model.Portfolio) portfolioResponse {
	summary := p.Summary()
	return portfolioResponse{Portfolio: p, TotalValue: summary.TotalValue, CostBasis: summary.CostBasis}
}

type importResponse struct {
	Portfolio portfolioResponse   `json:"portfolio"`
	Accepted  int                 `json:"accepted"`
	Rejected  int                 `json:"rejected"`
	Sync      *syncService.Report `json:"sync,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("can't encode response", slog.String("rqID", utils.GetRequestIDFromCtx(r.Context())), slog.String("err", err.Error()))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorResponse{Error: msg})
}

// writeServiceError maps domain errors to http statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
	case errors.Is(err, service.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrPortfolioNotActive):
		writeError(w, r, http.StatusBadRequest, "portfolio id is required")
	case errors.Is(err, ledger.ErrInvalidTransaction):
		writeError(w, r, http.StatusBadRequest, "invalid transaction")
	case errors.Is(err, ledger.ErrUnknownHolding):
		writeError(w, r, http.StatusUnprocessableEntity, "symbol is not held")
	case errors.Is(err, state.ErrSyncInProgress):
		writeError(w, r, http.StatusConflict, "import already in progress")
	case errors.Is(err, csvImporter.ErrBadHeader), errors.Is(err, csvImporter.ErrRead):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		slog.Error("unexpected service error", slog.String("rqID", utils.GetRequestIDFromCtx(r.Context())), slog.String("err", err.Error()))
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
