package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/KotFed0t/portfolio_tracker/data/repository"
	"github.com/KotFed0t/portfolio_tracker/internal/converter/dbConverter"
	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/internal/model/dbModel"
	"github.com/KotFed0t/portfolio_tracker/utils"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// CreatePortfolio inserts the portfolio row together with its seed holdings in one transaction.
func (r *Postgres) CreatePortfolio(ctx context.Context, portfolio model.Portfolio) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.CreatePortfolio"
	query := `INSERT INTO portfolios(portfolio_id, name, cash_balance) VALUES($1, $2, $3)`

	slog.Debug("CreatePortfolio start", slog.String("rqID", rqID), slog.String("op", op), slog.String("portfolioID", portfolio.ID))
	defer func() {
		if err != nil {
			slog.Error("CreatePortfolio failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("CreatePortfolio completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	return r.WithinTransaction(ctx, func(ctx context.Context) error {
		_, err := r.txOrDb(ctx).ExecContext(ctx, query, portfolio.ID, portfolio.Name, decimal.NewFromFloat(portfolio.CashBalance))
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) {
				if pgErr.Code == "23505" { // unique_violation
					return repository.ErrAlreadyExists
				}
			}
			return err
		}

		return r.UpsertHoldings(ctx, portfolio.ID, portfolio.SortedHoldings())
	})
}

func (r *Postgres) GetPortfolio(ctx context.Context, portfolioID string) (portfolio model.Portfolio, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetPortfolio"
	query := `
		SELECT portfolio_id, name, cash_balance, dt_create
		FROM portfolios
		WHERE portfolio_id = $1
		`

	slog.Debug("GetPortfolio start", slog.String("rqID", rqID), slog.String("op", op), slog.String("portfolioID", portfolioID))
	defer func() {
		if err != nil {
			slog.Error("GetPortfolio failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetPortfolio completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	var dbPortfolio dbModel.Portfolio
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, portfolioID).StructScan(&dbPortfolio)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Portfolio{}, repository.ErrNotFound
		}
		return model.Portfolio{}, err
	}

	return dbConverter.ConvertPortfolio(dbPortfolio), nil
}

func (r *Postgres) GetManualAssets(ctx context.Context, portfolioID string) (assets []model.ManualAsset, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetManualAssets"
	query := `
		SELECT asset_id, portfolio_id, name, category, value
		FROM manual_assets
		WHERE portfolio_id = $1
		ORDER BY name
		`

	slog.Debug("GetManualAssets start", slog.String("rqID", rqID), slog.String("op", op), slog.String("portfolioID", portfolioID))
	defer func() {
		if err != nil {
			slog.Error("GetManualAssets failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetManualAssets completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	var rows []dbModel.ManualAsset
	if err = r.txOrDb(ctx).SelectContext(ctx, &rows, query, portfolioID); err != nil {
		return nil, err
	}

	assets = make([]model.ManualAsset, 0, len(rows))
	for _, row := range rows {
		assets = append(assets, dbConverter.ConvertManualAsset(row))
	}

	return assets, nil
}

func (r *Postgres) GetLiabilities(ctx context.Context, portfolioID string) (liabilities []model.Liability, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetLiabilities"
	query := `
		SELECT liability_id, portfolio_id, name, balance, interest_rate
		FROM liabilities
		WHERE portfolio_id = $1
		ORDER BY name
		`

	slog.Debug("GetLiabilities start", slog.String("rqID", rqID), slog.String("op", op), slog.String("portfolioID", portfolioID))
	defer func() {
		if err != nil {
			slog.Error("GetLiabilities failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetLiabilities completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	var rows []dbModel.Liability
	if err = r.txOrDb(ctx).SelectContext(ctx, &rows, query, portfolioID); err != nil {
		return nil, err
	}

	liabilities = make([]model.Liability, 0, len(rows))
	for _, row := range rows {
		liabilities = append(liabilities, dbConverter.ConvertLiability(row))
	}

	return liabilities, nil
}
