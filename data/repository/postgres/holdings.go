package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/KotFed0t/portfolio_tracker/internal/converter/dbConverter"
	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/internal/model/dbModel"
	"github.com/KotFed0t/portfolio_tracker/utils"
	"github.com/jmoiron/sqlx"
)

const holdingColumnsCount = 12

func (r *Postgres) GetHoldings(ctx context.Context, portfolioID string) (holdings []model.Holding, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetHoldings"
	query := `
		SELECT holding_id, portfolio_id, symbol, name, shares, avg_price, current_price,
			asset_type, sector, country, dividend_yield, target_allocation, dt_update
		FROM holdings
		WHERE portfolio_id = $1
		ORDER BY symbol
		`

	slog.Debug("GetHoldings start", slog.String("rqID", rqID), slog.String("op", op), slog.String("portfolioID", portfolioID))
	defer func() {
		if err != nil {
			slog.Error("GetHoldings failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetHoldings completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("count", len(holdings)))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, portfolioID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var holding dbModel.Holding
		err = rows.StructScan(&holding)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, dbConverter.ConvertHolding(holding))
	}

	return holdings, rows.Err()
}

// UpsertHoldings writes all holdings with a single multi-row INSERT ... ON CONFLICT statement.
func (r *Postgres) UpsertHoldings(ctx context.Context, portfolioID string, holdings []model.Holding) (err error) {
	if len(holdings) == 0 {
		return nil
	}

	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.UpsertHoldings"
	sb := strings.Builder{}
	args := make([]any, 0, len(holdings)*holdingColumnsCount)

	slog.Debug("UpsertHoldings start", slog.String("rqID", rqID), slog.String("op", op), slog.Int("count", len(holdings)))
	defer func() {
		if err != nil {
			slog.Error("UpsertHoldings failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpsertHoldings completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	sb.WriteString(`INSERT INTO holdings (holding_id, portfolio_id, symbol, name, shares, avg_price, current_price,
		asset_type, sector, country, dividend_yield, target_allocation) VALUES `)

	for i, h := range holdings {
		row := dbConverter.HoldingToDb(portfolioID, h)
		args = append(args,
			row.HoldingID, row.PortfolioID, row.Symbol, row.Name, row.Shares, row.AvgPrice, row.CurrentPrice,
			row.AssetType, row.Sector, row.Country, row.DividendYield, row.TargetAllocation,
		)

		start := i*holdingColumnsCount + 1
		placeholders := make([]string, 0, holdingColumnsCount)
		for j := 0; j < holdingColumnsCount; j++ {
			placeholders = append(placeholders, fmt.Sprintf("$%d", start+j))
		}
		sb.WriteString("(" + strings.Join(placeholders, ", ") + ")")

		if i < len(holdings)-1 {
			sb.WriteString(",")
		}
	}

	sb.WriteString(`
		ON CONFLICT (portfolio_id, symbol) DO UPDATE SET
			name = EXCLUDED.name,
			shares = EXCLUDED.shares,
			avg_price = EXCLUDED.avg_price,
			current_price = EXCLUDED.current_price,
			asset_type = EXCLUDED.asset_type,
			sector = EXCLUDED.sector,
			country = EXCLUDED.country,
			dividend_yield = EXCLUDED.dividend_yield,
			target_allocation = EXCLUDED.target_allocation,
			dt_update = now();
	`)

	_, err = r.txOrDb(ctx).ExecContext(ctx, sb.String(), args...)
	return err
}

func (r *Postgres) DeleteHoldings(ctx context.Context, portfolioID string, symbols []string) (err error) {
	if len(symbols) == 0 {
		return nil
	}

	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.DeleteHoldings"
	params := map[string]any{
		"portfolioID": portfolioID,
		"symbols":     symbols,
	}

	slog.Debug("DeleteHoldings start", slog.String("rqID", rqID), slog.String("op", op), slog.Any("params", params))
	defer func() {
		if err != nil {
			slog.Error("DeleteHoldings failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("DeleteHoldings completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	query, args, err := sqlx.In(`DELETE FROM holdings WHERE portfolio_id = ? AND symbol IN (?)`, portfolioID, symbols)
	if err != nil {
		return err
	}

	q := r.txOrDb(ctx)
	_, err = q.ExecContext(ctx, q.Rebind(query), args...)
	return err
}
