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
)

const transactionColumnsCount = 9

// InsertTransactions appends a batch to the transaction log. Rows that already exist are skipped,
// so a retried batch does not duplicate history.
func (r *Postgres) InsertTransactions(ctx context.Context, portfolioID string, transactions []model.Transaction) (err error) {
	if len(transactions) == 0 {
		return nil
	}

	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.InsertTransactions"
	sb := strings.Builder{}
	args := make([]any, 0, len(transactions)*transactionColumnsCount)

	slog.Debug("InsertTransactions start", slog.String("rqID", rqID), slog.String("op", op), slog.Int("count", len(transactions)))
	defer func() {
		if err != nil {
			slog.Error("InsertTransactions failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertTransactions completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	sb.WriteString(`INSERT INTO transactions (transaction_id, portfolio_id, tx_date, tx_type, symbol, name, shares, price, total_value) VALUES `)

	for i, tx := range transactions {
		row := dbConverter.TransactionToDb(portfolioID, tx)
		args = append(args, row.TransactionID, row.PortfolioID, row.TxDate, row.TxType, row.Symbol, row.Name, row.Shares, row.Price, row.TotalValue)

		start := i*transactionColumnsCount + 1
		sb.WriteString(fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			start, start+1, start+2, start+3, start+4, start+5, start+6, start+7, start+8,
		))

		if i < len(transactions)-1 {
			sb.WriteString(",")
		}
	}

	sb.WriteString(` ON CONFLICT (transaction_id) DO NOTHING;`)

	_, err = r.txOrDb(ctx).ExecContext(ctx, sb.String(), args...)
	return err
}

// GetTransactions returns the log most recent first.
func (r *Postgres) GetTransactions(ctx context.Context, portfolioID string) (transactions []model.Transaction, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetTransactions"
	query := `
		SELECT transaction_id, portfolio_id, tx_date, tx_type, symbol, name, shares, price, total_value, dt_create
		FROM transactions
		WHERE portfolio_id = $1
		ORDER BY tx_date DESC, dt_create DESC
		`

	slog.Debug("GetTransactions start", slog.String("rqID", rqID), slog.String("op", op), slog.String("portfolioID", portfolioID))
	defer func() {
		if err != nil {
			slog.Error("GetTransactions failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetTransactions completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("count", len(transactions)))
		}
	}()

	var rows []dbModel.Transaction
	if err = r.txOrDb(ctx).SelectContext(ctx, &rows, query, portfolioID); err != nil {
		return nil, err
	}

	transactions = make([]model.Transaction, 0, len(rows))
	for _, row := range rows {
		transactions = append(transactions, dbConverter.ConvertTransaction(row))
	}

	return transactions, nil
}
