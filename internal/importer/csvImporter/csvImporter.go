package csvImporter

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/utils"
)

var (
	ErrBadHeader = errors.New("error csv header is missing required columns")
	ErrRead      = errors.New("error reading csv")
)

var headerAliases = map[string]string{
	"date":     "date",
	"type":     "type",
	"action":   "type",
	"side":     "type",
	"symbol":   "symbol",
	"ticker":   "symbol",
	"shares":   "shares",
	"quantity": "shares",
	"qty":      "shares",
	"price":    "price",
	"name":     "name",
}

var requiredColumns = []string{"date", "type", "symbol", "shares", "price"}

// Parse reads a header-driven csv into import records. Numeric cells are kept raw.
func Parse(ctx context.Context, r io.Reader) ([]model.ImportRecord, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "csvImporter.Parse"

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrBadHeader
		}
		return nil, fmt.Errorf("%w: header: %w", ErrRead, err)
	}

	idx := map[string]int{}
	for i, col := range header {
		col = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
		if name, ok := headerAliases[col]; ok {
			if _, dup := idx[name]; !dup {
				idx[name] = i
			}
		}
	}

	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrBadHeader, col)
		}
	}

	cell := func(row []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []model.ImportRecord
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			// только ошибки разбора строки можно пропустить, ошибка самого reader повторится на каждом Read
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				slog.Warn("csv row skipped", slog.String("rqID", rqID), slog.String("op", op), slog.Int("line", line), slog.String("err", err.Error()))
				continue
			}
			return nil, fmt.Errorf("%w: line %d: %w", ErrRead, line, err)
		}

		rec := model.ImportRecord{
			Date:   cell(row, "date"),
			Type:   cell(row, "type"),
			Symbol: cell(row, "symbol"),
			Shares: cell(row, "shares"),
			Price:  cell(row, "price"),
			Name:   cell(row, "name"),
		}
		if rec.Symbol == "" && rec.Type == "" {
			continue
		}

		records = append(records, rec)
	}

	slog.Debug("csv parsed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("records", len(records)))

	return records, nil
}
