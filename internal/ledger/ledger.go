// Package ledger owns the holdings arithmetic: weighted average cost on BUY,
// share reduction on SELL and removal of positions that reach zero.
package ledger

import (
	"errors"
	"log/slog"

	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/internal/sanitizer"
	"github.com/google/uuid"
)

// Epsilon absorbs floating point error when a position is sold down to zero.
const Epsilon = 1e-6

var (
	ErrInvalidTransaction = errors.New("error invalid transaction")
	ErrUnknownHolding     = errors.New("error holding not found in ledger")
)

type Result struct {
	Holding model.Holding
	Created bool
	Removed bool
	// Clamped is set when a SELL asked for more shares than were held.
	Clamped bool
}

type Ledger struct {
	ref Reference
}

func New(ref Reference) *Ledger {
	if ref == nil {
		ref = StaticReference{}
	}
	return &Ledger{ref: ref}
}

// Apply mutates holdings (keyed by model.SymbolKey) with a single transaction.
// assetType is only used when a BUY opens a new position; empty means "take it from the reference table".
func (l *Ledger) Apply(holdings map[string]model.Holding, tx model.Transaction, assetType model.AssetType) (Result, error) {
	key := model.SymbolKey(tx.Symbol)
	if key == "" || tx.Shares <= 0 || tx.Price < 0 {
		return Result{}, ErrInvalidTransaction
	}

	h, exists := holdings[key]

	switch tx.Type {
	case model.TxBuy:
		if !exists {
			h = l.newHolding(key, tx, assetType)
			holdings[key] = h
			return Result{Holding: h, Created: true}, nil
		}

		newShares := h.Shares + tx.Shares
		if newShares != 0 {
			h.AvgPrice = (h.Shares*h.AvgPrice + tx.Shares*tx.Price) / newShares
		}
		h.Shares = newShares
		holdings[key] = h
		return Result{Holding: h}, nil

	case model.TxSell:
		if !exists {
			return Result{}, ErrUnknownHolding
		}

		res := Result{}
		if tx.Shares > h.Shares+Epsilon {
			slog.Warn(
				"sell exceeds held shares, position closed",
				slog.String("symbol", key),
				slog.Float64("held", h.Shares),
				slog.Float64("sold", tx.Shares),
			)
			res.Clamped = true
		}

		// avgPrice при продаже не меняется
		h.Shares -= tx.Shares
		if h.Shares <= Epsilon {
			delete(holdings, key)
			h.Shares = 0
			res.Holding = h
			res.Removed = true
			return res, nil
		}

		holdings[key] = h
		res.Holding = h
		return res, nil

	default:
		return Result{}, ErrInvalidTransaction
	}
}

func (l *Ledger) newHolding(key string, tx model.Transaction, assetType model.AssetType) model.Holding {
	meta, ok := l.ref.Lookup(key)
	if !ok {
		meta = DefaultMetadata()
	}

	if assetType == "" {
		assetType = meta.AssetType
	}
	if assetType == "" {
		assetType = model.AssetStock
	}

	name := sanitizer.Text(tx.Name)
	if name == "" {
		name = meta.Name
	}
	if name == "" {
		name = key
	}

	return model.Holding{
		ID:            uuid.NewString(),
		Symbol:        key,
		Name:          name,
		Shares:        tx.Shares,
		AvgPrice:      tx.Price,
		CurrentPrice:  tx.Price,
		AssetType:     assetType,
		Sector:        meta.Sector,
		Country:       meta.Country,
		DividendYield: meta.DividendYield,
	}
}

// Prune drops every holding whose share count fell to Epsilon or below and returns the removed symbols.
func Prune(holdings map[string]model.Holding) []string {
	var removed []string
	for key, h := range holdings {
		if h.Shares <= Epsilon {
			delete(holdings, key)
			removed = append(removed, key)
		}
	}
	return removed
}

// Edit applies a direct correction to a position without producing a transaction.
// Setting shares to zero removes the position.
func Edit(holdings map[string]model.Holding, symbol string, patch model.HoldingPatch) (Result, error) {
	key := model.SymbolKey(symbol)
	h, ok := holdings[key]
	if !ok {
		return Result{}, ErrUnknownHolding
	}

	if patch.Name != nil {
		h.Name = sanitizer.Text(*patch.Name)
	}
	if patch.Shares != nil {
		h.Shares = nonNegative(*patch.Shares)
	}
	if patch.AvgPrice != nil {
		h.AvgPrice = nonNegative(*patch.AvgPrice)
	}
	if patch.CurrentPrice != nil {
		h.CurrentPrice = nonNegative(*patch.CurrentPrice)
	}
	if patch.Sector != nil {
		h.Sector = sanitizer.Text(*patch.Sector)
	}
	if patch.Country != nil {
		h.Country = sanitizer.Text(*patch.Country)
	}
	if patch.DividendYield != nil {
		h.DividendYield = nonNegative(*patch.DividendYield)
	}
	if patch.TargetAllocation != nil {
		h.TargetAllocation = nonNegative(*patch.TargetAllocation)
	}

	if h.Shares <= Epsilon {
		delete(holdings, key)
		h.Shares = 0
		return Result{Holding: h, Removed: true}, nil
	}

	holdings[key] = h
	return Result{Holding: h}, nil
}

func Remove(holdings map[string]model.Holding, symbol string) (model.Holding, error) {
	key := model.SymbolKey(symbol)
	h, ok := holdings[key]
	if !ok {
		return model.Holding{}, ErrUnknownHolding
	}
	delete(holdings, key)
	return h, nil
}

// SetPrices updates currentPrice only, shares and avgPrice are never touched.
// Symbols that are no longer held are ignored.
func SetPrices(holdings map[string]model.Holding, prices map[string]float64) int {
	updated := 0
	for symbol, price := range prices {
		key := model.SymbolKey(symbol)
		h, ok := holdings[key]
		if !ok {
			continue
		}
		h.CurrentPrice = nonNegative(price)
		holdings[key] = h
		updated++
	}
	return updated
}

func nonNegative(f float64) float64 {
	f = sanitizer.Number(f)
	if f < 0 {
		return 0
	}
	return f
}
