package portfolioService

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/KotFed0t/portfolio_tracker/config"
	"github.com/KotFed0t/portfolio_tracker/internal/ledger"
	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/internal/sanitizer"
	"github.com/KotFed0t/portfolio_tracker/internal/service"
	"github.com/KotFed0t/portfolio_tracker/internal/service/syncService"
	"github.com/KotFed0t/portfolio_tracker/internal/state"
	"github.com/KotFed0t/portfolio_tracker/utils"
	"github.com/google/uuid"
)

const defaultPortfolioName = "My Portfolio"

type Repository interface {
	CreatePortfolio(ctx context.Context, portfolio model.Portfolio) error
}

type Sync interface {
	Load(ctx context.Context, portfolioID string) (model.Portfolio, syncService.Source)
	CacheSnapshot(ctx context.Context, p model.Portfolio, version uint64)
	PersistAsync(ctx context.Context, req syncService.PersistRequest) *syncService.Task
}

type ReportGenerator interface {
	Generate(ctx context.Context, portfolio model.Portfolio) (fileBytes []byte, fileExtension string, err error)
}

type CloudStorage interface {
	UploadFile(ctx context.Context, reader io.Reader, filename string) (downloadLink string, err error)
}

type PortfolioService struct {
	repo     Repository
	sync     Sync
	sessions *state.Registry
	ledger   *ledger.Ledger
	report   ReportGenerator
	cloud    CloudStorage
	cfg      *config.Config
	now      func() time.Time
}

// New builds the service. cloud may be nil, export links are then unavailable.
func New(
	cfg *config.Config,
	repo Repository,
	sync Sync,
	sessions *state.Registry,
	l *ledger.Ledger,
	report ReportGenerator,
	cloud CloudStorage,
) *PortfolioService {
	return &PortfolioService{
		repo:     repo,
		sync:     sync,
		sessions: sessions,
		ledger:   l,
		report:   report,
		cloud:    cloud,
		cfg:      cfg,
		now:      time.Now,
	}
}

// ImportResult is the caller-visible outcome of phase 1 of an import, Task tracks phase 2.
type ImportResult struct {
	Portfolio model.Portfolio
	Accepted  int
	Rejected  int
	Task      *syncService.Task
}

func (s *PortfolioService) session(ctx context.Context, portfolioID string) *state.Session {
	return s.sessions.GetOrCreate(portfolioID, func() *state.Session {
		p, src := s.sync.Load(ctx, portfolioID)
		slog.Info("portfolio activated", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("portfolioID", portfolioID), slog.String("source", string(src)))
		return state.NewSession(p)
	})
}

// CreatePortfolio tries the remote store within the remote timeout and falls back to a local-only portfolio.
func (s *PortfolioService) CreatePortfolio(ctx context.Context, name string) (model.Portfolio, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.CreatePortfolio"

	slog.Debug("CreatePortfolio start", slog.String("rqID", rqID), slog.String("op", op), slog.String("name", name))
	defer func() {
		slog.Debug("CreatePortfolio finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	name = sanitizer.Text(name)
	if name == "" {
		name = defaultPortfolioName
	}

	p := model.NewPortfolio(uuid.NewString(), name)

	cctx, cancel := context.WithTimeout(ctx, s.cfg.Sync.RemoteTimeout)
	defer cancel()

	if err := s.repo.CreatePortfolio(cctx, p); err != nil {
		slog.Warn("remote create failed, portfolio is local", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		p.Local = true
	}

	session := state.NewSession(p)
	s.sessions.Put(session)
	s.sync.CacheSnapshot(ctx, p, session.Version())

	return p, nil
}

func (s *PortfolioService) GetPortfolio(ctx context.Context, portfolioID string) (model.Portfolio, error) {
	if strings.TrimSpace(portfolioID) == "" {
		return model.Portfolio{}, service.ErrPortfolioNotActive
	}
	return s.session(ctx, portfolioID).Portfolio(), nil
}

// ApplyTransaction applies one trade locally, mirrors it to the cache and persists it in the background.
func (s *PortfolioService) ApplyTransaction(ctx context.Context, portfolioID string, req model.TradeRequest) (p model.Portfolio, task *syncService.Task, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.ApplyTransaction"

	slog.Debug("ApplyTransaction start", slog.String("rqID", rqID), slog.String("op", op), slog.String("portfolioID", portfolioID), slog.Any("req", req))
	defer func() {
		if err != nil {
			slog.Warn("ApplyTransaction rejected", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
		slog.Debug("ApplyTransaction finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	txType := model.TxType(strings.ToUpper(strings.TrimSpace(string(req.Type))))
	if txType != model.TxBuy && txType != model.TxSell {
		return model.Portfolio{}, nil, ledger.ErrInvalidTransaction
	}

	tx := s.newTransaction(s.now(), txType, req.Symbol, req.Name, req.Shares, req.Price)

	session := s.session(ctx, portfolioID)

	p, version, err := session.Write(func(p *model.Portfolio) error {
		if _, err := s.ledger.Apply(p.Holdings, tx, req.AssetType); err != nil {
			return err
		}
		p.Transactions = slices.Insert(p.Transactions, 0, tx)
		return nil
	}, func(before, after model.Portfolio) {
		task = s.persist(ctx, session, before, after, []model.Transaction{tx})
	})
	if err != nil {
		return model.Portfolio{}, nil, err
	}

	s.sync.CacheSnapshot(ctx, p, version)

	return p, task, nil
}

// ImportTransactions merges untrusted records into the active ledger as one atomic replacement.
// Bad rows are logged and skipped. Only one import per portfolio may be in flight.
func (s *PortfolioService) ImportTransactions(ctx context.Context, portfolioID string, records []model.ImportRecord) (res ImportResult, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.ImportTransactions"

	slog.Debug("ImportTransactions start", slog.String("rqID", rqID), slog.String("op", op), slog.String("portfolioID", portfolioID), slog.Int("records", len(records)))
	defer func() {
		slog.Debug("ImportTransactions finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int("accepted", res.Accepted), slog.Int("rejected", res.Rejected))
	}()

	session := s.session(ctx, portfolioID)

	if err = session.BeginSync(); err != nil {
		slog.Warn("import rejected", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return ImportResult{}, err
	}

	var batch []model.Transaction

	p, version, _ := session.Write(func(p *model.Portfolio) error {
		merged := make(map[string]model.Holding, len(p.Holdings))
		for _, h := range p.Holdings {
			merged[model.SymbolKey(h.Symbol)] = h
		}

		now := s.now()
		for i, rec := range records {
			txType, ok := normalizeTxType(rec.Type)
			if !ok {
				slog.Warn("import row skipped: unknown type", slog.String("rqID", rqID), slog.Int("row", i), slog.String("type", rec.Type))
				res.Rejected++
				continue
			}

			tx := s.newTransaction(parseDate(rqID, i, rec.Date, now), txType, rec.Symbol, rec.Name, rec.Shares, rec.Price)

			if _, err := s.ledger.Apply(merged, tx, ""); err != nil {
				slog.Warn("import row skipped", slog.String("rqID", rqID), slog.Int("row", i), slog.String("symbol", tx.Symbol), slog.String("err", err.Error()))
				res.Rejected++
				continue
			}

			batch = append(batch, tx)
			res.Accepted++
		}

		ledger.Prune(merged)
		p.Holdings = merged

		// лог хранится от новых к старым
		logged := slices.Clone(batch)
		slices.Reverse(logged)
		p.Transactions = append(logged, p.Transactions...)
		return nil
	}, func(before, after model.Portfolio) {
		if after.Local {
			return
		}
		res.Task = s.sync.PersistAsync(ctx, syncService.PersistRequest{
			PortfolioID:  portfolioID,
			Holdings:     after.Holdings,
			Transactions: batch,
			Previous:     before.Holdings,
			OnDone: func(syncService.Report) {
				session.EndWrite()
				session.EndSync()
			},
		})
	})

	s.sync.CacheSnapshot(ctx, p, version)

	res.Portfolio = p

	if p.Local {
		session.EndSync()
		res.Task = syncService.CompletedTask(syncService.Report{Skipped: true})
	}

	return res, nil
}

// EditHolding corrects a position directly. No transaction is logged.
func (s *PortfolioService) EditHolding(ctx context.Context, portfolioID, symbol string, patch model.HoldingPatch) (h model.Holding, task *syncService.Task, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.EditHolding"

	slog.Debug("EditHolding start", slog.String("rqID", rqID), slog.String("op", op), slog.String("portfolioID", portfolioID), slog.String("symbol", symbol))
	defer func() {
		slog.Debug("EditHolding finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	session := s.session(ctx, portfolioID)

	var res ledger.Result
	p, version, err := session.Write(func(p *model.Portfolio) error {
		var err error
		res, err = ledger.Edit(p.Holdings, symbol, patch)
		return err
	}, func(before, after model.Portfolio) {
		task = s.persist(ctx, session, before, after, nil)
	})
	if err != nil {
		if errors.Is(err, ledger.ErrUnknownHolding) {
			return model.Holding{}, nil, service.ErrNotFound
		}
		return model.Holding{}, nil, err
	}

	s.sync.CacheSnapshot(ctx, p, version)

	return res.Holding, task, nil
}

// DeleteHolding removes a position directly. No transaction is logged.
func (s *PortfolioService) DeleteHolding(ctx context.Context, portfolioID, symbol string) (*syncService.Task, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.DeleteHolding"

	slog.Debug("DeleteHolding start", slog.String("rqID", rqID), slog.String("op", op), slog.String("portfolioID", portfolioID), slog.String("symbol", symbol))

	session := s.session(ctx, portfolioID)

	var task *syncService.Task
	p, version, err := session.Write(func(p *model.Portfolio) error {
		_, err := ledger.Remove(p.Holdings, symbol)
		return err
	}, func(before, after model.Portfolio) {
		task = s.persist(ctx, session, before, after, nil)
	})
	if err != nil {
		if errors.Is(err, ledger.ErrUnknownHolding) {
			return nil, service.ErrNotFound
		}
		return nil, err
	}

	s.sync.CacheSnapshot(ctx, p, version)

	return task, nil
}

func (s *PortfolioService) SetMarketOpen(ctx context.Context, portfolioID string, open bool) model.Portfolio {
	session := s.session(ctx, portfolioID)
	session.SetMarketOpen(open)
	slog.Info("market toggled", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("portfolioID", portfolioID), slog.Bool("open", open))
	return session.Portfolio()
}

// Export renders the active portfolio and, when upload is enabled, returns a share link.
func (s *PortfolioService) Export(ctx context.Context, portfolioID string) (fileBytes []byte, filename, link string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.Export"

	slog.Debug("Export start", slog.String("rqID", rqID), slog.String("op", op), slog.String("portfolioID", portfolioID))

	p := s.session(ctx, portfolioID).Portfolio()

	fileBytes, ext, err := s.report.Generate(ctx, p)
	if err != nil {
		slog.Error("got error from report.Generate", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", "", err
	}

	filename = fmt.Sprintf("portfolio_%s_%s%s", p.ID, s.now().Format("2006-01-02"), ext)

	if s.cloud == nil {
		return fileBytes, filename, "", nil
	}

	link, err = s.cloud.UploadFile(ctx, bytes.NewReader(fileBytes), filename)
	if err != nil {
		// файл все равно отдаем, ссылки просто не будет
		slog.Warn("upload failed, returning file only", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return fileBytes, filename, "", nil
	}

	return fileBytes, filename, link, nil
}

// persist hands a committed change to the write queue. It runs inside Session.Write's commit,
// which already counted the write as pending for non-local portfolios.
func (s *PortfolioService) persist(ctx context.Context, session *state.Session, before, after model.Portfolio, txs []model.Transaction) *syncService.Task {
	if after.Local {
		return syncService.CompletedTask(syncService.Report{Skipped: true})
	}

	return s.sync.PersistAsync(ctx, syncService.PersistRequest{
		PortfolioID:  after.ID,
		Holdings:     after.Holdings,
		Transactions: txs,
		Previous:     before.Holdings,
		OnDone:       func(syncService.Report) { session.EndWrite() },
	})
}

func (s *PortfolioService) newTransaction(date time.Time, txType model.TxType, symbol, name string, shares, price any) model.Transaction {
	sh := sanitizer.Number(shares)
	pr := sanitizer.Number(price)
	return model.Transaction{
		ID:         uuid.NewString(),
		Date:       date,
		Type:       txType,
		Symbol:     model.SymbolKey(sanitizer.Text(symbol)),
		Name:       sanitizer.Text(name),
		Shares:     sh,
		Price:      pr,
		TotalValue: sh * pr,
	}
}

func normalizeTxType(raw string) (model.TxType, bool) {
	switch strings.Join(strings.Fields(strings.ToUpper(raw)), " ") {
	case "BUY", "MARKET BUY":
		return model.TxBuy, true
	case "SELL", "MARKET SELL":
		return model.TxSell, true
	default:
		return "", false
	}
}

var dateLayouts = []string{time.DateOnly, time.RFC3339, time.DateTime}

func parseDate(rqID string, row int, raw string, fallback time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	slog.Warn("import row has no valid date, using now", slog.String("rqID", rqID), slog.Int("row", row), slog.String("date", raw))
	return fallback
}
