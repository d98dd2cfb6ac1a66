package syncService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/KotFed0t/portfolio_tracker/config"
	"github.com/KotFed0t/portfolio_tracker/data/repository"
	"github.com/KotFed0t/portfolio_tracker/internal/ledger"
	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/internal/state"
	"github.com/KotFed0t/portfolio_tracker/utils"
	"golang.org/x/time/rate"
)

type Repository interface {
	GetPortfolio(ctx context.Context, portfolioID string) (model.Portfolio, error)
	GetHoldings(ctx context.Context, portfolioID string) ([]model.Holding, error)
	GetTransactions(ctx context.Context, portfolioID string) ([]model.Transaction, error)
	GetManualAssets(ctx context.Context, portfolioID string) ([]model.ManualAsset, error)
	GetLiabilities(ctx context.Context, portfolioID string) ([]model.Liability, error)
	InsertTransactions(ctx context.Context, portfolioID string, transactions []model.Transaction) error
	UpsertHoldings(ctx context.Context, portfolioID string, holdings []model.Holding) error
	DeleteHoldings(ctx context.Context, portfolioID string, symbols []string) error
}

type Cache interface {
	SetPortfolio(ctx context.Context, portfolio model.Portfolio) error
	GetPortfolio(ctx context.Context, portfolioID string) (model.Portfolio, error)
}

type Sessions interface {
	Get(portfolioID string) (*state.Session, bool)
}

// Source tells which tier of the load ladder produced a portfolio.
type Source string

const (
	SourceRemote  Source = "remote"
	SourceCache   Source = "cache"
	SourceDefault Source = "default"
)

// PersistRequest describes the target remote state of one portfolio.
type PersistRequest struct {
	PortfolioID  string
	Holdings     map[string]model.Holding
	Transactions []model.Transaction
	// Previous is the last known holdings set, used for the delete diff when the remote set can't be read.
	Previous map[string]model.Holding
	// OnDone is called after the background run, before the task is finished.
	OnDone func(Report)
}

// portfolioQueue orders the background writes and the cache mirrors of one portfolio.
type portfolioQueue struct {
	mu   sync.Mutex
	tail *Task

	mirrorMu sync.Mutex
	mirrored uint64
}

type SyncService struct {
	repo  Repository
	cache Cache
	cfg   *config.Config

	mu     sync.Mutex
	queues map[string]*portfolioQueue
}

func New(repo Repository, cache Cache, cfg *config.Config) *SyncService {
	return &SyncService{repo: repo, cache: cache, cfg: cfg, queues: map[string]*portfolioQueue{}}
}

func (s *SyncService) queue(portfolioID string) *portfolioQueue {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queues[portfolioID]
	if !ok {
		q = &portfolioQueue{}
		s.queues[portfolioID] = q
	}
	return q
}

func (s *SyncService) chunkSize() int {
	if s.cfg.Sync.ChunkSize < 1 {
		return 1
	}
	return s.cfg.Sync.ChunkSize
}

func (s *SyncService) newLimiter() *rate.Limiter {
	if s.cfg.Sync.ChunkDelay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(s.cfg.Sync.ChunkDelay), 1)
}

func (s *SyncService) remoteCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Sync.RemoteTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.Sync.RemoteTimeout)
}

// Load walks the ladder remote -> cache -> empty portfolio. It never fails.
func (s *SyncService) Load(ctx context.Context, portfolioID string) (model.Portfolio, Source) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "SyncService.Load"

	slog.Debug("Load start", slog.String("rqID", rqID), slog.String("op", op), slog.String("portfolioID", portfolioID))

	p, err := s.LoadRemote(ctx, portfolioID)
	if err == nil {
		// версия 0: любая правка активной сессии новее снимка при загрузке
		s.CacheSnapshot(ctx, p, 0)
		slog.Debug("Load finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("source", string(SourceRemote)))
		return p, SourceRemote
	}
	slog.Warn("remote load failed, trying cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))

	p, err = s.cache.GetPortfolio(ctx, portfolioID)
	if err == nil {
		slog.Debug("Load finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("source", string(SourceCache)))
		return p, SourceCache
	}
	slog.Warn("cache load failed, using empty portfolio", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))

	return model.NewPortfolio(portfolioID, ""), SourceDefault
}

// LoadRemote reads the whole portfolio aggregate from the row store under the remote timeout.
func (s *SyncService) LoadRemote(ctx context.Context, portfolioID string) (model.Portfolio, error) {
	ctx, cancel := s.remoteCtx(ctx)
	defer cancel()

	p, err := s.repo.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return model.Portfolio{}, fmt.Errorf("get portfolio: %w", err)
	}

	holdings, err := s.repo.GetHoldings(ctx, portfolioID)
	if err != nil {
		return model.Portfolio{}, fmt.Errorf("get holdings: %w", err)
	}

	txs, err := s.repo.GetTransactions(ctx, portfolioID)
	if err != nil {
		return model.Portfolio{}, fmt.Errorf("get transactions: %w", err)
	}

	// manual assets and liabilities are optional, a missing table must not block the ledger
	assets, err := s.repo.GetManualAssets(ctx, portfolioID)
	if err != nil {
		slog.Warn("can't load manual assets", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("err", err.Error()))
	}
	liabilities, err := s.repo.GetLiabilities(ctx, portfolioID)
	if err != nil {
		slog.Warn("can't load liabilities", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("err", err.Error()))
	}

	p.Holdings = make(map[string]model.Holding, len(holdings))
	for _, h := range holdings {
		if h.Shares <= ledger.Epsilon {
			continue
		}
		p.Holdings[model.SymbolKey(h.Symbol)] = h
	}
	p.Transactions = txs
	if p.Transactions == nil {
		p.Transactions = []model.Transaction{}
	}
	p.ManualAssets = assets
	if p.ManualAssets == nil {
		p.ManualAssets = []model.ManualAsset{}
	}
	p.Liabilities = liabilities
	if p.Liabilities == nil {
		p.Liabilities = []model.Liability{}
	}

	return p, nil
}

// CacheSnapshot mirrors p into the local cache. version is the session version of p: a snapshot
// older than the last one mirrored for the portfolio is dropped. Failures are only logged.
func (s *SyncService) CacheSnapshot(ctx context.Context, p model.Portfolio, version uint64) {
	q := s.queue(p.ID)
	q.mirrorMu.Lock()
	defer q.mirrorMu.Unlock()

	if version < q.mirrored {
		slog.Debug("stale snapshot not mirrored", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("portfolioID", p.ID), slog.Uint64("version", version))
		return
	}
	q.mirrored = version

	if err := s.cache.SetPortfolio(ctx, p); err != nil {
		slog.Warn(
			"can't mirror portfolio to cache",
			slog.String("rqID", utils.GetRequestIDFromCtx(ctx)),
			slog.String("portfolioID", p.ID),
			slog.String("err", err.Error()),
		)
	}
}

// Persist writes transactions, then upserts holdings, then deletes holdings that disappeared.
// Every stage is chunked; a failed chunk is logged and the loop goes on.
func (s *SyncService) Persist(ctx context.Context, req PersistRequest) (report Report) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "SyncService.Persist"

	slog.Debug(
		"Persist start",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.String("portfolioID", req.PortfolioID),
		slog.Int("transactions", len(req.Transactions)),
		slog.Int("holdings", len(req.Holdings)),
	)
	defer func() {
		slog.Debug(
			"Persist finished",
			slog.String("rqID", rqID),
			slog.String("op", op),
			slog.Int("failedChunks", report.FailedChunks),
		)
	}()

	limiter := s.newLimiter()
	size := s.chunkSize()

	fail := func(stage string, idx int, err error) {
		report.FailedChunks++
		report.Errors = append(report.Errors, fmt.Sprintf("%s chunk %d: %s", stage, idx+1, err.Error()))
		slog.Warn("chunk write failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("stage", stage), slog.Int("chunk", idx+1), slog.String("err", err.Error()))
	}

	// run returns false if ctx is done, remaining chunks are then counted as failed
	run := func(stage string, idx int, fn func(ctx context.Context) error) bool {
		if err := limiter.Wait(ctx); err != nil {
			fail(stage, idx, err)
			return false
		}
		cctx, cancel := s.remoteCtx(ctx)
		defer cancel()
		if err := fn(cctx); err != nil {
			fail(stage, idx, err)
		}
		return true
	}

	idx := 0
	for chunk := range slices.Chunk(req.Transactions, size) {
		ok := run("transactions", idx, func(ctx context.Context) error {
			if err := s.repo.InsertTransactions(ctx, req.PortfolioID, chunk); err != nil {
				return err
			}
			report.TransactionsWritten += len(chunk)
			return nil
		})
		if !ok {
			return report
		}
		idx++
	}

	holdings := make([]model.Holding, 0, len(req.Holdings))
	for _, key := range slices.Sorted(maps.Keys(req.Holdings)) {
		holdings = append(holdings, req.Holdings[key])
	}

	idx = 0
	for chunk := range slices.Chunk(holdings, size) {
		ok := run("holdings", idx, func(ctx context.Context) error {
			if err := s.repo.UpsertHoldings(ctx, req.PortfolioID, chunk); err != nil {
				return err
			}
			report.HoldingsUpserted += len(chunk)
			return nil
		})
		if !ok {
			return report
		}
		idx++
	}

	stale := s.staleSymbols(ctx, req)

	idx = 0
	for chunk := range slices.Chunk(stale, size) {
		ok := run("delete", idx, func(ctx context.Context) error {
			if err := s.repo.DeleteHoldings(ctx, req.PortfolioID, chunk); err != nil {
				return err
			}
			report.HoldingsDeleted += len(chunk)
			return nil
		})
		if !ok {
			return report
		}
		idx++
	}

	return report
}

// staleSymbols diffs the known remote row set against the target holdings.
func (s *SyncService) staleSymbols(ctx context.Context, req PersistRequest) []string {
	known := map[string]string{}

	cctx, cancel := s.remoteCtx(ctx)
	defer cancel()

	remote, err := s.repo.GetHoldings(cctx, req.PortfolioID)
	if err != nil {
		slog.Warn("can't read remote holdings, diffing against previous snapshot", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("err", err.Error()))
		for key, h := range req.Previous {
			known[key] = h.Symbol
		}
	} else {
		for _, h := range remote {
			known[model.SymbolKey(h.Symbol)] = h.Symbol
		}
	}

	var stale []string
	for _, key := range slices.Sorted(maps.Keys(known)) {
		if _, ok := req.Holdings[key]; !ok {
			stale = append(stale, known[key])
		}
	}
	return stale
}

// PersistAsync runs Persist in the background. Runs for one portfolio are strictly sequential in
// call order, the next one starts after the previous task is finished. The returned task outlives ctx cancellation.
func (s *SyncService) PersistAsync(ctx context.Context, req PersistRequest) *Task {
	task := newTask()
	bg := context.WithoutCancel(ctx)

	q := s.queue(req.PortfolioID)
	q.mu.Lock()
	prev := q.tail
	q.tail = task
	q.mu.Unlock()

	go func() {
		if prev != nil {
			<-prev.Done()
		}

		report := s.Persist(bg, req)
		if !report.OK() {
			slog.Warn(
				"background persist finished with failures",
				slog.String("rqID", utils.GetRequestIDFromCtx(bg)),
				slog.String("portfolioID", req.PortfolioID),
				slog.Int("failedChunks", report.FailedChunks),
			)
		}
		if req.OnDone != nil {
			req.OnDone(report)
		}
		task.finish(report)
	}()

	return task
}

// WatchChanges re-fetches active portfolios on remote change events until ctx is done or events is closed.
// Events for sessions with an import or own writes in flight are suppressed.
func (s *SyncService) WatchChanges(ctx context.Context, events <-chan model.ChangeEvent, sessions Sessions) {
	op := "SyncService.WatchChanges"

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.handleChange(utils.WithRequestID(ctx, ""), op, ev, sessions)
		}
	}
}

func (s *SyncService) handleChange(ctx context.Context, op string, ev model.ChangeEvent, sessions Sessions) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	session, ok := sessions.Get(ev.PortfolioID)
	if !ok {
		return
	}

	mark, quiet := session.QuietMark()
	if !quiet {
		slog.Info("change event suppressed, sync in flight", slog.String("rqID", rqID), slog.String("op", op), slog.String("portfolioID", ev.PortfolioID), slog.String("table", ev.Table))
		return
	}

	fresh, err := s.LoadRemote(ctx, ev.PortfolioID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return
		}
		slog.Warn("re-fetch on change failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return
	}

	// событие могло устареть пока мы читали, проверка и замена под одним локом
	p, version, ok := session.Refresh(mark, func(cur *model.Portfolio) {
		// live prices are not stored remotely, keep the ones from the running session
		for key, h := range fresh.Holdings {
			if old, ok := cur.Holdings[key]; ok && old.CurrentPrice > 0 {
				h.CurrentPrice = old.CurrentPrice
				fresh.Holdings[key] = h
			}
		}
		fresh.Local = cur.Local
		*cur = fresh
	})
	if !ok {
		slog.Info("re-fetched portfolio dropped, local writes started meanwhile", slog.String("rqID", rqID), slog.String("op", op), slog.String("portfolioID", ev.PortfolioID))
		return
	}

	s.CacheSnapshot(ctx, p, version)

	slog.Debug("portfolio re-fetched on change", slog.String("rqID", rqID), slog.String("op", op), slog.String("portfolioID", ev.PortfolioID))
}
