package portfolioService

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/KotFed0t/portfolio_tracker/config"
	"github.com/KotFed0t/portfolio_tracker/internal/ledger"
	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/internal/service"
	"github.com/KotFed0t/portfolio_tracker/internal/service/syncService"
	"github.com/KotFed0t/portfolio_tracker/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	err     error
	created []model.Portfolio
}

func (r *fakeRepo) CreatePortfolio(_ context.Context, p model.Portfolio) error {
	if r.err != nil {
		return r.err
	}
	r.created = append(r.created, p)
	return nil
}

type fakeSync struct {
	mu       sync.Mutex
	loaded   map[string]model.Portfolio
	cached   map[string]model.Portfolio
	versions map[string][]uint64
	requests []syncService.PersistRequest

	// hold, if set, keeps every background write in flight until it is closed
	hold chan struct{}
	wg   sync.WaitGroup
}

func newFakeSync() *fakeSync {
	return &fakeSync{
		loaded:   map[string]model.Portfolio{},
		cached:   map[string]model.Portfolio{},
		versions: map[string][]uint64{},
	}
}

func (s *fakeSync) Load(_ context.Context, id string) (model.Portfolio, syncService.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.loaded[id]; ok {
		return p.Clone(), syncService.SourceRemote
	}
	return model.NewPortfolio(id, ""), syncService.SourceDefault
}

func (s *fakeSync) CacheSnapshot(_ context.Context, p model.Portfolio, version uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached[p.ID] = p.Clone()
	s.versions[p.ID] = append(s.versions[p.ID], version)
}

// PersistAsync is called under the session lock, so OnDone runs in the background.
// wait blocks until it has run.
func (s *fakeSync) PersistAsync(_ context.Context, req syncService.PersistRequest) *syncService.Task {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	r := syncService.Report{TransactionsWritten: len(req.Transactions), HoldingsUpserted: len(req.Holdings)}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if s.hold != nil {
			<-s.hold
		}
		if req.OnDone != nil {
			req.OnDone(r)
		}
	}()
	return syncService.CompletedTask(r)
}

func (s *fakeSync) wait(t *testing.T, task *syncService.Task) syncService.Report {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r, err := task.Wait(ctx)
	require.NoError(t, err)
	s.wg.Wait()
	return r
}

type fakeReport struct{}

func (fakeReport) Generate(_ context.Context, p model.Portfolio) ([]byte, string, error) {
	return []byte("xlsx:" + p.ID), ".xlsx", nil
}

type fakeCloud struct {
	err  error
	name string
}

func (c *fakeCloud) UploadFile(_ context.Context, r io.Reader, filename string) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	_, _ = io.ReadAll(r)
	c.name = filename
	return "https://drive.example/" + filename, nil
}

func newTestService(t *testing.T, repo *fakeRepo, fs *fakeSync) *PortfolioService {
	t.Helper()
	cfg := &config.Config{}
	cfg.Sync.RemoteTimeout = time.Second
	s := New(cfg, repo, fs, state.NewRegistry(), ledger.New(ledger.DefaultReference), fakeReport{}, nil)
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestCreatePortfolio_Remote(t *testing.T) {
	repo := &fakeRepo{}
	fs := newFakeSync()
	s := newTestService(t, repo, fs)

	p, err := s.CreatePortfolio(context.Background(), "  <b>Retirement</b> ")
	require.NoError(t, err)

	assert.Equal(t, "Retirement", p.Name)
	assert.False(t, p.Local)
	require.Len(t, repo.created, 1)
	assert.Contains(t, fs.cached, p.ID)

	got, err := s.GetPortfolio(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestCreatePortfolio_LocalFallback(t *testing.T) {
	s := newTestService(t, &fakeRepo{err: context.DeadlineExceeded}, newFakeSync())

	p, err := s.CreatePortfolio(context.Background(), "")
	require.NoError(t, err)

	assert.True(t, p.Local)
	assert.Equal(t, defaultPortfolioName, p.Name)
	assert.NotEmpty(t, p.ID)
}

func TestApplyTransaction_BuyThenSell(t *testing.T) {
	fs := newFakeSync()
	s := newTestService(t, &fakeRepo{}, fs)
	ctx := context.Background()

	p, task, err := s.ApplyTransaction(ctx, "p1", model.TradeRequest{Type: "buy", Symbol: "aapl", Shares: "10", Price: "$150.00"})
	require.NoError(t, err)
	fs.wait(t, task)

	require.Contains(t, p.Holdings, "AAPL")
	assert.Equal(t, 10.0, p.Holdings["AAPL"].Shares)
	assert.Equal(t, "Apple Inc.", p.Holdings["AAPL"].Name)
	assert.Equal(t, 1500.0, p.TotalValue())

	p, task, err = s.ApplyTransaction(ctx, "p1", model.TradeRequest{Type: model.TxSell, Symbol: "AAPL", Shares: 4, Price: 200})
	require.NoError(t, err)
	fs.wait(t, task)

	assert.Equal(t, 6.0, p.Holdings["AAPL"].Shares)
	assert.Equal(t, 150.0, p.Holdings["AAPL"].AvgPrice)

	require.Len(t, p.Transactions, 2)
	assert.Equal(t, model.TxSell, p.Transactions[0].Type)
	assert.Equal(t, 800.0, p.Transactions[0].TotalValue)

	require.Len(t, fs.requests, 2)
	assert.Len(t, fs.requests[1].Transactions, 1)
	assert.Equal(t, p, fs.cached["p1"])
}

func TestApplyTransaction_Rejections(t *testing.T) {
	s := newTestService(t, &fakeRepo{}, newFakeSync())
	ctx := context.Background()

	_, _, err := s.ApplyTransaction(ctx, "p1", model.TradeRequest{Type: model.TxSell, Symbol: "MSFT", Shares: 1, Price: 1})
	assert.ErrorIs(t, err, ledger.ErrUnknownHolding)

	_, _, err = s.ApplyTransaction(ctx, "p1", model.TradeRequest{Type: "HOLD", Symbol: "MSFT", Shares: 1, Price: 1})
	assert.ErrorIs(t, err, ledger.ErrInvalidTransaction)

	_, _, err = s.ApplyTransaction(ctx, "p1", model.TradeRequest{Type: model.TxBuy, Symbol: "MSFT", Shares: "abc", Price: 1})
	assert.ErrorIs(t, err, ledger.ErrInvalidTransaction)

	p, err := s.GetPortfolio(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, p.Transactions)
	assert.Empty(t, p.Holdings)
}

func TestImportTransactions_OrderSynonymsAndPrune(t *testing.T) {
	fs := newFakeSync()
	s := newTestService(t, &fakeRepo{}, fs)

	res, err := s.ImportTransactions(context.Background(), "p1", []model.ImportRecord{
		{Date: "2024-01-02", Type: "market buy", Symbol: "x", Shares: "10", Price: "10"},
		{Date: "2024-01-03", Type: "BUY", Symbol: "X", Shares: 10, Price: 30},
		{Date: "2024-01-04", Type: "Buy", Symbol: "Y", Shares: 5, Price: 2},
		{Date: "2024-01-05", Type: "MARKET  SELL", Symbol: "y", Shares: 5, Price: 3},
		{Date: "2024-01-06", Type: "SELL", Symbol: "Z", Shares: 1, Price: 1},
		{Date: "bad", Type: "DIVIDEND", Symbol: "X", Shares: 1, Price: 1},
	})
	require.NoError(t, err)
	report := fs.wait(t, res.Task)

	assert.Equal(t, 4, res.Accepted)
	assert.Equal(t, 2, res.Rejected)

	p := res.Portfolio
	require.Len(t, p.Holdings, 1)
	assert.Equal(t, 20.0, p.Holdings["X"].Shares)
	assert.Equal(t, 20.0, p.Holdings["X"].AvgPrice)
	assert.NotContains(t, p.Holdings, "Y")

	// most recent first
	require.Len(t, p.Transactions, 4)
	assert.Equal(t, "Y", p.Transactions[0].Symbol)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), p.Transactions[0].Date)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), p.Transactions[3].Date)

	require.Len(t, fs.requests, 1)
	assert.Len(t, fs.requests[0].Transactions, 4)
	assert.Equal(t, 4, report.TransactionsWritten)

	sess, ok := s.sessions.Get("p1")
	require.True(t, ok)
	assert.Equal(t, state.SyncIdle, sess.SyncState())
}

func TestImportTransactions_AvgCostIsBuyOnlyAcrossImports(t *testing.T) {
	fs := newFakeSync()
	s := newTestService(t, &fakeRepo{}, fs)
	ctx := context.Background()

	res, err := s.ImportTransactions(ctx, "p1", []model.ImportRecord{
		{Date: "2024-01-01", Type: "BUY", Symbol: "X", Shares: 10, Price: 10},
		{Date: "2024-01-02", Type: "SELL", Symbol: "X", Shares: 5, Price: 100},
	})
	require.NoError(t, err)
	fs.wait(t, res.Task)
	assert.Equal(t, 5.0, res.Portfolio.Holdings["X"].Shares)
	assert.Equal(t, 10.0, res.Portfolio.Holdings["X"].AvgPrice)

	res, err = s.ImportTransactions(ctx, "p1", []model.ImportRecord{
		{Date: "2024-01-03", Type: "BUY", Symbol: "X", Shares: 10, Price: 20},
	})
	require.NoError(t, err)
	fs.wait(t, res.Task)

	h := res.Portfolio.Holdings["X"]
	assert.Equal(t, 15.0, h.Shares)
	assert.InDelta(t, (5*10.0+10*20.0)/15, h.AvgPrice, 1e-9)
}

func TestImportTransactions_RejectsConcurrentImport(t *testing.T) {
	fs := newFakeSync()
	s := newTestService(t, &fakeRepo{}, fs)
	ctx := context.Background()

	_, err := s.GetPortfolio(ctx, "p1")
	require.NoError(t, err)
	sess, _ := s.sessions.Get("p1")
	require.NoError(t, sess.BeginSync())

	_, err = s.ImportTransactions(ctx, "p1", []model.ImportRecord{{Type: "BUY", Symbol: "X", Shares: 1, Price: 1}})
	assert.ErrorIs(t, err, state.ErrSyncInProgress)

	sess.EndSync()

	res, err := s.ImportTransactions(ctx, "p1", []model.ImportRecord{{Type: "BUY", Symbol: "X", Shares: 1, Price: 1}})
	require.NoError(t, err)
	fs.wait(t, res.Task)
	// дата не распарсилась, берется текущее время
	assert.Equal(t, s.now(), res.Portfolio.Transactions[0].Date)
}

func TestImportTransactions_LocalPortfolioSkipsRemote(t *testing.T) {
	fs := newFakeSync()
	s := newTestService(t, &fakeRepo{err: errors.New("down")}, fs)
	ctx := context.Background()

	p, err := s.CreatePortfolio(ctx, "offline")
	require.NoError(t, err)

	res, err := s.ImportTransactions(ctx, p.ID, []model.ImportRecord{{Type: "BUY", Symbol: "X", Shares: 1, Price: 1}})
	require.NoError(t, err)

	report := fs.wait(t, res.Task)
	assert.True(t, report.Skipped)
	assert.Empty(t, fs.requests)
	assert.Equal(t, res.Portfolio, fs.cached[p.ID])
}

func TestEditAndDeleteHolding_DoNotLogTransactions(t *testing.T) {
	fs := newFakeSync()
	s := newTestService(t, &fakeRepo{}, fs)
	ctx := context.Background()

	_, task, err := s.ApplyTransaction(ctx, "p1", model.TradeRequest{Type: model.TxBuy, Symbol: "VOO", Shares: 2, Price: 400})
	require.NoError(t, err)
	fs.wait(t, task)

	target := 40.0
	h, task, err := s.EditHolding(ctx, "p1", "voo", model.HoldingPatch{TargetAllocation: &target})
	require.NoError(t, err)
	fs.wait(t, task)
	assert.Equal(t, 40.0, h.TargetAllocation)

	_, _, err = s.EditHolding(ctx, "p1", "QQQ", model.HoldingPatch{})
	assert.ErrorIs(t, err, service.ErrNotFound)

	task, err = s.DeleteHolding(ctx, "p1", "VOO")
	require.NoError(t, err)
	fs.wait(t, task)

	_, err = s.DeleteHolding(ctx, "p1", "VOO")
	assert.ErrorIs(t, err, service.ErrNotFound)

	p, _ := s.GetPortfolio(ctx, "p1")
	assert.Empty(t, p.Holdings)
	assert.Len(t, p.Transactions, 1)

	last := fs.requests[len(fs.requests)-1]
	assert.Empty(t, last.Transactions)
	assert.Contains(t, last.Previous, "VOO")

	sess, _ := s.sessions.Get("p1")
	assert.True(t, sess.Quiet())
}

func TestGetPortfolio_UsesLoadLadder(t *testing.T) {
	fs := newFakeSync()
	remote := model.NewPortfolio("p9", "remote")
	remote.Holdings["BND"] = model.Holding{Symbol: "BND", Shares: 3, CurrentPrice: 70}
	fs.loaded["p9"] = remote
	s := newTestService(t, &fakeRepo{}, fs)

	p, err := s.GetPortfolio(context.Background(), "p9")
	require.NoError(t, err)
	assert.Equal(t, 210.0, p.TotalValue())

	_, err = s.GetPortfolio(context.Background(), " ")
	assert.ErrorIs(t, err, service.ErrPortfolioNotActive)
}

func TestExport(t *testing.T) {
	s := newTestService(t, &fakeRepo{}, newFakeSync())

	data, name, link, err := s.Export(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, []byte("xlsx:p1"), data)
	assert.Equal(t, "portfolio_p1_2024-05-01.xlsx", name)
	assert.Empty(t, link)

	cloud := &fakeCloud{}
	s.cloud = cloud
	_, name, link, err = s.Export(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "https://drive.example/"+name, link)

	s.cloud = &fakeCloud{err: errors.New("quota")}
	data, _, link, err = s.Export(context.Background(), "p1")
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.Empty(t, link)
}

func TestApplyTransaction_PendingUntilPersisted(t *testing.T) {
	fs := newFakeSync()
	fs.hold = make(chan struct{})
	s := newTestService(t, &fakeRepo{}, fs)
	ctx := context.Background()

	_, task, err := s.ApplyTransaction(ctx, "p1", model.TradeRequest{Type: model.TxBuy, Symbol: "AAPL", Shares: 10, Price: 5})
	require.NoError(t, err)

	sess, ok := s.sessions.Get("p1")
	require.True(t, ok)
	assert.False(t, sess.Quiet())

	close(fs.hold)
	fs.wait(t, task)
	assert.True(t, sess.Quiet())
}

func TestApplyTransaction_HandsOffInCommitOrder(t *testing.T) {
	fs := newFakeSync()
	s := newTestService(t, &fakeRepo{}, fs)
	ctx := context.Background()

	_, task, err := s.ApplyTransaction(ctx, "p1", model.TradeRequest{Type: model.TxBuy, Symbol: "AAPL", Shares: 10, Price: 5})
	require.NoError(t, err)
	fs.wait(t, task)
	p, task, err := s.ApplyTransaction(ctx, "p1", model.TradeRequest{Type: model.TxSell, Symbol: "AAPL", Shares: 10, Price: 7})
	require.NoError(t, err)
	fs.wait(t, task)

	assert.Empty(t, p.Holdings)

	require.Len(t, fs.requests, 2)
	assert.Contains(t, fs.requests[0].Holdings, "AAPL")
	// the sell diffs against the state the buy committed
	assert.Equal(t, fs.requests[0].Holdings, fs.requests[1].Previous)
	assert.Empty(t, fs.requests[1].Holdings)

	versions := fs.versions["p1"]
	require.Len(t, versions, 2)
	assert.Less(t, versions[0], versions[1])
	assert.Equal(t, p, fs.cached["p1"])
}
