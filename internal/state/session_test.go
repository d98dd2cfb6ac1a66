package state

import (
	"errors"
	"testing"

	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_SyncStateTransitions(t *testing.T) {
	s := NewSession(model.NewPortfolio("p1", "main"))
	assert.Equal(t, SyncIdle, s.SyncState())

	require.NoError(t, s.BeginSync())
	assert.Equal(t, SyncImporting, s.SyncState())
	assert.ErrorIs(t, s.BeginSync(), ErrSyncInProgress)

	s.EndSync()
	assert.Equal(t, SyncIdle, s.SyncState())
	assert.NoError(t, s.BeginSync())
}

func TestSession_UpdateIsAllOrNothing(t *testing.T) {
	s := NewSession(model.NewPortfolio("p1", "main"))

	_, err := s.Update(func(p *model.Portfolio) error {
		p.Holdings["A"] = model.Holding{Symbol: "A", Shares: 1}
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Empty(t, s.Portfolio().Holdings)

	p, err := s.Update(func(p *model.Portfolio) error {
		p.Holdings["A"] = model.Holding{Symbol: "A", Shares: 1}
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, p.Holdings, 1)
	assert.Len(t, s.Portfolio().Holdings, 1)
}

func TestSession_PortfolioReturnsCopy(t *testing.T) {
	s := NewSession(model.NewPortfolio("p1", "main"))

	p := s.Portfolio()
	p.Holdings["A"] = model.Holding{Symbol: "A", Shares: 1}

	assert.Empty(t, s.Portfolio().Holdings)
}

func TestRegistry_GetOrCreate(t *testing.T) {
	r := NewRegistry()
	calls := 0
	newFn := func() *Session {
		calls++
		return NewSession(model.NewPortfolio("p1", "main"))
	}

	first := r.GetOrCreate("p1", newFn)
	second := r.GetOrCreate("p1", newFn)

	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)
	assert.Len(t, r.All(), 1)
}

func buyA(p *model.Portfolio) error {
	p.Holdings["A"] = model.Holding{Symbol: "A", Shares: 1}
	return nil
}

func TestSession_Quiet(t *testing.T) {
	s := NewSession(model.NewPortfolio("p1", "main"))
	assert.True(t, s.Quiet())

	_, _, err := s.Write(buyA, nil)
	require.NoError(t, err)
	_, _, err = s.Write(buyA, nil)
	require.NoError(t, err)
	assert.False(t, s.Quiet())
	s.EndWrite()
	assert.False(t, s.Quiet())
	s.EndWrite()
	assert.True(t, s.Quiet())

	// лишний EndWrite не уводит счетчик в минус
	s.EndWrite()
	assert.True(t, s.Quiet())

	require.NoError(t, s.BeginSync())
	assert.False(t, s.Quiet())
	s.EndSync()
	assert.True(t, s.Quiet())
}

func TestSession_WriteIsPendingBeforeItIsVisible(t *testing.T) {
	s := NewSession(model.NewPortfolio("p1", "main"))

	observed := make(chan bool, 1)
	var before, after model.Portfolio
	p, version, err := s.Write(buyA, func(b, a model.Portfolio) {
		before, after = b, a
		// the reader can only get in once the new state is committed
		go func() { observed <- s.Quiet() }()
	})
	require.NoError(t, err)

	assert.False(t, <-observed)
	assert.Empty(t, before.Holdings)
	assert.Equal(t, p, after)
	assert.Equal(t, uint64(2), version)
	assert.Equal(t, version, s.Version())
}

func TestSession_FailedWriteIsNotPending(t *testing.T) {
	s := NewSession(model.NewPortfolio("p1", "main"))

	called := false
	_, version, err := s.Write(func(*model.Portfolio) error { return errors.New("boom") }, func(model.Portfolio, model.Portfolio) { called = true })
	require.Error(t, err)

	assert.False(t, called)
	assert.True(t, s.Quiet())
	assert.Equal(t, uint64(1), version)
}

func TestSession_LocalWriteIsNotPending(t *testing.T) {
	p := model.NewPortfolio("p1", "main")
	p.Local = true
	s := NewSession(p)

	_, _, err := s.Write(buyA, nil)
	require.NoError(t, err)
	assert.True(t, s.Quiet())
}

func TestSession_RefreshOnlyWhileQuietAndUnchanged(t *testing.T) {
	s := NewSession(model.NewPortfolio("p1", "main"))
	rename := func(p *model.Portfolio) { p.Name = "remote" }

	mark, quiet := s.QuietMark()
	require.True(t, quiet)

	// a write committed and finished after the mark, the re-fetched state is older than it
	_, _, err := s.Write(buyA, nil)
	require.NoError(t, err)
	s.EndWrite()

	_, _, ok := s.Refresh(mark, rename)
	assert.False(t, ok)
	assert.Equal(t, "main", s.Portfolio().Name)

	mark, _ = s.QuietMark()
	require.NoError(t, s.BeginSync())
	_, _, ok = s.Refresh(mark, rename)
	assert.False(t, ok)
	s.EndSync()

	p, version, ok := s.Refresh(mark, rename)
	require.True(t, ok)
	assert.Equal(t, "remote", p.Name)
	assert.Equal(t, s.Version(), version)
}
