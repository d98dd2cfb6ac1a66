// Package state holds the in-memory active portfolios. Each portfolio gets its own Session,
// and every mutation of the active state goes through it.
package state

import (
	"errors"
	"sync"

	"github.com/KotFed0t/portfolio_tracker/internal/model"
)

var ErrSyncInProgress = errors.New("error sync already in progress")

type SyncState int

const (
	SyncIdle SyncState = iota
	SyncImporting
)

func (s SyncState) String() string {
	switch s {
	case SyncIdle:
		return "idle"
	case SyncImporting:
		return "importing"
	default:
		return "unknown"
	}
}

type Session struct {
	mu         sync.RWMutex
	portfolio  model.Portfolio
	syncState  SyncState
	pending    int
	marketOpen bool
	// version grows with every committed change, it orders the cache mirrors of this session
	version uint64
	// writes counts committed Write calls
	writes uint64
}

func NewSession(p model.Portfolio) *Session {
	return &Session{portfolio: p.Clone(), version: 1}
}

// Portfolio returns a copy of the active portfolio.
func (s *Session) Portfolio() model.Portfolio {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.portfolio.Clone()
}

func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.portfolio.ID
}

// Update runs fn on a working copy; the copy replaces the active portfolio only if fn succeeds,
// so readers never observe an intermediate state.
func (s *Session) Update(fn func(p *model.Portfolio) error) (model.Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.portfolio.Clone()
	if err := fn(&working); err != nil {
		return s.portfolio.Clone(), err
	}

	s.portfolio = working
	s.version++
	return working.Clone(), nil
}

// Write is Update for changes that go to the remote store. The write is counted as pending
// before the new state becomes visible, and commit runs under the session lock, so commits are
// handed over in the order they were applied. commit must not block or call back into the session.
// Local portfolios have nothing to write remotely and are not counted.
func (s *Session) Write(fn func(p *model.Portfolio) error, commit func(before, after model.Portfolio)) (model.Portfolio, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	remote := !s.portfolio.Local
	if remote {
		s.pending++
	}

	working := s.portfolio.Clone()
	if err := fn(&working); err != nil {
		if remote {
			s.pending--
		}
		return s.portfolio.Clone(), s.version, err
	}

	before := s.portfolio
	s.portfolio = working
	s.version++
	s.writes++
	if commit != nil {
		commit(before.Clone(), working.Clone())
	}
	return working.Clone(), s.version, nil
}

// QuietMark is Quiet plus a mark of the writes committed so far, to be passed to Refresh.
func (s *Session) QuietMark() (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes, s.syncState == SyncIdle && s.pending == 0
}

// Refresh replaces the active portfolio with fn's result, but only while the session is quiet
// and no Write was committed since mark. The check and the replacement happen under one lock.
func (s *Session) Refresh(mark uint64, fn func(cur *model.Portfolio)) (model.Portfolio, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.syncState != SyncIdle || s.pending > 0 || s.writes != mark {
		return model.Portfolio{}, s.version, false
	}

	working := s.portfolio.Clone()
	fn(&working)
	s.portfolio = working
	s.version++
	return working.Clone(), s.version, true
}

func (s *Session) Replace(p model.Portfolio) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.portfolio = p.Clone()
	s.version++
}

func (s *Session) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// BeginSync moves the session from Idle to Importing. A second import while one is in flight is rejected.
func (s *Session) BeginSync() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.syncState != SyncIdle {
		return ErrSyncInProgress
	}
	s.syncState = SyncImporting
	return nil
}

func (s *Session) EndSync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncState = SyncIdle
}

func (s *Session) SyncState() SyncState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.syncState
}

// EndWrite marks one background remote write started by Write as finished.
func (s *Session) EndWrite() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending > 0 {
		s.pending--
	}
}

// Quiet reports whether remote state can be observed without seeing our own partial writes.
func (s *Session) Quiet() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.syncState == SyncIdle && s.pending == 0
}

func (s *Session) SetMarketOpen(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marketOpen = open
}

func (s *Session) MarketOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.marketOpen
}
