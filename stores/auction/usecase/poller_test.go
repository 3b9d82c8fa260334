package usecase

import (
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	bCtx "github.com/feeflow/goclient/base/ctx"
	"github.com/feeflow/goclient/domain"
	"github.com/feeflow/goclient/domain/auction"
)

type countingChainRepo struct {
	mu    sync.Mutex
	reads int
	state *auction.ChainState
}

func (m *countingChainRepo) ReadAuctionState(c bCtx.Ctx, tokens []domain.Address) (map[domain.Address]*auction.ChainState, error) {
	m.mu.Lock()
	m.reads++
	m.mu.Unlock()

	states := map[domain.Address]*auction.ChainState{}
	for _, t := range tokens {
		cs := *m.state
		cs.Token = t
		states[t] = &cs
	}
	return states, nil
}

func (m *countingChainRepo) ReadMinBidIncrementPct(c bCtx.Ctx) (*big.Int, error) {
	return big.NewInt(5), nil
}

func (m *countingChainRepo) readCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

type pollerTestSuite struct {
	suite.Suite

	repo *countingChainRepo

	mu        sync.Mutex
	delivered int
}

func TestPoller(t *testing.T) {
	suite.Run(t, new(pollerTestSuite))
}

func (s *pollerTestSuite) SetupTest() {
	s.repo = &countingChainRepo{
		state: &auction.ChainState{
			StartTime:     100,
			HighestBid:    big.NewInt(1),
			HighestBidder: alice,
		},
	}
	s.delivered = 0
}

func (s *pollerTestSuite) newPoller() *poller {
	return newPoller(s.repo, func(c bCtx.Ctx, states map[domain.Address]*auction.ChainState) {
		s.mu.Lock()
		s.delivered++
		s.mu.Unlock()
	})
}

func (s *pollerTestSuite) deliveredCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delivered
}

func (s *pollerTestSuite) TestFirstRoundFiresImmediately() {
	p := s.newPoller()
	defer p.Stop()
	p.SetTokens([]domain.Address{tokenX})

	p.Trigger(bCtx.Background())

	s.Require().Eventually(func() bool {
		return s.repo.readCount() >= 1 && s.deliveredCount() >= 1
	}, time.Second, 10*time.Millisecond)

	latest := p.Latest()
	s.Require().Contains(latest, tokenX)
}

func (s *pollerTestSuite) TestModalGatesRounds() {
	p := s.newPoller()
	defer p.Stop()
	p.SetModalOpen(true)
	p.SetTokens([]domain.Address{tokenX})

	p.Trigger(bCtx.Background())

	time.Sleep(200 * time.Millisecond)
	s.Require().Zero(s.repo.readCount())
	s.Require().Zero(s.deliveredCount())
}

func (s *pollerTestSuite) TestModalCloseStartsBurst() {
	p := s.newPoller()
	defer p.Stop()
	p.SetModalOpen(true)
	p.SetTokens([]domain.Address{tokenX})

	// burn a whole gated burst so the close can't ride on a leftover round
	p.Trigger(bCtx.Background())
	time.Sleep(200 * time.Millisecond)
	s.Require().Zero(s.repo.readCount())

	p.SetModalOpen(false)
	s.Require().Eventually(func() bool {
		return s.repo.readCount() >= 1 && s.deliveredCount() >= 1
	}, time.Second, 10*time.Millisecond)
}

func (s *pollerTestSuite) TestTokenSetChangeStartsBurst() {
	p := s.newPoller()
	defer p.Stop()

	p.SetTokens([]domain.Address{tokenX})
	s.Require().Eventually(func() bool {
		return s.repo.readCount() >= 1
	}, time.Second, 10*time.Millisecond)

	// the same set again is not a change and must not restart the burst
	before := s.repo.readCount()
	p.SetTokens([]domain.Address{tokenX})
	time.Sleep(200 * time.Millisecond)
	s.Require().Equal(before, s.repo.readCount())

	// a genuinely different set polls immediately
	p.SetTokens([]domain.Address{tokenX, tokenY})
	s.Require().Eventually(func() bool {
		return s.repo.readCount() > before
	}, time.Second, 10*time.Millisecond)
}

func (s *pollerTestSuite) TestEmptyTokenSetSkipsReads() {
	p := s.newPoller()
	defer p.Stop()

	p.Trigger(bCtx.Background())

	time.Sleep(200 * time.Millisecond)
	s.Require().Zero(s.repo.readCount())
}

func (s *pollerTestSuite) TestStopCancelsBurst() {
	p := s.newPoller()
	p.SetTokens([]domain.Address{tokenX})

	p.Trigger(bCtx.Background())
	// both the token-set burst and the explicit one run their immediate
	// round before the replacement settles
	s.Require().Eventually(func() bool {
		return s.repo.readCount() >= 2
	}, time.Second, 10*time.Millisecond)

	p.Stop()
	settled := s.repo.readCount()
	time.Sleep(2 * burstInterval)
	s.Require().Equal(settled, s.repo.readCount())
}

// gateChainRepo holds its first read open until release closes, so a test
// can keep one burst's read in flight while a replacement burst finishes.
type gateChainRepo struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
	first   *auction.ChainState
	rest    *auction.ChainState
}

func (m *gateChainRepo) ReadAuctionState(c bCtx.Ctx, tokens []domain.Address) (map[domain.Address]*auction.ChainState, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.mu.Unlock()

	state := m.rest
	if call == 1 {
		<-m.release
		state = m.first
	}
	states := map[domain.Address]*auction.ChainState{}
	for _, t := range tokens {
		cs := *state
		cs.Token = t
		states[t] = &cs
	}
	return states, nil
}

func (m *gateChainRepo) ReadMinBidIncrementPct(c bCtx.Ctx) (*big.Int, error) {
	return big.NewInt(5), nil
}

func (m *gateChainRepo) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (s *pollerTestSuite) TestSupersededBurstKeepsNewerSnapshot() {
	repo := &gateChainRepo{
		release: make(chan struct{}),
		first:   &auction.ChainState{StartTime: 100, HighestBid: big.NewInt(1), HighestBidder: alice},
		rest:    &auction.ChainState{StartTime: 100, HighestBid: big.NewInt(2), HighestBidder: bob},
	}
	p := newPoller(repo, nil)
	defer p.Stop()

	// the token-set burst's read blocks inside the repo
	p.SetTokens([]domain.Address{tokenX})
	s.Require().Eventually(func() bool {
		return repo.callCount() >= 1
	}, time.Second, 10*time.Millisecond)

	// the replacement burst completes a round while the old read hangs
	p.Trigger(bCtx.Background())
	s.Require().Eventually(func() bool {
		latest := p.Latest()
		return latest != nil && latest[tokenX].HighestBid.Cmp(big.NewInt(2)) == 0
	}, time.Second, 10*time.Millisecond)

	// the stale read returns into a cancelled burst and must not win
	close(repo.release)
	time.Sleep(100 * time.Millisecond)
	s.Require().Zero(p.Latest()[tokenX].HighestBid.Cmp(big.NewInt(2)))
}

func (s *pollerTestSuite) TestRetriggerReplacesBurst() {
	p := s.newPoller()
	defer p.Stop()
	p.SetTokens([]domain.Address{tokenX})

	p.Trigger(bCtx.Background())
	p.Trigger(bCtx.Background())

	s.Require().Eventually(func() bool {
		// the token-set burst and both explicit ones run their immediate
		// round; only the last keeps its interval schedule
		return s.repo.readCount() >= 3
	}, time.Second, 10*time.Millisecond)

	// wait out one interval: exactly one read lands, not two
	before := s.repo.readCount()
	time.Sleep(burstInterval + 300*time.Millisecond)
	s.Require().Equal(before+1, s.repo.readCount())
}
