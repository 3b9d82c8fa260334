package usecase

import (
	"context"
	"sync"
	"time"

	bCtx "github.com/feeflow/goclient/base/ctx"
	"github.com/feeflow/goclient/base/goroutine"
	"github.com/feeflow/goclient/base/metrics"
	"github.com/feeflow/goclient/domain"
	"github.com/feeflow/goclient/domain/auction"
)

const (
	burstInterval = 1500 * time.Millisecond
	burstRounds   = 7
)

// poller runs short chain-read bursts after a bid submission, when the
// next change of leader is most likely to land. A burst is 7 reads spaced
// 1.5s apart; triggering while one is running replaces it rather than
// stacking a second burst.
type poller struct {
	chainRepo  auction.ChainRepo
	onSnapshot func(c bCtx.Ctx, states map[domain.Address]*auction.ChainState)
	met        metrics.Service

	mu        sync.Mutex
	tokens    []domain.Address
	modalOpen bool
	cancel    context.CancelFunc
	latest    map[domain.Address]*auction.ChainState
}

func newPoller(chainRepo auction.ChainRepo, onSnapshot func(c bCtx.Ctx, states map[domain.Address]*auction.ChainState)) *poller {
	return &poller{
		chainRepo:  chainRepo,
		onSnapshot: onSnapshot,
		met:        metrics.New("auction_poller"),
	}
}

// SetTokens replaces the token set the next rounds will read. A changed
// set starts a burst, so a newly ongoing auction gets fast reads right
// away instead of waiting out the slow refresh interval.
func (p *poller) SetTokens(tokens []domain.Address) {
	lowered := make([]domain.Address, len(tokens))
	for i, t := range tokens {
		lowered[i] = t.ToLower()
	}
	p.mu.Lock()
	changed := !sameTokens(p.tokens, lowered)
	p.tokens = lowered
	p.mu.Unlock()

	if changed && len(lowered) > 0 {
		p.Trigger(bCtx.Background())
	}
}

func sameTokens(a, b []domain.Address) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SetModalOpen gates polling. Rounds that come due while a modal is open
// are skipped, not queued: the user is mid-decision and a view refresh
// under their cursor would be worse than stale data. Closing the modal
// starts a fresh burst to make up for the skipped rounds.
func (p *poller) SetModalOpen(open bool) {
	p.mu.Lock()
	wasOpen := p.modalOpen
	p.modalOpen = open
	p.mu.Unlock()

	if wasOpen && !open {
		p.Trigger(bCtx.Background())
	}
}

// Trigger starts a burst, replacing any burst already in flight.
func (p *poller) Trigger(c bCtx.Ctx) {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	burstCtx, cancel := bCtx.WithCancel(c)
	p.cancel = cancel
	p.mu.Unlock()

	p.met.BumpSum("burst.trigger", 1)
	goroutine.RecoverableGo(func() {
		p.runBurst(burstCtx)
	})
}

// Stop cancels the in-flight burst, if any.
func (p *poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// Latest returns the last snapshot any round produced.
func (p *poller) Latest() map[domain.Address]*auction.ChainState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest
}

func (p *poller) runBurst(c bCtx.Ctx) {
	ticker := time.NewTicker(burstInterval)
	defer ticker.Stop()

	for round := 0; round < burstRounds; round++ {
		p.pollOnce(c)

		if round == burstRounds-1 {
			return
		}
		select {
		case <-c.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *poller) pollOnce(c bCtx.Ctx) {
	p.mu.Lock()
	skip := p.modalOpen
	tokens := p.tokens
	p.mu.Unlock()

	if skip {
		p.met.BumpSum("round.gated", 1)
		return
	}
	if len(tokens) == 0 {
		return
	}

	defer p.met.BumpTime("round.latency").End()
	states, err := p.chainRepo.ReadAuctionState(c, tokens)
	if err != nil && len(states) == 0 {
		c.WithField("err", err).Warn("poll round yielded nothing")
		return
	}

	// the burst may have been replaced while the read was in flight; a
	// superseded burst must not push its snapshot over the newer one's
	if c.Err() != nil {
		return
	}

	p.mu.Lock()
	p.latest = states
	p.mu.Unlock()

	if p.onSnapshot != nil {
		p.onSnapshot(c, states)
	}
}
