package usecase

import (
	"math/big"
	"sync"
	"time"

	"golang.org/x/xerrors"

	bCtx "github.com/feeflow/goclient/base/ctx"
	"github.com/feeflow/goclient/base/goroutine"
	"github.com/feeflow/goclient/base/log"
	"github.com/feeflow/goclient/base/metrics"
	"github.com/feeflow/goclient/base/pulse"
	"github.com/feeflow/goclient/domain"
	"github.com/feeflow/goclient/domain/auction"
)

// pulseTtl is how long a new-bid highlight stays lit. A fresh detection on
// the same token re-arms the timer instead of stacking a second one.
const pulseTtl = 12 * time.Second

type impl struct {
	params      auction.Params
	indexerRepo auction.IndexerRepo
	chainRepo   auction.ChainRepo
	walletRepo  auction.WalletRepo
	rec         *reconciler
	poller      *poller
	pulses      *pulse.Table
	met         metrics.Service

	mu          sync.Mutex
	lastIndexer []*auction.Auction
	merged      []*auction.Auction
	onNewBid    func(token domain.Address)
	closeTimer  *time.Timer
	closed      bool
}

type Config struct {
	Params      auction.Params
	IndexerRepo auction.IndexerRepo
	ChainRepo   auction.ChainRepo
	WalletRepo  auction.WalletRepo
}

func New(cfg Config) auction.UseCase {
	im := &impl{
		params:      cfg.Params,
		indexerRepo: cfg.IndexerRepo,
		chainRepo:   cfg.ChainRepo,
		walletRepo:  cfg.WalletRepo,
		rec:         newReconciler(),
		met:         metrics.New("auction_usecase"),
	}
	im.pulses = pulse.NewTable(nil)
	im.poller = newPoller(cfg.ChainRepo, im.applyChainSnapshot)
	return im
}

// Classify reports which configured tokens could have an auction started
// now and which are still cooling down. Tokens whose fee balance is
// unknown are omitted rather than guessed.
func (im *impl) Classify(c bCtx.Ctx, now domain.UnixTime) (*auction.Classification, error) {
	fees, err := im.indexerRepo.GetFeeBalances(c, im.params.Tokens)
	if err != nil {
		c.WithField("err", err).Error("get fee balances failed")
		return nil, err
	}
	last, err := im.indexerRepo.GetLastAuctions(c, im.params.Tokens)
	if err != nil {
		c.WithField("err", err).Error("get last auctions failed")
		return nil, err
	}
	return ClassifyAuctions(im.params, fees, last, now), nil
}

// Merge runs one full reconciliation round: indexer snapshot plus fresh
// chain reads for every auction either source knows about. When the
// indexer is down the round degrades to chain data over the last snapshot
// that succeeded.
func (im *impl) Merge(c bCtx.Ctx, viewer domain.Address) (*auction.MergeResult, error) {
	defer im.met.BumpTime("merge.latency").End()

	var opts []auction.FindOptionsFunc
	if !viewer.IsEmpty() {
		opts = append(opts, auction.WithViewer(viewer))
	}

	indexed, err := im.indexerRepo.GetOngoingAuctions(c, opts...)
	im.mu.Lock()
	if err != nil {
		im.met.BumpSum("merge.indexer.err", 1)
		c.WithField("err", err).Warn("indexer unreachable, merging chain data only")
		indexed = im.lastIndexer
	} else {
		im.lastIndexer = indexed
	}
	im.mu.Unlock()

	tokens := im.mergeTokenSet(indexed)
	states, chainErr := im.chainRepo.ReadAuctionState(c, tokens)
	if chainErr != nil && len(states) == 0 && err != nil {
		// both sources down; nothing trustworthy to merge
		return nil, xerrors.Errorf("merge sources unavailable: %w", chainErr)
	}

	res := im.rec.Reconcile(indexed, states)
	im.finishRound(c, res)
	return res, nil
}

// mergeTokenSet is the union of tokens the indexer reports ongoing and
// tokens we already track, so a chain-only instance keeps being read after
// an indexer outage begins.
func (im *impl) mergeTokenSet(indexed []*auction.Auction) []domain.Address {
	seen := map[domain.Address]struct{}{}
	var tokens []domain.Address
	add := func(t domain.Address) {
		t = t.ToLower()
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			tokens = append(tokens, t)
		}
	}
	for _, a := range indexed {
		add(a.Token)
	}
	im.mu.Lock()
	for _, a := range im.merged {
		add(a.Token)
	}
	im.mu.Unlock()
	return tokens
}

// applyChainSnapshot folds one poll round into the merged view. The
// indexer side is whatever the last successful snapshot held.
func (im *impl) applyChainSnapshot(c bCtx.Ctx, states map[domain.Address]*auction.ChainState) {
	im.mu.Lock()
	indexed := im.lastIndexer
	im.mu.Unlock()

	res := im.rec.Reconcile(indexed, states)
	im.finishRound(c, res)
}

func (im *impl) finishRound(c bCtx.Ctx, res *auction.MergeResult) {
	im.mu.Lock()
	im.merged = res.Merged
	notify := im.onNewBid
	im.mu.Unlock()

	ongoing := make([]domain.Address, 0, len(res.Merged))
	now := domain.UnixTime(time.Now().Unix())
	for _, a := range res.Merged {
		if a.Status(im.params.AuctionDuration, now) == auction.StatusOngoing {
			ongoing = append(ongoing, a.Token)
		}
	}
	im.poller.SetTokens(ongoing)

	for _, token := range res.NewBids {
		im.met.BumpSum("merge.new_bid", 1)
		im.pulses.Arm(token.ToLowerStr(), pulseTtl)
		if notify != nil {
			notify(token)
		}
	}

	im.armCloseTrigger(res.Merged, now)
}

// armCloseTrigger schedules one poll burst at the nearest auction close,
// when the leader stops being able to change and settlement opens up.
// Each round replaces the pending trigger.
func (im *impl) armCloseTrigger(merged []*auction.Auction, now domain.UnixTime) {
	var nearest domain.UnixTime
	for _, a := range merged {
		end := a.StartTime.Add(im.params.AuctionDuration)
		if end > now && (nearest == 0 || end < nearest) {
			nearest = end
		}
	}

	im.mu.Lock()
	defer im.mu.Unlock()
	if im.closed {
		return
	}
	if im.closeTimer != nil {
		im.closeTimer.Stop()
		im.closeTimer = nil
	}
	if nearest == 0 {
		return
	}
	im.closeTimer = time.AfterFunc(time.Until(nearest.Time()), func() {
		im.poller.Trigger(bCtx.Background())
	})
}

// MergedView returns the last reconciled view. It never blocks on a
// source read.
func (im *impl) MergedView(c bCtx.Ctx) []*auction.Auction {
	im.mu.Lock()
	defer im.mu.Unlock()
	view := make([]*auction.Auction, len(im.merged))
	copy(view, im.merged)
	return view
}

func (im *impl) ValidateNewBid(c bCtx.Ctx, proposed, currentBid, balance *big.Int) error {
	return ValidateNewBid(proposed, currentBid, im.params.IncrementPct, balance)
}

func (im *impl) ValidateTopUp(c bCtx.Ctx, proposedTopUp, currentBid, balance *big.Int) error {
	return ValidateTopUp(proposedTopUp, currentBid, im.params.IncrementPct, balance)
}

// StartAuction opens a new instance for token. The wrapped native token is
// never auctioned against itself; starting it collects the fees directly.
func (im *impl) StartAuction(c bCtx.Ctx, token domain.Address) (domain.TxHash, error) {
	action := auction.TxActionStartAuction
	if token.Equals(domain.WrappedNative(im.params.ChainId)) {
		action = auction.TxActionCollectFees
	}
	hash, err := im.walletRepo.Submit(c, action, token, nil)
	if err != nil {
		c.WithFields(log.Fields{
			"err":   err,
			"token": token,
		}).Error("start auction failed")
		return "", err
	}
	im.watchConfirmation(c, hash, token)
	return hash, nil
}

// PlaceBid validates and submits a fresh outbid.
func (im *impl) PlaceBid(c bCtx.Ctx, token domain.Address, amount, balance *big.Int) (domain.TxHash, error) {
	current, _ := im.currentLeader(token)
	if err := im.ValidateNewBid(c, amount, current, balance); err != nil {
		return "", err
	}
	return im.submitBid(c, token, amount)
}

// TopUp validates and submits an additional amount from the standing
// leader. The contract adds it to the leader's existing bid, so anyone
// else calling it would just place an undersized fresh bid; reject those
// before they reach the chain.
func (im *impl) TopUp(c bCtx.Ctx, token domain.Address, delta, balance *big.Int) (domain.TxHash, error) {
	current, leader := im.currentLeader(token)
	if leader.IsEmpty() || !leader.Equals(im.walletRepo.Address()) {
		return "", domain.ErrNotHighestBidder
	}
	if err := im.ValidateTopUp(c, delta, current, balance); err != nil {
		return "", err
	}
	return im.submitBid(c, token, delta)
}

func (im *impl) submitBid(c bCtx.Ctx, token domain.Address, amount *big.Int) (domain.TxHash, error) {
	hash, err := im.walletRepo.Submit(c, auction.TxActionBid, token, amount)
	if err != nil {
		c.WithFields(log.Fields{
			"err":   err,
			"token": token,
		}).Error("bid submission failed")
		return "", err
	}
	im.met.BumpSum("bid.submitted", 1)
	im.watchConfirmation(c, hash, token)
	return hash, nil
}

// watchConfirmation waits out the receipt in the background and kicks off
// a poll burst once the chain state actually moved.
func (im *impl) watchConfirmation(c bCtx.Ctx, hash domain.TxHash, token domain.Address) {
	goroutine.RecoverableGo(func() {
		status, err := im.walletRepo.WaitConfirmed(c, hash)
		if err != nil {
			c.WithFields(log.Fields{
				"err":  err,
				"hash": hash,
			}).Warn("tx confirmation wait failed")
			return
		}
		c.WithFields(log.Fields{
			"hash":   hash,
			"token":  token,
			"status": status,
		}).Info("tx resolved")
		if status == auction.TxStatusConfirmed {
			im.poller.Trigger(c)
		}
	})
}

func (im *impl) currentLeader(token domain.Address) (*big.Int, domain.Address) {
	im.mu.Lock()
	defer im.mu.Unlock()
	for _, a := range im.merged {
		if a.Token.Equals(token) {
			return a.HighestBidOrZero(), a.HighestBidder
		}
	}
	return domain.Big0, ""
}

func (im *impl) SetModalOpen(open bool) {
	im.poller.SetModalOpen(open)
}

func (im *impl) OnNewBid(fn func(token domain.Address)) {
	im.mu.Lock()
	im.onNewBid = fn
	im.mu.Unlock()
}

// Pulsing reports whether token's new-bid highlight is still lit.
func (im *impl) Pulsing(token domain.Address) bool {
	return im.pulses.Active(token.ToLowerStr())
}

// Close cancels any in-flight poll burst and pending timers.
func (im *impl) Close() {
	im.mu.Lock()
	im.closed = true
	if im.closeTimer != nil {
		im.closeTimer.Stop()
		im.closeTimer = nil
	}
	im.mu.Unlock()

	im.poller.Stop()
	im.pulses.Stop()
}
