package usecase

import (
	"sort"
	"sync"

	"github.com/feeflow/goclient/domain"
	"github.com/feeflow/goclient/domain/auction"
)

// reconciler merges the lagged indexer projection with fresh chain reads
// into one monotonic view. Within a single auction instance the merged
// highest bid never decreases between rounds, and the bid/bidder pair is
// always taken from the same source reading, never mixed.
type reconciler struct {
	mu   sync.Mutex
	prev map[domain.Address]*auction.Auction
}

func newReconciler() *reconciler {
	return &reconciler{prev: map[domain.Address]*auction.Auction{}}
}

// Reconcile merges one round of source readings. indexed may be nil when
// the indexer is unreachable; the engine then degrades to chain data
// overlaid on the last merged view, keeping lot sizes and participants
// from the round that last saw them.
func (r *reconciler) Reconcile(indexed []*auction.Auction, chainStates map[domain.Address]*auction.ChainState) *auction.MergeResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	byToken := map[domain.Address]*auction.Auction{}
	for _, a := range indexed {
		byToken[a.Token.ToLower()] = a
	}

	tokens := map[domain.Address]struct{}{}
	for t := range byToken {
		tokens[t] = struct{}{}
	}
	for t := range chainStates {
		tokens[t.ToLower()] = struct{}{}
	}

	res := &auction.MergeResult{
		Merged:  make([]*auction.Auction, 0, len(tokens)),
		NewBids: []domain.Address{},
	}
	next := make(map[domain.Address]*auction.Auction, len(tokens))

	for token := range tokens {
		merged := r.mergeOne(token, byToken[token], chainStates[token])
		if merged == nil {
			continue
		}
		next[token] = merged
		res.Merged = append(res.Merged, merged)

		if risen(r.prev[token], merged) {
			res.NewBids = append(res.NewBids, token)
		}
	}

	sort.Slice(res.Merged, func(i, j int) bool {
		return res.Merged[i].Token < res.Merged[j].Token
	})
	sort.Slice(res.NewBids, func(i, j int) bool {
		return res.NewBids[i] < res.NewBids[j]
	})

	r.prev = next
	return res
}

func (r *reconciler) mergeOne(token domain.Address, indexed *auction.Auction, cs *auction.ChainState) *auction.Auction {
	base := indexed
	if base == nil {
		// indexer blind this round; start from what we last merged so the
		// lot size and participant history survive the outage
		base = r.prev[token]
	}

	var merged *auction.Auction
	switch {
	case base == nil && cs == nil:
		return nil
	case base == nil:
		merged = fromChainState(cs)
	case cs == nil:
		merged = copyAuction(base)
	case cs.StartTime > base.StartTime:
		// chain sees an instance the indexer has not ingested yet
		merged = fromChainState(cs)
	case cs.StartTime < base.StartTime:
		merged = copyAuction(base)
	default:
		merged = copyAuction(base)
		// same instance: fresher leader wins, ties stay with the indexer
		// because only it carries the full record
		if cs.HighestBid != nil && cs.HighestBid.Cmp(merged.HighestBidOrZero()) > 0 {
			merged.HighestBid = cs.HighestBid
			merged.HighestBidder = cs.HighestBidder.ToLower()
		}
	}

	// ratchet against the previous round: a source reading that lags what
	// we already showed never rolls the view back
	if prev, ok := r.prev[token]; ok {
		if prev.StartTime > merged.StartTime {
			return copyAuction(prev)
		}
		if prev.SameInstance(merged) {
			if merged.HighestBidOrZero().Cmp(prev.HighestBidOrZero()) < 0 {
				merged.HighestBid = prev.HighestBid
				merged.HighestBidder = prev.HighestBidder
			}
			if merged.LotAmount == nil {
				merged.LotAmount = prev.LotAmount
			}
			if len(merged.Participants) == 0 {
				merged.Participants = prev.Participants
			}
		}
	}
	return merged
}

// risen reports whether the merged record shows a bid the previous round
// did not. A token absent last round counts as bid zero; a fresh instance
// resets the baseline to zero as well.
func risen(prev, merged *auction.Auction) bool {
	if merged == nil {
		return false
	}
	baseline := domain.Big0
	if prev != nil && prev.SameInstance(merged) {
		baseline = prev.HighestBidOrZero()
	}
	return merged.HighestBidOrZero().Cmp(baseline) > 0
}

func fromChainState(cs *auction.ChainState) *auction.Auction {
	return &auction.Auction{
		Token:         cs.Token.ToLower(),
		StartTime:     cs.StartTime,
		HighestBid:    cs.HighestBid,
		HighestBidder: cs.HighestBidder.ToLower(),
	}
}

func copyAuction(a *auction.Auction) *auction.Auction {
	cp := *a
	cp.ToLower()
	return &cp
}
