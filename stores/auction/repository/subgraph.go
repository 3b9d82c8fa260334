package repository

import (
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/shurcooL/graphql"

	bCtx "github.com/feeflow/goclient/base/ctx"
	"github.com/feeflow/goclient/base/log"
	"github.com/feeflow/goclient/domain"
	"github.com/feeflow/goclient/domain/auction"
	"github.com/feeflow/goclient/service/cache"
	"github.com/feeflow/goclient/service/cache/provider/primitive"
	"github.com/feeflow/goclient/service/subgraph"
)

const defaultFirst = int32(100)

type subgraphRepo struct {
	client subgraph.Client
	// fee balances change once per trade batch; the classifier re-runs far
	// more often than they move
	feeCache cache.Service
}

func NewSubgraphRepo(client subgraph.Client) auction.IndexerRepo {
	return &subgraphRepo{
		client: client,
		feeCache: cache.New(cache.ServiceConfig{
			Ttl:   30 * time.Second,
			Pfx:   "fee_balance",
			Cache: primitive.NewPrimitive("fee_balance", 8),
		}),
	}
}

type auctionFragment struct {
	Token         graphql.String
	LotAmount     graphql.String
	HighestBid    graphql.String
	HighestBidder graphql.String
	StartTime     graphql.String
}

type participantFragment struct {
	Bidder graphql.String
	Bid    graphql.String
}

func (r *subgraphRepo) GetOngoingAuctions(c bCtx.Ctx, opts ...auction.FindOptionsFunc) ([]*auction.Auction, error) {
	findOpts, err := auction.GetFindOptions(opts...)
	if err != nil {
		return nil, err
	}

	first := defaultFirst
	if findOpts.First != nil {
		first = *findOpts.First
	}

	if findOpts.Viewer != nil {
		return r.getOngoingAuctionsWithViewer(c, first, *findOpts.Viewer)
	}
	return r.getOngoingAuctions(c, first)
}

func (r *subgraphRepo) getOngoingAuctions(c bCtx.Ctx, first int32) ([]*auction.Auction, error) {
	var q struct {
		Auctions []auctionFragment `graphql:"auctions(first: $first, where: {settled: false}, orderBy: startTime, orderDirection: desc)"`
	}
	vars := map[string]interface{}{
		"first": graphql.Int(first),
	}
	if err := r.client.Query(c, &q, vars); err != nil {
		return nil, err
	}

	auctions := make([]*auction.Auction, 0, len(q.Auctions))
	for _, frag := range q.Auctions {
		a, err := toAuction(frag, nil)
		if err != nil {
			c.WithFields(log.Fields{
				"err":   err,
				"token": frag.Token,
			}).Warn("skipping malformed auction record")
			continue
		}
		auctions = append(auctions, a)
	}
	return auctions, nil
}

func (r *subgraphRepo) getOngoingAuctionsWithViewer(c bCtx.Ctx, first int32, viewer domain.Address) ([]*auction.Auction, error) {
	var q struct {
		Auctions []struct {
			auctionFragment
			Participants []participantFragment `graphql:"participants(where: {bidder: $viewer})"`
		} `graphql:"auctions(first: $first, where: {settled: false}, orderBy: startTime, orderDirection: desc)"`
	}
	vars := map[string]interface{}{
		"first":  graphql.Int(first),
		"viewer": graphql.String(viewer.ToLowerStr()),
	}
	if err := r.client.Query(c, &q, vars); err != nil {
		return nil, err
	}

	auctions := make([]*auction.Auction, 0, len(q.Auctions))
	for _, frag := range q.Auctions {
		a, err := toAuction(frag.auctionFragment, frag.Participants)
		if err != nil {
			c.WithFields(log.Fields{
				"err":   err,
				"token": frag.Token,
			}).Warn("skipping malformed auction record")
			continue
		}
		auctions = append(auctions, a)
	}
	return auctions, nil
}

// GetLastAuctions returns the most recent auction instance per token,
// settled or not. The classifier needs it to measure cooldown from the
// prior run's end.
func (r *subgraphRepo) GetLastAuctions(c bCtx.Ctx, tokens []domain.Address) (map[domain.Address]*auction.Auction, error) {
	ids := make([]graphql.String, len(tokens))
	for i, t := range tokens {
		ids[i] = graphql.String(t.ToLowerStr())
	}

	var q struct {
		Auctions []auctionFragment `graphql:"auctions(where: {token_in: $ids}, orderBy: startTime, orderDirection: desc)"`
	}
	vars := map[string]interface{}{
		"ids": ids,
	}
	if err := r.client.Query(c, &q, vars); err != nil {
		return nil, err
	}

	last := map[domain.Address]*auction.Auction{}
	for _, frag := range q.Auctions {
		a, err := toAuction(frag, nil)
		if err != nil {
			c.WithFields(log.Fields{
				"err":   err,
				"token": frag.Token,
			}).Warn("skipping malformed auction record")
			continue
		}
		// records come newest first; keep only the first per token
		if _, ok := last[a.Token]; !ok {
			last[a.Token] = a
		}
	}
	return last, nil
}

func (r *subgraphRepo) GetFeeBalances(c bCtx.Ctx, tokens []domain.Address) (map[domain.Address]*big.Int, error) {
	ids := make([]graphql.String, len(tokens))
	keyParts := make([]string, len(tokens))
	for i, t := range tokens {
		ids[i] = graphql.String(t.ToLowerStr())
		keyParts[i] = t.ToLowerStr()
	}

	balances := map[domain.Address]*big.Int{}
	err := r.feeCache.GetByFunc(c, strings.Join(keyParts, ","), &balances, func() (interface{}, error) {
		var q struct {
			TokenFees []struct {
				Id     graphql.String
				Amount graphql.String
			} `graphql:"tokenFees(where: {id_in: $ids})"`
		}
		vars := map[string]interface{}{
			"ids": ids,
		}
		if err := r.client.Query(c, &q, vars); err != nil {
			return nil, err
		}
		res := map[domain.Address]*big.Int{}
		for _, fee := range q.TokenFees {
			amount, ok := new(big.Int).SetString(string(fee.Amount), 10)
			if !ok {
				c.WithFields(log.Fields{
					"token":  fee.Id,
					"amount": fee.Amount,
				}).Warn("skipping malformed fee balance")
				continue
			}
			res[domain.Address(fee.Id).ToLower()] = amount
		}
		return &res, nil
	})
	if err != nil {
		return nil, err
	}
	return balances, nil
}

func toAuction(frag auctionFragment, participants []participantFragment) (*auction.Auction, error) {
	lot, ok := new(big.Int).SetString(string(frag.LotAmount), 10)
	if !ok {
		return nil, domain.ErrInvalidNumberFormat
	}
	bid, ok := new(big.Int).SetString(string(frag.HighestBid), 10)
	if !ok {
		return nil, domain.ErrInvalidNumberFormat
	}
	startTime, err := strconv.ParseInt(string(frag.StartTime), 10, 64)
	if err != nil {
		return nil, domain.ErrInvalidNumberFormat
	}

	a := &auction.Auction{
		Token:         domain.Address(frag.Token),
		LotAmount:     lot,
		StartTime:     domain.UnixTime(startTime),
		HighestBid:    bid,
		HighestBidder: domain.Address(frag.HighestBidder),
	}
	for _, p := range participants {
		pBid, ok := new(big.Int).SetString(string(p.Bid), 10)
		if !ok {
			continue
		}
		a.Participants = append(a.Participants, auction.Participant{
			Bidder: domain.Address(p.Bidder),
			Bid:    pBid,
		})
	}
	a.ToLower()
	return a, nil
}
