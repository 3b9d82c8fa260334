package repository

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/viney-shih/goroutines"
	"golang.org/x/xerrors"

	feeabi "github.com/feeflow/goclient/base/abi"
	bCtx "github.com/feeflow/goclient/base/ctx"
	bEthereum "github.com/feeflow/goclient/base/ethereum"
	"github.com/feeflow/goclient/base/log"
	"github.com/feeflow/goclient/base/metrics"
	"github.com/feeflow/goclient/domain"
	"github.com/feeflow/goclient/domain/auction"
	"github.com/feeflow/goclient/service/chain"
)

const readConcurrency = 5

type chainRepo struct {
	chainId     domain.ChainId
	contract    common.Address
	chainClient chain.Client
	met         metrics.Service
}

func NewChainRepo(chainId domain.ChainId, contract domain.Address, chainClient chain.Client) auction.ChainRepo {
	return &chainRepo{
		chainId:     chainId,
		contract:    bEthereum.ToCommonAddress(contract),
		chainClient: chainClient,
		met:         metrics.New("auction_chain"),
	}
}

type tokenReading struct {
	token domain.Address
	state *auction.ChainState
	err   error
}

// ReadAuctionState reads the current leader per token straight from the
// contract. One token failing does not hide the others; the caller gets
// every reading that succeeded plus the first error observed.
func (r *chainRepo) ReadAuctionState(c bCtx.Ctx, tokens []domain.Address) (map[domain.Address]*auction.ChainState, error) {
	if len(tokens) == 0 {
		return map[domain.Address]*auction.ChainState{}, nil
	}

	defer r.met.BumpTime("read.latency").End()

	b := goroutines.NewBatch(readConcurrency, goroutines.WithBatchSize(len(tokens)))
	defer b.Close()
	for i := 0; i < len(tokens); i++ {
		idx := i
		b.Queue(func() (interface{}, error) {
			token := tokens[idx].ToLower()
			state, err := r.readOne(c, token)
			return &tokenReading{token: token, state: state, err: err}, nil
		})
	}
	b.QueueComplete()

	var anyerr error
	states := make(map[domain.Address]*auction.ChainState, len(tokens))
	for ret := range b.Results() {
		reading := ret.Value().(*tokenReading)
		if reading.err != nil {
			anyerr = reading.err
			r.met.BumpSum("read.err", 1)
			c.WithFields(log.Fields{
				"err":   reading.err,
				"token": reading.token,
			}).Warn("auction state read failed")
			continue
		}
		states[reading.token] = reading.state
	}
	return states, anyerr
}

func (r *chainRepo) readOne(c bCtx.Ctx, token domain.Address) (*auction.ChainState, error) {
	res, err := r.chainClient.Call(c, int32(r.chainId), r.contract, nil, feeabi.FeeDistributorABI, "auctions", bEthereum.ToCommonAddress(token))
	if err != nil {
		return nil, err
	}
	if len(res) != 3 {
		return nil, xerrors.Errorf("unexpected auctions() output arity %d", len(res))
	}
	startTime, ok := res[0].(*big.Int)
	if !ok {
		return nil, xerrors.New("unexpected startTime type")
	}
	highestBid, ok := res[1].(*big.Int)
	if !ok {
		return nil, xerrors.New("unexpected highestBid type")
	}
	bidder, ok := res[2].(common.Address)
	if !ok {
		return nil, xerrors.New("unexpected highestBidder type")
	}
	return &auction.ChainState{
		Token:         token,
		StartTime:     domain.UnixTime(startTime.Int64()),
		HighestBid:    highestBid,
		HighestBidder: bEthereum.ToDomainAddress(bidder),
	}, nil
}

func (r *chainRepo) ReadMinBidIncrementPct(c bCtx.Ctx) (*big.Int, error) {
	res, err := r.chainClient.Call(c, int32(r.chainId), r.contract, nil, feeabi.FeeDistributorABI, "minBidIncrementPct")
	if err != nil {
		c.WithField("err", err).Error("minBidIncrementPct read failed")
		return nil, err
	}
	pct, ok := res[0].(*big.Int)
	if !ok {
		return nil, xerrors.New("unexpected minBidIncrementPct type")
	}
	return pct, nil
}
