package auction

import (
	"math/big"
	"time"

	"github.com/feeflow/goclient/base/ctx"
	"github.com/feeflow/goclient/domain"
)

// Status is the lifecycle position of one token's auction.
type Status string

const (
	StatusNotStarted   Status = "notStarted"
	StatusReadyToStart Status = "readyToStart"
	StatusOnHold       Status = "onHold"
	StatusOngoing      Status = "ongoing"
	StatusClosable     Status = "closable"
)

// Participant is one bid of the connected viewer on an auction. Only the
// indexer enumerates these; direct chain reads expose the current leader
// alone.
type Participant struct {
	Bidder domain.Address `json:"bidder"`
	Bid    *big.Int       `json:"bid"`
}

// Auction is one instance of the fee auction for a token. Instance
// identity is (Token, StartTime); HighestBid never decreases within one
// instance across any merge of sources, and HighestBid/HighestBidder move
// only as a pair.
type Auction struct {
	Token         domain.Address  `json:"token"`
	LotAmount     *big.Int        `json:"lotAmount"`
	StartTime     domain.UnixTime `json:"startTime"`
	HighestBid    *big.Int        `json:"highestBid"`
	HighestBidder domain.Address  `json:"highestBidder"`
	Participants  []Participant   `json:"participants,omitempty"`
}

func (a *Auction) ToLower() {
	a.Token = a.Token.ToLower()
	a.HighestBidder = a.HighestBidder.ToLower()
	for i := range a.Participants {
		a.Participants[i].Bidder = a.Participants[i].Bidder.ToLower()
	}
}

// SameInstance reports whether b describes the same auction run.
func (a *Auction) SameInstance(b *Auction) bool {
	return a.Token.Equals(b.Token) && a.StartTime == b.StartTime
}

// HighestBidOrZero guards nil for not-yet-bid auctions.
func (a *Auction) HighestBidOrZero() *big.Int {
	if a == nil || a.HighestBid == nil {
		return domain.Big0
	}
	return a.HighestBid
}

// IsParticipant reports whether the viewer placed any bid on this auction.
func (a *Auction) IsParticipant(viewer domain.Address) bool {
	for _, p := range a.Participants {
		if p.Bidder.Equals(viewer) {
			return true
		}
	}
	return false
}

// Status classifies this instance against the configured duration.
func (a *Auction) Status(duration time.Duration, now domain.UnixTime) Status {
	if a == nil || a.StartTime == 0 {
		return StatusNotStarted
	}
	if now < a.StartTime.Add(duration) {
		return StatusOngoing
	}
	return StatusClosable
}

// ChainState is the raw direct-RPC reading for a token's auction: only the
// current leader, never the participant history.
type ChainState struct {
	Token         domain.Address  `json:"token"`
	StartTime     domain.UnixTime `json:"startTime"`
	HighestBid    *big.Int        `json:"highestBid"`
	HighestBidder domain.Address  `json:"highestBidder"`
}

// StartableToken is a classifier output row: a token whose fees can be
// auctioned now (ReadyToStart) or after TimeToStart (OnHold).
type StartableToken struct {
	Token       domain.Address  `json:"token"`
	LotAmount   *big.Int        `json:"lotAmount"`
	TimeToStart domain.UnixTime `json:"timeToStart"`
	// IsNative marks the wrapped native token: no one bids the native pair
	// against itself, so starting becomes a direct fee collection.
	IsNative bool `json:"isNative"`
}

// Classification partitions startable tokens.
type Classification struct {
	ReadyToStart []StartableToken `json:"readyToStart"`
	OnHold       []StartableToken `json:"onHold"`
}

// MergeResult is one reconciliation round's output.
type MergeResult struct {
	Merged  []*Auction       `json:"merged"`
	NewBids []domain.Address `json:"newBids"`
}

// Params are the contract-level constants the engine needs. They are
// passed at construction; the engine never reads global state for them.
type Params struct {
	ChainId         domain.ChainId
	Contract        domain.Address
	PaymentToken    domain.Address
	Tokens          []domain.Address
	IncrementPct    int64
	AuctionDuration time.Duration
	Cooldown        time.Duration
}

// TxAction names a wallet submission target.
type TxAction string

const (
	TxActionStartAuction TxAction = "startAuction"
	TxActionBid          TxAction = "bid"
	TxActionSettle       TxAction = "settleAuction"
	TxActionCollectFees  TxAction = "collectFees"
)

// TxStatus is the externally observed confirmation state. Only
// TxStatusConfirmed is authority for "my bid was accepted".
type TxStatus string

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusConfirmed TxStatus = "confirmed"
	TxStatusFailed    TxStatus = "failed"
)

// IndexerRepo is the eventually-consistent subgraph projection. Lagged
// but complete: it is the only source of participants and lot sizes.
type IndexerRepo interface {
	GetOngoingAuctions(c ctx.Ctx, opts ...FindOptionsFunc) ([]*Auction, error)
	GetLastAuctions(c ctx.Ctx, tokens []domain.Address) (map[domain.Address]*Auction, error)
	GetFeeBalances(c ctx.Ctx, tokens []domain.Address) (map[domain.Address]*big.Int, error)
}

// ChainRepo is the fresh direct-RPC projection. Reads must tolerate
// partial failure: one token failing never hides the others.
type ChainRepo interface {
	ReadAuctionState(c ctx.Ctx, tokens []domain.Address) (map[domain.Address]*ChainState, error)
	ReadMinBidIncrementPct(c ctx.Ctx) (*big.Int, error)
}

// WalletRepo submits transactions and reports confirmation. The engine's
// own optimistic state is display-only until WaitConfirmed succeeds.
type WalletRepo interface {
	// Address is the sending account, lower-cased.
	Address() domain.Address
	Submit(c ctx.Ctx, action TxAction, token domain.Address, amount *big.Int) (domain.TxHash, error)
	WaitConfirmed(c ctx.Ctx, hash domain.TxHash) (TxStatus, error)
}

// UseCase is the surface consumed by the presentation layer.
type UseCase interface {
	Classify(c ctx.Ctx, now domain.UnixTime) (*Classification, error)
	Merge(c ctx.Ctx, viewer domain.Address) (*MergeResult, error)
	MergedView(c ctx.Ctx) []*Auction
	ValidateNewBid(c ctx.Ctx, proposed, currentBid, balance *big.Int) error
	ValidateTopUp(c ctx.Ctx, proposedTopUp, currentBid, balance *big.Int) error
	StartAuction(c ctx.Ctx, token domain.Address) (domain.TxHash, error)
	PlaceBid(c ctx.Ctx, token domain.Address, amount, balance *big.Int) (domain.TxHash, error)
	TopUp(c ctx.Ctx, token domain.Address, delta, balance *big.Int) (domain.TxHash, error)
	SetModalOpen(open bool)
	OnNewBid(fn func(token domain.Address))
	Pulsing(token domain.Address) bool
	Close()
}
