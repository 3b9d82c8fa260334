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

type stubIndexerRepo struct {
	mu       sync.Mutex
	auctions []*auction.Auction
	last     map[domain.Address]*auction.Auction
	fees     map[domain.Address]*big.Int
	err      error
}

func (m *stubIndexerRepo) setErr(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *stubIndexerRepo) GetOngoingAuctions(c bCtx.Ctx, opts ...auction.FindOptionsFunc) ([]*auction.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.auctions, nil
}

func (m *stubIndexerRepo) GetLastAuctions(c bCtx.Ctx, tokens []domain.Address) (map[domain.Address]*auction.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.last, nil
}

func (m *stubIndexerRepo) GetFeeBalances(c bCtx.Ctx, tokens []domain.Address) (map[domain.Address]*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.fees, nil
}

type fixedChainRepo struct {
	mu     sync.Mutex
	states map[domain.Address]*auction.ChainState
}

func (m *fixedChainRepo) ReadAuctionState(c bCtx.Ctx, tokens []domain.Address) (map[domain.Address]*auction.ChainState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	states := map[domain.Address]*auction.ChainState{}
	for _, t := range tokens {
		if cs, ok := m.states[t.ToLower()]; ok {
			states[t.ToLower()] = cs
		}
	}
	return states, nil
}

func (m *fixedChainRepo) ReadMinBidIncrementPct(c bCtx.Ctx) (*big.Int, error) {
	return big.NewInt(5), nil
}

type submission struct {
	action auction.TxAction
	token  domain.Address
	amount *big.Int
}

type stubWalletRepo struct {
	mu        sync.Mutex
	address   domain.Address
	submitted []submission
}

func (m *stubWalletRepo) Address() domain.Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.address
}

func (m *stubWalletRepo) setAddress(addr domain.Address) {
	m.mu.Lock()
	m.address = addr
	m.mu.Unlock()
}

func (m *stubWalletRepo) Submit(c bCtx.Ctx, action auction.TxAction, token domain.Address, amount *big.Int) (domain.TxHash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitted = append(m.submitted, submission{action, token, amount})
	return "0xabc", nil
}

func (m *stubWalletRepo) WaitConfirmed(c bCtx.Ctx, hash domain.TxHash) (auction.TxStatus, error) {
	return auction.TxStatusConfirmed, nil
}

func (m *stubWalletRepo) submissions() []submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]submission{}, m.submitted...)
}

type usecaseTestSuite struct {
	suite.Suite

	indexer *stubIndexerRepo
	chain   *fixedChainRepo
	wallet  *stubWalletRepo
	uc      auction.UseCase
}

func TestUseCase(t *testing.T) {
	suite.Run(t, new(usecaseTestSuite))
}

func (s *usecaseTestSuite) SetupTest() {
	s.indexer = &stubIndexerRepo{
		auctions: []*auction.Auction{indexedAuction(tokenX, 100, 50, alice)},
	}
	s.chain = &fixedChainRepo{
		states: map[domain.Address]*auction.ChainState{
			tokenX: chainReading(tokenX, 100, 60, bob),
		},
	}
	s.wallet = &stubWalletRepo{address: bob}
	s.uc = New(Config{
		Params: auction.Params{
			ChainId:         1,
			Tokens:          []domain.Address{tokenX, tokenY},
			IncrementPct:    5,
			AuctionDuration: 24 * time.Hour,
			Cooldown:        6 * time.Hour,
		},
		IndexerRepo: s.indexer,
		ChainRepo:   s.chain,
		WalletRepo:  s.wallet,
	})
}

func (s *usecaseTestSuite) TearDownTest() {
	s.uc.Close()
}

func (s *usecaseTestSuite) TestMergeCombinesSources() {
	var notified []domain.Address
	var mu sync.Mutex
	s.uc.OnNewBid(func(token domain.Address) {
		mu.Lock()
		notified = append(notified, token)
		mu.Unlock()
	})

	res, err := s.uc.Merge(bCtx.Background(), "")
	s.Require().NoError(err)
	s.Require().Len(res.Merged, 1)
	s.Require().Zero(big.NewInt(60).Cmp(res.Merged[0].HighestBid))
	s.Require().Equal(bob, res.Merged[0].HighestBidder)
	s.Require().Equal([]domain.Address{tokenX}, res.NewBids)

	mu.Lock()
	s.Require().Equal([]domain.Address{tokenX}, notified)
	mu.Unlock()
	s.Require().True(s.uc.Pulsing(tokenX))
	s.Require().False(s.uc.Pulsing(tokenY))

	view := s.uc.MergedView(bCtx.Background())
	s.Require().Len(view, 1)
	s.Require().Equal(tokenX, view[0].Token)
}

func (s *usecaseTestSuite) TestMergeDegradesWhenIndexerDown() {
	_, err := s.uc.Merge(bCtx.Background(), "")
	s.Require().NoError(err)

	s.indexer.setErr(domain.ErrNotFound)
	s.chain.mu.Lock()
	s.chain.states[tokenX] = chainReading(tokenX, 100, 70, alice)
	s.chain.mu.Unlock()

	res, err := s.uc.Merge(bCtx.Background(), "")
	s.Require().NoError(err)
	s.Require().Len(res.Merged, 1)
	s.Require().Zero(big.NewInt(70).Cmp(res.Merged[0].HighestBid))
	// lot size from the round that last saw the indexer
	s.Require().Zero(big.NewInt(1000).Cmp(res.Merged[0].LotAmount))
}

func (s *usecaseTestSuite) TestPlaceBidValidatesBeforeSubmitting() {
	_, err := s.uc.Merge(bCtx.Background(), "")
	s.Require().NoError(err)

	// merged leader holds 60 at 5%: 63 is at most the minimum, 64 clears it
	balance := big.NewInt(1000)
	_, err = s.uc.PlaceBid(bCtx.Background(), tokenX, big.NewInt(63), balance)
	s.Require().Equal(domain.ErrBidBelowMinimum, err)
	s.Require().Empty(s.wallet.submissions())

	hash, err := s.uc.PlaceBid(bCtx.Background(), tokenX, big.NewInt(64), balance)
	s.Require().NoError(err)
	s.Require().Equal(domain.TxHash("0xabc"), hash)

	subs := s.wallet.submissions()
	s.Require().Len(subs, 1)
	s.Require().Equal(auction.TxActionBid, subs[0].action)
	s.Require().Equal(tokenX, subs[0].token)
	s.Require().Zero(big.NewInt(64).Cmp(subs[0].amount))
}

func (s *usecaseTestSuite) TestTopUpValidatesDelta() {
	_, err := s.uc.Merge(bCtx.Background(), "")
	s.Require().NoError(err)

	// leader holds 60: the next total must exceed 63, so the delta must
	// exceed 3
	balance := big.NewInt(1000)
	_, err = s.uc.TopUp(bCtx.Background(), tokenX, big.NewInt(3), balance)
	s.Require().Equal(domain.ErrBidBelowMinimum, err)

	_, err = s.uc.TopUp(bCtx.Background(), tokenX, big.NewInt(4), balance)
	s.Require().NoError(err)

	subs := s.wallet.submissions()
	s.Require().Len(subs, 1)
	s.Require().Zero(big.NewInt(4).Cmp(subs[0].amount))
}

func (s *usecaseTestSuite) TestTopUpRequiresLeadership() {
	_, err := s.uc.Merge(bCtx.Background(), "")
	s.Require().NoError(err)

	// merged leader is bob; alice's "top up" would go on-chain as a plain
	// undersized bid, so it never leaves the client
	s.wallet.setAddress(alice)
	_, err = s.uc.TopUp(bCtx.Background(), tokenX, big.NewInt(4), big.NewInt(1000))
	s.Require().Equal(domain.ErrNotHighestBidder, err)
	s.Require().Empty(s.wallet.submissions())
}

func (s *usecaseTestSuite) TestTopUpRefusedWithoutStandingBid() {
	s.indexer.mu.Lock()
	s.indexer.auctions = nil
	s.indexer.mu.Unlock()
	s.chain.mu.Lock()
	s.chain.states = nil
	s.chain.mu.Unlock()

	_, err := s.uc.Merge(bCtx.Background(), "")
	s.Require().NoError(err)

	_, err = s.uc.TopUp(bCtx.Background(), tokenX, big.NewInt(4), big.NewInt(1000))
	s.Require().Equal(domain.ErrNotHighestBidder, err)
	s.Require().Empty(s.wallet.submissions())
}

func (s *usecaseTestSuite) TestStartAuction() {
	hash, err := s.uc.StartAuction(bCtx.Background(), tokenY)
	s.Require().NoError(err)
	s.Require().Equal(domain.TxHash("0xabc"), hash)

	subs := s.wallet.submissions()
	s.Require().Len(subs, 1)
	s.Require().Equal(auction.TxActionStartAuction, subs[0].action)
}

func (s *usecaseTestSuite) TestStartAuctionOnWrappedNativeCollectsFees() {
	weth := domain.WrappedNative(1)
	_, err := s.uc.StartAuction(bCtx.Background(), weth)
	s.Require().NoError(err)

	subs := s.wallet.submissions()
	s.Require().Len(subs, 1)
	s.Require().Equal(auction.TxActionCollectFees, subs[0].action)
	s.Require().Equal(weth, subs[0].token)
}

func (s *usecaseTestSuite) TestClassifyPropagatesIndexerFailure() {
	s.indexer.setErr(domain.ErrNotFound)

	_, err := s.uc.Classify(bCtx.Background(), domain.UnixTime(time.Now().Unix()))
	s.Require().Error(err)
}

func (s *usecaseTestSuite) TestClassify() {
	s.indexer.mu.Lock()
	s.indexer.fees = map[domain.Address]*big.Int{
		tokenX: big.NewInt(100),
		tokenY: big.NewInt(200),
	}
	now := domain.UnixTime(time.Now().Unix())
	s.indexer.last = map[domain.Address]*auction.Auction{
		// still cooling down: ended two hours ago
		tokenY: {Token: tokenY, StartTime: now.Add(-26 * time.Hour)},
	}
	s.indexer.mu.Unlock()

	cls, err := s.uc.Classify(bCtx.Background(), now)
	s.Require().NoError(err)
	s.Require().Len(cls.ReadyToStart, 1)
	s.Require().Equal(tokenX, cls.ReadyToStart[0].Token)
	s.Require().Len(cls.OnHold, 1)
	s.Require().Equal(tokenY, cls.OnHold[0].Token)
	s.Require().Equal(now.Add(4*time.Hour), cls.OnHold[0].TimeToStart)
}
