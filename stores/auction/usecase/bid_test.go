package usecase

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/feeflow/goclient/domain"
)

type bidTestSuite struct {
	suite.Suite
}

func TestBid(t *testing.T) {
	suite.Run(t, new(bidTestSuite))
}

func (s *bidTestSuite) TestMinNextBid() {
	testcases := []struct {
		name       string
		currentBid *big.Int
		pct        int64
		want       *big.Int
	}{
		{
			name:       "no bid yet",
			currentBid: nil,
			pct:        5,
			want:       big.NewInt(0),
		},
		{
			name:       "exact multiple",
			currentBid: big.NewInt(100),
			pct:        5,
			want:       big.NewInt(105),
		},
		{
			name:       "floor division",
			currentBid: big.NewInt(101),
			pct:        5,
			want:       big.NewInt(106),
		},
		{
			name:       "large amount",
			currentBid: mustBig("2000000000000000000"),
			pct:        5,
			want:       mustBig("2100000000000000000"),
		},
	}

	for _, tc := range testcases {
		s.T().Run(tc.name, func(t *testing.T) {
			got := MinNextBid(tc.currentBid, tc.pct)
			s.Require().Zero(tc.want.Cmp(got))
		})
	}
}

func (s *bidTestSuite) TestValidateNewBid() {
	balance := big.NewInt(1000)

	testcases := []struct {
		name       string
		proposed   *big.Int
		currentBid *big.Int
		balance    *big.Int
		err        error
	}{
		{
			name:       "nil amount",
			proposed:   nil,
			currentBid: big.NewInt(100),
			balance:    balance,
			err:        domain.ErrZeroAmount,
		},
		{
			name:       "zero amount",
			proposed:   big.NewInt(0),
			currentBid: big.NewInt(100),
			balance:    balance,
			err:        domain.ErrZeroAmount,
		},
		{
			name:       "below minimum",
			proposed:   big.NewInt(104),
			currentBid: big.NewInt(100),
			balance:    balance,
			err:        domain.ErrBidBelowMinimum,
		},
		{
			name:       "exactly minimum is still rejected",
			proposed:   big.NewInt(105),
			currentBid: big.NewInt(100),
			balance:    balance,
			err:        domain.ErrBidBelowMinimum,
		},
		{
			name:       "first strictly above minimum",
			proposed:   big.NewInt(106),
			currentBid: big.NewInt(100),
			balance:    balance,
		},
		{
			name:       "first bid on fresh auction",
			proposed:   big.NewInt(1),
			currentBid: nil,
			balance:    balance,
		},
		{
			name:       "exceeds balance",
			proposed:   big.NewInt(1001),
			currentBid: big.NewInt(100),
			balance:    balance,
			err:        domain.ErrInsufficientBalance,
		},
		{
			name:       "unknown balance fails closed",
			proposed:   big.NewInt(106),
			currentBid: big.NewInt(100),
			balance:    nil,
			err:        domain.ErrInsufficientBalance,
		},
	}

	for _, tc := range testcases {
		s.T().Run(tc.name, func(t *testing.T) {
			err := ValidateNewBid(tc.proposed, tc.currentBid, 5, tc.balance)
			s.Require().Equal(tc.err, err)
		})
	}
}

func (s *bidTestSuite) TestValidateTopUp() {
	// leader holds 2.00 at 5%: the next total must exceed 2.10, so the
	// top-up must exceed 0.10
	current := mustBig("2000000000000000000")
	balance := mustBig("10000000000000000000")

	testcases := []struct {
		name    string
		topUp   *big.Int
		balance *big.Int
		err     error
	}{
		{
			name:    "zero top-up",
			topUp:   big.NewInt(0),
			balance: balance,
			err:     domain.ErrZeroAmount,
		},
		{
			name:    "exactly the minimum delta is rejected",
			topUp:   mustBig("100000000000000000"),
			balance: balance,
			err:     domain.ErrBidBelowMinimum,
		},
		{
			name:    "just above the minimum delta",
			topUp:   mustBig("110000000000000000"),
			balance: balance,
		},
		{
			name:    "exceeds balance",
			topUp:   mustBig("11000000000000000000"),
			balance: balance,
			err:     domain.ErrInsufficientBalance,
		},
	}

	for _, tc := range testcases {
		s.T().Run(tc.name, func(t *testing.T) {
			err := ValidateTopUp(tc.topUp, current, 5, tc.balance)
			s.Require().Equal(tc.err, err)
		})
	}
}

func (s *bidTestSuite) TestValidateTopUpOnFreshAuction() {
	// no standing bid: the minimum delta is zero, any positive amount
	// within balance passes
	err := ValidateTopUp(big.NewInt(1), nil, 5, big.NewInt(100))
	s.Require().NoError(err)
}

func mustBig(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("invalid number literal " + s)
	}
	return n
}
