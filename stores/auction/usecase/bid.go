package usecase

import (
	"math/big"

	"github.com/feeflow/goclient/domain"
)

// MinNextBid computes currentBid * (100 + incrementPct) / 100 with floor
// division. This must match the contract's own integer arithmetic
// bit-for-bit: a bid the client accepts but the contract rejects is a hard
// failure, not a retry.
func MinNextBid(currentBid *big.Int, incrementPct int64) *big.Int {
	if currentBid == nil {
		currentBid = domain.Big0
	}
	next := new(big.Int).Mul(currentBid, big.NewInt(100+incrementPct))
	return next.Div(next, domain.Big100)
}

// ValidateNewBid checks a proposed outbid. The contract requires a strict
// percentage premium, so equality with MinNextBid is rejected.
func ValidateNewBid(proposed, currentBid *big.Int, incrementPct int64, balance *big.Int) error {
	if proposed == nil || proposed.Sign() <= 0 {
		return domain.ErrZeroAmount
	}
	if proposed.Cmp(MinNextBid(currentBid, incrementPct)) <= 0 {
		return domain.ErrBidBelowMinimum
	}
	if balance == nil || proposed.Cmp(balance) > 0 {
		return domain.ErrInsufficientBalance
	}
	return nil
}

// ValidateTopUp checks an additional amount from the current leader. The
// leader's standing bid already counts toward the new total, so the
// increment is measured against the delta only.
func ValidateTopUp(proposedTopUp, currentBid *big.Int, incrementPct int64, balance *big.Int) error {
	if proposedTopUp == nil || proposedTopUp.Sign() <= 0 {
		return domain.ErrZeroAmount
	}
	if currentBid == nil {
		currentBid = domain.Big0
	}
	minDelta := new(big.Int).Sub(MinNextBid(currentBid, incrementPct), currentBid)
	if proposedTopUp.Cmp(minDelta) <= 0 {
		return domain.ErrBidBelowMinimum
	}
	if balance == nil || proposedTopUp.Cmp(balance) > 0 {
		return domain.ErrInsufficientBalance
	}
	return nil
}
