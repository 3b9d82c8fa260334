package usecase

import (
	"math/big"
	"sort"

	"github.com/feeflow/goclient/domain"
	"github.com/feeflow/goclient/domain/auction"
)

// ClassifyAuctions partitions tokens with collected fees into those whose
// auction can start now and those still cooling down.
//
// Fail-closed: a token with no known fee balance is omitted entirely; a
// startable auction is never shown with an unknown lot size. Cooldown is
// measured from the prior instance's end (startTime + duration), so a
// token becomes startable again at startTime + duration + cooldown.
func ClassifyAuctions(params auction.Params, fees map[domain.Address]*big.Int, lastAuctions map[domain.Address]*auction.Auction, now domain.UnixTime) *auction.Classification {
	wrappedNative := domain.WrappedNative(params.ChainId)

	cls := &auction.Classification{
		ReadyToStart: []auction.StartableToken{},
		OnHold:       []auction.StartableToken{},
	}

	for token, lot := range fees {
		if lot == nil || lot.Sign() <= 0 {
			continue
		}
		token = token.ToLower()
		row := auction.StartableToken{
			Token:     token,
			LotAmount: lot,
			IsNative:  token.Equals(wrappedNative),
		}

		prior, ok := lastAuctions[token]
		if !ok || prior.StartTime == 0 {
			cls.ReadyToStart = append(cls.ReadyToStart, row)
			continue
		}

		startable := prior.StartTime.Add(params.AuctionDuration).Add(params.Cooldown)
		if startable <= now {
			cls.ReadyToStart = append(cls.ReadyToStart, row)
		} else {
			row.TimeToStart = startable
			cls.OnHold = append(cls.OnHold, row)
		}
	}

	sortStartable(cls.ReadyToStart)
	sortStartable(cls.OnHold)
	return cls
}

func sortStartable(rows []auction.StartableToken) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TimeToStart != rows[j].TimeToStart {
			return rows[i].TimeToStart < rows[j].TimeToStart
		}
		return rows[i].Token < rows[j].Token
	})
}
