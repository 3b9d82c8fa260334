package abi

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

var FeeDistributorABI abi.ABI

var feeDistributorABI = `[{"type":"function","name":"auctions","constant":true,"stateMutability":"view","payable":false,"inputs":[{"type":"address","name":"token"}],"outputs":[{"type":"uint256","name":"startTime"},{"type":"uint256","name":"highestBid"},{"type":"address","name":"highestBidder"}]},{"type":"function","name":"feesCollected","constant":true,"stateMutability":"view","payable":false,"inputs":[{"type":"address","name":"token"}],"outputs":[{"type":"uint256"}]},{"type":"function","name":"minBidIncrementPct","constant":true,"stateMutability":"view","payable":false,"inputs":[],"outputs":[{"type":"uint256"}]},{"type":"function","name":"startAuction","constant":false,"stateMutability":"nonpayable","payable":false,"inputs":[{"type":"address","name":"token"}],"outputs":[]},{"type":"function","name":"bid","constant":false,"stateMutability":"nonpayable","payable":false,"inputs":[{"type":"address","name":"token"},{"type":"uint256","name":"amount"}],"outputs":[]},{"type":"function","name":"settleAuction","constant":false,"stateMutability":"nonpayable","payable":false,"inputs":[{"type":"address","name":"token"}],"outputs":[]},{"type":"function","name":"collectFees","constant":false,"stateMutability":"nonpayable","payable":false,"inputs":[{"type":"address","name":"token"}],"outputs":[]},{"type":"event","anonymous":false,"name":"AuctionStarted","inputs":[{"type":"address","name":"token","indexed":true},{"type":"uint256","name":"amount"},{"type":"uint256","name":"startTime"}]},{"type":"event","anonymous":false,"name":"BidPlaced","inputs":[{"type":"address","name":"token","indexed":true},{"type":"address","name":"bidder","indexed":true},{"type":"uint256","name":"amount"}]}]`

func init() {
	_abi, err := abi.JSON(strings.NewReader(feeDistributorABI))
	if err != nil {
		panic("Failed to parse fee distributor abi")
	}
	FeeDistributorABI = _abi
}
