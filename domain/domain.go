package domain

import (
	"math/big"
	"strings"
	"time"
)

var (
	Big0   = big.NewInt(0)
	Big100 = big.NewInt(100)
)

type ChainId int32

// Address is a lower-cased hex account or contract address. Identity of
// tokens and bidders is always compared through Equals so checksum casing
// from different sources never splits one entity into two.
type Address string

const EmptyAddress = Address("0x0000000000000000000000000000000000000000")

func (a Address) ToLower() Address {
	return Address(strings.ToLower(string(a)))
}

func (a Address) ToLowerPtr() *Address {
	res := a.ToLower()
	return &res
}

func (a Address) ToLowerStr() string {
	return strings.ToLower(string(a))
}

func (a Address) IsEmpty() bool {
	return len(a) == 0 || a.Equals(EmptyAddress)
}

func (a Address) Equals(b Address) bool {
	return a.ToLowerStr() == b.ToLowerStr()
}

type TxHash string

func (h TxHash) ToLower() TxHash {
	return TxHash(strings.ToLower(string(h)))
}

type BlockNumber uint64

// UnixTime is a second-resolution chain timestamp.
type UnixTime int64

func (t UnixTime) Time() time.Time {
	return time.Unix(int64(t), 0)
}

func (t UnixTime) Add(d time.Duration) UnixTime {
	return t + UnixTime(d/time.Second)
}

func ToBigInt(nums []string) ([]*big.Int, error) {
	var bns []*big.Int
	for _, n := range nums {
		bn, ok := new(big.Int).SetString(n, 10)
		if !ok {
			return nil, ErrInvalidNumberFormat
		}
		bns = append(bns, bn)
	}
	return bns, nil
}

// ChainIdWrappedNativeMap maps a chain to its wrapped native token. Fees
// collected in the wrapped native token are not auctioned against
// themselves; they are collected directly.
var ChainIdWrappedNativeMap map[ChainId]Address = map[ChainId]Address{
	// eth
	1: "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
	// goerli
	5: "0xb4fbf271143f4fbf7b91a5ded31805e42b2208d6",
	// bsc
	56: "0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c",
	// fantom
	250: "0x21be370d5312f44cb42ce377bc9b8a0cef1a4c83",
	// arbitrum
	42161: "0x82af49447d8a07e3bd95bd0d56f35241523fbab1",
}

func WrappedNative(chainId ChainId) Address {
	return ChainIdWrappedNativeMap[chainId]
}
