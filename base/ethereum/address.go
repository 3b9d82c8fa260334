package ethereum

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/feeflow/goclient/domain"
)

// ToLowerHexStr renders a go-ethereum address in the lower-cased form used
// for identity everywhere in this codebase.
func ToLowerHexStr(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

// ToDomainAddress converts a go-ethereum address into a normalized
// domain.Address.
func ToDomainAddress(addr common.Address) domain.Address {
	return domain.Address(ToLowerHexStr(addr))
}

// ToCommonAddress parses a domain.Address back into go-ethereum form.
func ToCommonAddress(addr domain.Address) common.Address {
	return common.HexToAddress(string(addr))
}

// ToCommonHash parses a domain.TxHash back into go-ethereum form.
func ToCommonHash(hash domain.TxHash) common.Hash {
	return common.HexToHash(string(hash))
}
