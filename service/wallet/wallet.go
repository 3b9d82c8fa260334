package wallet

import (
	"crypto/ecdsa"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/xerrors"

	feeabi "github.com/feeflow/goclient/base/abi"
	"github.com/feeflow/goclient/base/backoff"
	bCtx "github.com/feeflow/goclient/base/ctx"
	bEthereum "github.com/feeflow/goclient/base/ethereum"
	"github.com/feeflow/goclient/base/log"
	"github.com/feeflow/goclient/domain"
	"github.com/feeflow/goclient/domain/auction"
	"github.com/feeflow/goclient/service/chain"
)

const (
	receiptPollStart = 2 * time.Second
	receiptPollLimit = 30 * time.Second
)

type Cfg struct {
	ChainId       domain.ChainId
	Contract      domain.Address
	PrivateKeyHex string
	ChainClient   chain.Client
}

type impl struct {
	chainId     domain.ChainId
	contract    domain.Address
	key         *ecdsa.PrivateKey
	address     domain.Address
	chainClient chain.Client
}

func New(cfg *Cfg) (auction.WalletRepo, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKeyHex, "0x"))
	if err != nil {
		return nil, xerrors.Errorf("invalid private key: %w", err)
	}
	return &impl{
		chainId:     cfg.ChainId,
		contract:    cfg.Contract,
		key:         key,
		address:     domain.Address(crypto.PubkeyToAddress(key.PublicKey).Hex()).ToLower(),
		chainClient: cfg.ChainClient,
	}, nil
}

func (im *impl) Address() domain.Address {
	return im.address
}

func (im *impl) Submit(c bCtx.Ctx, action auction.TxAction, token domain.Address, amount *big.Int) (domain.TxHash, error) {
	client, err := im.chainClient.Eth(int32(im.chainId))
	if err != nil {
		return "", err
	}

	data, err := im.packCalldata(action, token, amount)
	if err != nil {
		c.WithFields(log.Fields{
			"err":    err,
			"action": action,
			"token":  token,
		}).Error("packCalldata failed")
		return "", err
	}

	from := crypto.PubkeyToAddress(im.key.PublicKey)
	to := bEthereum.ToCommonAddress(im.contract)

	// simulate before signing; a revert here means the input is wrong,
	// not that the network failed
	gas, err := client.EstimateGas(c, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		c.WithFields(log.Fields{
			"err":    err,
			"action": action,
			"token":  token,
		}).Warn("gas estimation reverted")
		return "", xerrors.Errorf("%s: %w", err.Error(), domain.ErrSimulationFailed)
	}

	nonce, err := client.PendingNonceAt(c, from)
	if err != nil {
		return "", err
	}
	gasPrice, err := client.SuggestGasPrice(c)
	if err != nil {
		return "", err
	}

	tx := types.NewTransaction(nonce, to, big.NewInt(0), gas, gasPrice, data)
	signer := types.LatestSignerForChainID(big.NewInt(int64(im.chainId)))
	signedTx, err := types.SignTx(tx, signer, im.key)
	if err != nil {
		return "", err
	}

	if err := client.SendTransaction(c, signedTx); err != nil {
		c.WithFields(log.Fields{
			"err":    err,
			"action": action,
			"token":  token,
		}).Error("SendTransaction failed")
		return "", err
	}

	hash := domain.TxHash(signedTx.Hash().Hex()).ToLower()
	c.WithFields(log.Fields{
		"action": action,
		"token":  token,
		"txHash": hash,
	}).Info("transaction submitted")
	return hash, nil
}

func (im *impl) WaitConfirmed(c bCtx.Ctx, hash domain.TxHash) (auction.TxStatus, error) {
	client, err := im.chainClient.Eth(int32(im.chainId))
	if err != nil {
		return auction.TxStatusFailed, err
	}

	txHash := bEthereum.ToCommonHash(hash)
	bo := backoff.NewExponential(receiptPollStart, receiptPollLimit)
	for {
		receipt, err := client.TransactionReceipt(c, txHash)
		if err == nil {
			if receipt.Status == types.ReceiptStatusSuccessful {
				return auction.TxStatusConfirmed, nil
			}
			return auction.TxStatusFailed, domain.ErrTxFailed
		}
		if err != ethereum.NotFound {
			c.WithFields(log.Fields{
				"err":    err,
				"txHash": hash,
			}).Warn("TransactionReceipt failed")
		}
		if err := bo.Backoff(c); err != nil {
			// context canceled while pending
			return auction.TxStatusPending, err
		}
	}
}

func (im *impl) packCalldata(action auction.TxAction, token domain.Address, amount *big.Int) ([]byte, error) {
	tokenAddr := bEthereum.ToCommonAddress(token)
	switch action {
	case auction.TxActionStartAuction:
		return feeabi.FeeDistributorABI.Pack("startAuction", tokenAddr)
	case auction.TxActionBid:
		return feeabi.FeeDistributorABI.Pack("bid", tokenAddr, amount)
	case auction.TxActionSettle:
		return feeabi.FeeDistributorABI.Pack("settleAuction", tokenAddr)
	case auction.TxActionCollectFees:
		return feeabi.FeeDistributorABI.Pack("collectFees", tokenAddr)
	default:
		return nil, xerrors.Errorf("unknown tx action %q", action)
	}
}
