package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/viper"

	"github.com/feeflow/goclient/base/ctx"
	"github.com/feeflow/goclient/base/goroutine"
	"github.com/feeflow/goclient/base/log"
	bValidator "github.com/feeflow/goclient/base/validator"
	"github.com/feeflow/goclient/domain"
	"github.com/feeflow/goclient/domain/auction"
	mmiddleware "github.com/feeflow/goclient/middleware"
	"github.com/feeflow/goclient/service/chain"
	"github.com/feeflow/goclient/service/subgraph"
	"github.com/feeflow/goclient/service/wallet"
	auction_delivery "github.com/feeflow/goclient/stores/auction/delivery/http"
	auction_repository "github.com/feeflow/goclient/stores/auction/repository"
	auction_usecase "github.com/feeflow/goclient/stores/auction/usecase"
)

func init() {
	viper.SetConfigType("yaml")
	viper.SetConfigFile(`infra/configs/config.yaml`)
	err := viper.ReadInConfig()
	if err != nil {
		panic(err)
	}

	if viper.GetBool(`debug`) {
		log.Log().Info("Service RUN on DEBUG mode")
	}
}

func main() {
	// init echo
	e := echo.New()
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	middL := mmiddleware.InitMiddleware()
	e.Use(middL.ResponseLogger())
	e.Use(middL.AddContext())
	e.Use(middleware.CORS())
	e.Validator = bValidator.NewCustomValidator(validator.New())

	context := ctx.Background()

	// init chain service
	context.Info("init chain service")
	networks := viper.Sub("networks")
	keys := networks.AllSettings()
	rpcs := make(map[int32]string)
	for k := range keys {
		chainId := networks.GetInt32(fmt.Sprintf("%s.chainId", k))
		rpcUrl := networks.GetString(fmt.Sprintf("%s.rpcUrl", k))
		rpcs[chainId] = rpcUrl
	}
	chainService, err := chain.NewClient(context, &chain.ClientCfg{
		RpcUrls:            rpcs,
		MaxConcurrentReads: viper.GetInt("rpc.maxConcurrentReads"),
	})
	if err != nil {
		context.WithField("err", err).Warn("chainService started with error")
	}

	subgraphClient := subgraph.New(viper.GetString("subgraph.url"), &http.Client{})

	chainId := domain.ChainId(viper.GetInt32("auction.chainId"))
	contract := domain.Address(viper.GetString("auction.contract")).ToLower()

	tokenStrs := viper.GetStringSlice("auction.tokens")
	tokens := make([]domain.Address, len(tokenStrs))
	for i, t := range tokenStrs {
		tokens[i] = domain.Address(t).ToLower()
	}

	params := auction.Params{
		ChainId:         chainId,
		Contract:        contract,
		PaymentToken:    domain.Address(viper.GetString("auction.paymentToken")).ToLower(),
		Tokens:          tokens,
		IncrementPct:    viper.GetInt64("auction.minBidIncrementPct"),
		AuctionDuration: viper.GetDuration("auction.duration"),
		Cooldown:        viper.GetDuration("auction.cooldown"),
	}

	walletRepo, err := wallet.New(&wallet.Cfg{
		ChainId:       chainId,
		Contract:      contract,
		PrivateKeyHex: viper.GetString("wallet.privateKey"),
		ChainClient:   chainService,
	})
	if err != nil {
		context.WithField("err", err).Panic("failed to init wallet")
	}

	indexerRepo := auction_repository.NewSubgraphRepo(subgraphClient)
	chainRepo := auction_repository.NewChainRepo(chainId, contract, chainService)

	// override the configured increment with the contract's own value when
	// readable; the two drifting apart rejects bids the contract would take
	if pct, err := chainRepo.ReadMinBidIncrementPct(context); err == nil {
		params.IncrementPct = pct.Int64()
	} else {
		context.WithField("err", err).Warn("using configured minBidIncrementPct")
	}

	auctionUC := auction_usecase.New(auction_usecase.Config{
		Params:      params,
		IndexerRepo: indexerRepo,
		ChainRepo:   chainRepo,
		WalletRepo:  walletRepo,
	})
	defer auctionUC.Close()

	auction_delivery.New(e, auctionUC, params, int32(viper.GetInt("auction.paymentTokenDecimals")))

	// periodic reconciliation independent of any client asking for it
	refreshCtx, cancelRefresh := ctx.WithCancel(context)
	refreshInterval := viper.GetDuration("auction.refreshInterval")
	if refreshInterval <= 0 {
		refreshInterval = time.Minute
	}
	goroutine.RecoverableGo(func() {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()
		for {
			if _, err := auctionUC.Merge(refreshCtx, ""); err != nil {
				refreshCtx.WithField("err", err).Warn("reconciliation round failed")
			}
			select {
			case <-refreshCtx.Done():
				return
			case <-ticker.C:
			}
		}
	})

	go func() {
		if err := e.Start(viper.GetString("server.address")); err != nil && err != http.ErrServerClosed {
			log.Log().WithField("err", err).Error("shutting down the server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 10 seconds.
	// Use a buffered channel to avoid missing signals as recommended for signal.Notify
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	sig := <-quit
	log.Log().WithField("signal", sig).Info("received signal")
	cancelRefresh()
	sCtx, cancel := ctx.WithTimeout(context, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(sCtx); err != nil {
		log.Log().WithField("err", err).Error("shutting down the server")
	} else {
		log.Log().Info("shutdown server successfully")
	}
}
