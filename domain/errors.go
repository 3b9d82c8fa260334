package domain

import "errors"

var (
	// ErrNotFound will throw if the requested item is not exists
	ErrNotFound = errors.New("Your requested Item is not found")
	// ErrBadParamInput will throw if the given request-body or params is not valid
	ErrBadParamInput       = errors.New("Given Param is not valid")
	ErrInvalidNumberFormat = errors.New("invalid number format")

	// request error
	ErrInvalidAddress = errors.New("Invalid address")

	// bid validation, surfaced inline and never submitted to the wallet
	ErrZeroAmount          = errors.New("bid amount is zero")
	ErrBidBelowMinimum     = errors.New("bid below minimum increment")
	ErrInsufficientBalance = errors.New("insufficient payment token balance")
	ErrNotHighestBidder    = errors.New("top up requires holding the highest bid")

	// transaction submission
	ErrSimulationFailed = errors.New("transaction simulation failed")
	ErrTxFailed         = errors.New("transaction reverted")
)
