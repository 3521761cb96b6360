package services

import "errors"

// Business-rule failures are returned as values and wrapped with context via
// fmt.Errorf("%w: ..."); callers classify them with errors.Is. Anything else
// coming out of a service is an infrastructure failure.
var (
	ErrInvalidResource      = errors.New("no such resource")
	ErrInvalidAmount        = errors.New("amount must be at least 1")
	ErrInvalidSide          = errors.New("offer type must be 'buy' or 'sell'")
	ErrInvalidInterval      = errors.New("invalid interval")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientResource = errors.New("insufficient resource")
	ErrExceedsAvailable     = errors.New("requested amount exceeds available amount")
	ErrNotFound             = errors.New("not found")
	ErrNotOwner             = errors.New("you did not post that offer")
	ErrNotAuthorized        = errors.New("not authorized")
	ErrInvalidState         = errors.New("invalid state")
	ErrSelfTrade            = errors.New("cannot trade with yourself")
)
