package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrRateLimited      = errors.New("rate limited")
	ErrTimeout          = errors.New("request timed out")
	ErrNoPool           = errors.New("no pool for pair")
	ErrUnmappedSymbol   = errors.New("symbol not mapped")
	ErrPriceOutOfBounds = errors.New("price out of bounds")
	ErrLockHeld         = errors.New("lock already held")
)
