package service

import "errors"

// Sentinel errors returned by Service.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrUnknownStore   = errors.New("unknown store backend")
	ErrFaucetDisabled = errors.New("faucet disabled")
)
