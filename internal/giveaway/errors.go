package giveaway

import "errors"

// Errors returned by giveaway operations and by Gateway implementations.
var (
	ErrInvalidDuration    = errors.New("invalid duration format")
	ErrDurationOutOfRange = errors.New("duration out of range")
	ErrEmptyPrize         = errors.New("prize must not be empty")
	ErrPersistence        = errors.New("persistence failure")
	ErrGatewayUnavailable = errors.New("messaging gateway unavailable")
	ErrMessageNotFound    = errors.New("message not found")
	ErrChannelNotFound    = errors.New("channel not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrNoEligibleWinner   = errors.New("no eligible winner")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrAlreadyRunning     = errors.New("giveaway session already running")
	ErrShuttingDown       = errors.New("giveaway manager is shutting down")
)
