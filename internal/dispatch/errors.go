package dispatch

import "errors"

// Dispatch layer errors
// ARCHITECTURAL DISCOVERY: Sentinel errors enable precise rejection feedback
// to clients without exposing internal pipeline details
var (
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrInvalidFrame      = errors.New("invalid action frame")
	ErrServerOnlyAction  = errors.New("action type is server-originated")
)
