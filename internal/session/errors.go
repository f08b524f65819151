package session

import "errors"

// Session manager error types
var (
	ErrSessionAlreadyEnded = errors.New("session already ended")
	ErrAlreadyJoined       = errors.New("user already joined this session")
)
