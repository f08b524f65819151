package websocket

import "errors"

// Connection and registry error types
var (
	ErrConnectionClosed           = errors.New("connection is closed")
	ErrInvalidJSON                = errors.New("failed to marshal JSON")
	ErrWriteTimeout               = errors.New("write operation timed out")
	ErrNilConnection              = errors.New("connection cannot be nil")
	ErrConnectionNotAuthenticated = errors.New("connection is not authenticated")
)
