package ai

import "errors"

// AI subsystem errors
var (
	ErrWorkerAlreadyRunning    = errors.New("ai worker already running")
	ErrWorkerNotRunning        = errors.New("ai worker not running")
	ErrModeratorAlreadyRunning = errors.New("ai moderator already running")
	ErrModeratorNotRunning     = errors.New("ai moderator not running")
	ErrGateAlreadyRunning      = errors.New("sandbox gate already running")
	ErrGateNotRunning          = errors.New("sandbox gate not running")
	ErrUnknownBackend          = errors.New("unknown ai backend")
)
