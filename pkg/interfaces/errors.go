package interfaces

import "errors"

// Common interface errors used across components
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionEnded    = errors.New("session has ended")
	ErrSlotTaken       = errors.New("slot is already occupied")
	ErrSessionFull     = errors.New("session has no free slots")
)
