package types

import "errors"

// Validation errors shared across components
var (
	ErrInvalidSlot          = errors.New("invalid slot identifier")
	ErrInvalidUserID        = errors.New("invalid user ID format")
	ErrInvalidUserName      = errors.New("invalid user name")
	ErrInvalidActionType    = errors.New("invalid action type")
	ErrInvalidAIMode        = errors.New("invalid AI mode")
	ErrInvalidInteractionID = errors.New("invalid interaction ID")
	ErrInvalidToolIndex     = errors.New("invalid tool index")
	ErrContentTooLarge      = errors.New("content exceeds maximum size")
	ErrEmptyContent         = errors.New("content cannot be empty")
	ErrInvalidSessionName   = errors.New("session name must be 1-200 characters")
	ErrInvalidProblemID     = errors.New("invalid problem ID")
)
