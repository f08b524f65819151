package sequencer

import "errors"

// Sequencer coordination errors
var (
	ErrSequencerAlreadyRunning = errors.New("sequencer already running")
	ErrSequencerNotRunning     = errors.New("sequencer not running")
	ErrSubmitChannelFull       = errors.New("submit channel full")
)
