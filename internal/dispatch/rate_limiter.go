package dispatch

import (
	"sync"
	"time"
)

// RateLimiter implements per-client rate limiting
// ARCHITECTURAL DISCOVERY: Per-client state tracking with proper cleanup prevents memory leaks
type RateLimiter struct {
	mu        sync.RWMutex
	clients   map[string]*ClientLimit
	maxPerSec int
}

// ClientLimit tracks rate limiting for a single client
// FUNCTIONAL DISCOVERY: Sliding window with second-based reset suits
// high-frequency frames like cursor updates better than a minute window
type ClientLimit struct {
	frameCount  int
	windowStart time.Time
}

// NewRateLimiter creates a new rate limiter allowing maxPerSec frames per
// second per user
// FUNCTIONAL DISCOVERY: Initialize map to prevent nil pointer access during concurrent operations
func NewRateLimiter(maxPerSec int) *RateLimiter {
	return &RateLimiter{
		clients:   make(map[string]*ClientLimit),
		maxPerSec: maxPerSec,
	}
}

// Allow checks if the user can submit another frame in the current window
func (rl *RateLimiter) Allow(userID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	limit, exists := rl.clients[userID]
	if !exists {
		// FUNCTIONAL DISCOVERY: First frame always allowed, initialize tracking
		rl.clients[userID] = &ClientLimit{
			frameCount:  1,
			windowStart: now,
		}
		return true
	}

	// Check if new window needed
	if now.Sub(limit.windowStart) >= time.Second {
		limit.frameCount = 1
		limit.windowStart = now
		return true
	}

	if limit.frameCount >= rl.maxPerSec {
		return false
	}

	limit.frameCount++
	return true
}

// Cleanup removes old client entries (call periodically)
// ARCHITECTURAL DISCOVERY: Prevent memory leaks by removing stale client state
// after 5 minutes of inactivity
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for userID, limit := range rl.clients {
		if now.Sub(limit.windowStart) > 5*time.Minute {
			delete(rl.clients, userID)
		}
	}
}
