package types

import (
	"time"
)

// Session is the persistent metadata record for one workspace session.
// FUNCTIONAL DISCOVERY: Immutable after creation except for end_time and
// status. The live replicated SessionState is a separate, in-memory thing -
// this record is what the REST surface and the database know about, and it
// carries the reducer policy every replica of the session must run with.
type Session struct {
	ID             string     `json:"id" db:"id"`
	Name           string     `json:"name" db:"name"`
	CreatedBy      string     `json:"created_by" db:"created_by"`
	ResourcePolicy string     `json:"resource_policy" db:"resource_policy"`
	StartTime      time.Time  `json:"start_time" db:"start_time"`
	EndTime        *time.Time `json:"end_time,omitempty" db:"end_time"`
	Status         string     `json:"status" db:"status"`
}

// Session status values
const (
	SessionStatusActive = "active"
	SessionStatusEnded  = "ended"
)

// Validate ensures the session record meets all requirements
func (s *Session) Validate() error {
	if len(s.Name) < 1 || len(s.Name) > 200 {
		return ErrInvalidSessionName
	}
	if !IsValidUserID(s.CreatedBy) {
		return ErrInvalidUserID
	}
	return nil
}
