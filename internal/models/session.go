package models

import (
	"time"
)

// SessionStatus defines the lifecycle state of a game session.
type SessionStatus string

const (
	SessionStatusActive   SessionStatus = "ACTIVE"
	SessionStatusFinished SessionStatus = "FINISHED"
)

// Session represents one user's timed, budget-bounded play-through.
type Session struct {
	ID          string        `json:"id"`
	UserID      int64         `json:"user_id"`
	DisplayName string        `json:"display_name"`
	CreatedAt   time.Time     `json:"created_at"`
	ExpiresAt   time.Time     `json:"expires_at"`
	Budget      int64         `json:"budget"`
	SpentTotal  int64         `json:"spent_total"`
	Status      SessionStatus `json:"status"`
	FinalizedAt *time.Time    `json:"finalized_at,omitempty"`
	Purchases   []Purchase    `json:"purchases"`
}

// Purchase is one accepted spend on a session. Immutable once appended.
type Purchase struct {
	ItemName   string    `json:"item_name"`
	Quantity   int64     `json:"quantity"`
	UnitPrice  int64     `json:"unit_price"`
	TotalPrice int64     `json:"total_price"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Remaining returns how much budget the session has left.
func (s *Session) Remaining() int64 {
	if s.SpentTotal >= s.Budget {
		return 0
	}
	return s.Budget - s.SpentTotal
}
