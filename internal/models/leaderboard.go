package models

import (
	"time"
)

// LeaderboardEntry is one user's best finalized result.
type LeaderboardEntry struct {
	UserID      int64     `json:"user_id"`
	DisplayName string    `json:"display_name"`
	FinalSpent  int64     `json:"final_spent"`
	FinalizedAt time.Time `json:"finalized_at"`
}
