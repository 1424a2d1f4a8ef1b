package gateway

import (
	"encoding/json"
	"time"
)

// EventType is the type of a WebSocket event sent to clients.
type EventType string

const (
	EventTypeLeaderboardUpdated EventType = "LeaderboardUpdated"
)

// Event is the message pushed to WebSocket clients.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// LeaderboardUpdatedPayload carries the full standings so clients never have
// to merge deltas.
type LeaderboardUpdatedPayload struct {
	Items []leaderboardItem `json:"items"`
}
