package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the session lifecycle.
const (
	TypeSessionStarted  = "SessionStarted"
	TypePurchaseMade    = "PurchaseMade"
	TypeSessionFinished = "SessionFinished"
)

// Event is the envelope shared between the session service and consumers.
type Event struct {
	ID        string          `json:"event_id"`
	Type      string          `json:"event_type"`
	SessionID string          `json:"session_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// New wraps a payload into an event envelope.
func New(eventType, sessionID string, ts time.Time, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		SessionID: sessionID,
		Timestamp: ts,
		Payload:   data,
	}, nil
}

// SessionStartedPayload is the payload for a SessionStarted event.
type SessionStartedPayload struct {
	UserID      int64     `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Budget      int64     `json:"budget"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// PurchaseMadePayload is the payload for a PurchaseMade event.
type PurchaseMadePayload struct {
	UserID     int64  `json:"user_id"`
	ItemName   string `json:"item_name"`
	Quantity   int64  `json:"quantity"`
	TotalPrice int64  `json:"total_price"`
	SpentTotal int64  `json:"spent_total"`
	Finished   bool   `json:"finished"`
}

// SessionFinishedPayload is the payload for a SessionFinished event.
type SessionFinishedPayload struct {
	UserID      int64     `json:"user_id"`
	DisplayName string    `json:"display_name"`
	FinalSpent  int64     `json:"final_spent"`
	FinalizedAt time.Time `json:"finalized_at"`
}
