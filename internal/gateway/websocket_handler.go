package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for the live
// leaderboard feed.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	query             QueryApp
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(cm *ConnectionManager, queryApp QueryApp) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		query:             queryApp,
	}
}

// HandleLeaderboardConnection upgrades the request and sends the current
// standings as the first message.
func (h *WebSocketHandler) HandleLeaderboardConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.connectionManager.UpgradeConnection(w, r)
	if err != nil {
		// Upgrade has already replied to the client on failure.
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return
	}

	event, err := standingsEvent(h.query)
	if err != nil {
		log.Error().Err(err).Msg("failed to build standings snapshot")
		return
	}
	h.connectionManager.SendDirect(conn, event)
}

// HandleConnectionStats returns statistics about active connections.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"total_connections":%d}`, h.connectionManager.ConnectionCount())
}

// RegisterRoutes registers WebSocket routes with an HTTP mux.
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/leaderboard", h.HandleLeaderboardConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}

// standingsEvent builds a LeaderboardUpdated event from the current ranked
// view.
func standingsEvent(queryApp QueryApp) (Event, error) {
	payload := LeaderboardUpdatedPayload{Items: standingsItems(queryApp.Leaderboard())}
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal standings: %w", err)
	}
	return Event{
		Type:      EventTypeLeaderboardUpdated,
		Timestamp: time.Now(),
		Data:      data,
	}, nil
}
