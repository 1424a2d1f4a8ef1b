package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"spendmillion/internal/query"
	"spendmillion/internal/session"
)

// SessionApp defines what the gateway needs from the session lifecycle
// manager.
type SessionApp interface {
	Start(ctx context.Context, userID int64, displayName string) (session.StartResult, error)
	Spend(ctx context.Context, req session.SpendRequest) session.SpendResult
	Finish(ctx context.Context, sessionID string, userID int64) (session.FinishResult, session.Reason)
}

// QueryApp defines what the gateway needs from the query service.
type QueryApp interface {
	Leaderboard() []query.RankedEntry
}

// Config holds configuration for the gateway service.
type Config struct {
	ConnectionConfig ConnectionConfig
	ConsumerConfig   NATSConsumerConfig
}

// DefaultConfig returns default configuration for the gateway.
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		ConsumerConfig:   DefaultNATSConsumerConfig(),
	}
}

// Service exposes the game API over HTTP/JSON and pushes leaderboard
// updates over WebSocket.
type Service struct {
	sessions          SessionApp
	query             QueryApp
	verifier          Verifier
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	eventConsumer     *EventConsumer
}

// NewService creates the gateway. When the consumer config has no URL the
// WebSocket feed stays registered but receives no bus events.
func NewService(config Config, sessions SessionApp, queryApp QueryApp, verifier Verifier) (*Service, error) {
	connectionManager := NewConnectionManager(config.ConnectionConfig)
	wsHandler := NewWebSocketHandler(connectionManager, queryApp)

	var eventConsumer *EventConsumer
	if config.ConsumerConfig.URL != "" {
		var err error
		eventConsumer, err = NewEventConsumer(connectionManager, queryApp, config.ConsumerConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create event consumer: %w", err)
		}
	}

	return &Service{
		sessions:          sessions,
		query:             queryApp,
		verifier:          verifier,
		connectionManager: connectionManager,
		wsHandler:         wsHandler,
		eventConsumer:     eventConsumer,
	}, nil
}

// Start runs the broadcast loop and, when configured, the bus consumer until
// ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	go s.connectionManager.Start(ctx)

	if s.eventConsumer != nil {
		go func() {
			if err := s.eventConsumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("event consumer failed")
			}
		}()
	}

	<-ctx.Done()
	return s.Stop()
}

// Stop shuts down the bus consumer. WebSocket connections close with the
// broadcast loop's context.
func (s *Service) Stop() error {
	if s.eventConsumer != nil {
		if err := s.eventConsumer.Stop(); err != nil {
			log.Error().Err(err).Msg("failed to stop event consumer")
		}
	}
	log.Info().Msg("gateway service stopped")
	return nil
}

// RegisterRoutes registers the API and WebSocket routes.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/start", s.handleStart)
	mux.HandleFunc("/api/spend", s.handleSpend)
	mux.HandleFunc("/api/finish", s.handleFinish)
	mux.HandleFunc("/api/leaderboard", s.handleLeaderboard)
	s.wsHandler.RegisterRoutes(mux)
}

type startRequest struct {
	InitData string      `json:"initData"`
	User     userPayload `json:"user"`
}

func (r *startRequest) auth() (string, userPayload) { return r.InitData, r.User }

type spendRequest struct {
	InitData  string      `json:"initData"`
	User      userPayload `json:"user"`
	SessionID string      `json:"session_id"`
	Item      string      `json:"item"`
	Quantity  int64       `json:"quantity"`
	Amount    int64       `json:"amount"`
}

func (r *spendRequest) auth() (string, userPayload) { return r.InitData, r.User }

type finishRequest struct {
	InitData  string      `json:"initData"`
	User      userPayload `json:"user"`
	SessionID string      `json:"session_id"`
}

func (r *finishRequest) auth() (string, userPayload) { return r.InitData, r.User }

// authedRequest is any request body carrying a launch payload.
type authedRequest interface {
	auth() (string, userPayload)
}

// leaderboardItem is the wire shape of one standings row.
type leaderboardItem struct {
	Username string `json:"username"`
	Spent    int64  `json:"spent"`
}

func (s *Service) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req startRequest
	if !s.decodeAndAuthenticate(w, r, &req) {
		return
	}

	res, err := s.sessions.Start(r.Context(), req.User.ID, req.User.displayName())
	if err != nil {
		log.Error().Err(err).Int64("user_id", req.User.ID).Msg("start failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"ok":         true,
		"session_id": res.SessionID,
		"spent":      res.SpentTotal,
		"expires_at": res.ExpiresAt.Unix(),
		"now":        res.ServerNow.Unix(),
	})
}

func (s *Service) handleSpend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req spendRequest
	if !s.decodeAndAuthenticate(w, r, &req) {
		return
	}

	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1 // clients that buy single items omit the field
	}

	res := s.sessions.Spend(r.Context(), session.SpendRequest{
		SessionID: req.SessionID,
		UserID:    req.User.ID,
		Item:      req.Item,
		Quantity:  quantity,
		Amount:    req.Amount,
	})
	if !res.OK {
		writeReason(w, res.Reason)
		return
	}

	writeJSON(w, map[string]any{
		"ok":        true,
		"spent":     res.SpentTotal,
		"remaining": res.Remaining,
		"finished":  res.Finished,
	})
}

func (s *Service) handleFinish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req finishRequest
	if !s.decodeAndAuthenticate(w, r, &req) {
		return
	}

	res, reason := s.sessions.Finish(r.Context(), req.SessionID, req.User.ID)
	if reason != "" {
		writeReason(w, reason)
		return
	}

	writeJSON(w, map[string]any{
		"ok":       true,
		"finished": res.Finished,
		"spent":    res.SpentTotal,
	})
}

func (s *Service) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, map[string]any{
		"ok":    true,
		"items": standingsItems(s.query.Leaderboard()),
	})
}

// decodeAndAuthenticate decodes the JSON body into req, then verifies the
// launch payload and user ID. It writes the error response itself and
// returns false when the request must not proceed.
func (s *Service) decodeAndAuthenticate(w http.ResponseWriter, r *http.Request, req authedRequest) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return false
	}

	initData, user := req.auth()
	if err := s.verifier.Verify(initData); err != nil {
		log.Warn().Err(err).Msg("rejecting unverifiable launch context")
		http.Error(w, "invalid init data", http.StatusUnauthorized)
		return false
	}
	if user.ID <= 0 {
		http.Error(w, "invalid user", http.StatusBadRequest)
		return false
	}
	return true
}

func standingsItems(ranked []query.RankedEntry) []leaderboardItem {
	items := make([]leaderboardItem, len(ranked))
	for i, entry := range ranked {
		name := entry.DisplayName
		if name == "" {
			name = "anon"
		}
		items[i] = leaderboardItem{Username: name, Spent: entry.FinalSpent}
	}
	return items
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}

// writeReason reports a gameplay rejection. Touching someone else's session
// is an access violation, not a game rule, so it alone gets a 403.
func writeReason(w http.ResponseWriter, reason session.Reason) {
	w.Header().Set("Content-Type", "application/json")
	if reason == session.ReasonForeignSession {
		w.WriteHeader(http.StatusForbidden)
	}
	if err := json.NewEncoder(w).Encode(map[string]any{
		"ok":     false,
		"code":   string(reason),
		"reason": reason.Message(),
	}); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}
