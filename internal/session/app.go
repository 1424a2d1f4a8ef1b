package session

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"spendmillion/internal/events"
	"spendmillion/internal/models"
)

// Catalog defines what the app needs from the item catalog.
type Catalog interface {
	Lookup(name string) (models.Item, bool)
}

// Leaderboard defines what the app needs from the leaderboard.
type Leaderboard interface {
	Publish(entry models.LeaderboardEntry)
}

// ResultArchive defines what the app needs from the results archive.
type ResultArchive interface {
	SaveResult(ctx context.Context, entry models.LeaderboardEntry) error
}

// Config holds the fixed game parameters. Every session gets the same
// budget and duration, assigned at creation.
type Config struct {
	Budget   int64
	Duration time.Duration
}

// DefaultConfig returns the classic game setup: spend $1,000,000 in 5 minutes.
func DefaultConfig() Config {
	return Config{
		Budget:   1_000_000,
		Duration: 5 * time.Minute,
	}
}

// App is the session lifecycle manager. It owns session creation, spend
// validation and finalization. The service clock is the only time authority;
// client-supplied timestamps are never consulted.
type App struct {
	repo      *Repository
	catalog   Catalog
	board     Leaderboard
	archive   ResultArchive
	publisher events.Publisher
	clock     clockwork.Clock
	cfg       Config
}

// NewApp creates a session lifecycle manager. archive may be nil when result
// persistence is disabled.
func NewApp(repo *Repository, catalog Catalog, board Leaderboard, archive ResultArchive, publisher events.Publisher, clock clockwork.Clock, cfg Config) *App {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &App{
		repo:      repo,
		catalog:   catalog,
		board:     board,
		archive:   archive,
		publisher: publisher,
		clock:     clock,
		cfg:       cfg,
	}
}

// StartResult is the outcome of a start call. ServerNow lets the caller
// compute its clock skew; it is advisory only.
type StartResult struct {
	SessionID  string
	SpentTotal int64
	ExpiresAt  time.Time
	ServerNow  time.Time
}

// Start returns the user's active unexpired session, or creates a fresh one.
// Concurrent starts for the same user are serialized on a per-user lock so a
// user can never hold two active budgets.
func (a *App) Start(ctx context.Context, userID int64, displayName string) (StartResult, error) {
	lk := a.repo.UserLock(userID)
	lk.Lock()
	defer lk.Unlock()

	now := a.clock.Now()

	if rec, ok := a.repo.ActiveForUser(userID); ok {
		rec.Lock()
		if rec.Session.Status == models.SessionStatusActive && now.Before(rec.Session.ExpiresAt) {
			res := StartResult{
				SessionID:  rec.Session.ID,
				SpentTotal: rec.Session.SpentTotal,
				ExpiresAt:  rec.Session.ExpiresAt,
				ServerNow:  now,
			}
			rec.Unlock()
			return res, nil
		}
		// The indexed session ran out without an explicit finish call.
		// Lazy expiry counts as a finish for leaderboard purposes.
		if rec.Session.Status == models.SessionStatusActive {
			a.finalizeLocked(ctx, rec, now)
		}
		rec.Unlock()
	}

	rec := &Record{
		Session: models.Session{
			ID:          uuid.New().String(),
			UserID:      userID,
			DisplayName: displayName,
			CreatedAt:   now,
			ExpiresAt:   now.Add(a.cfg.Duration),
			Budget:      a.cfg.Budget,
			Status:      models.SessionStatusActive,
		},
	}
	a.repo.Insert(rec)

	log.Info().
		Str("session_id", rec.Session.ID).
		Int64("user_id", userID).
		Time("expires_at", rec.Session.ExpiresAt).
		Msg("session started")

	a.publish(ctx, events.TypeSessionStarted, rec.Session.ID, now, events.SessionStartedPayload{
		UserID:      userID,
		DisplayName: displayName,
		Budget:      a.cfg.Budget,
		ExpiresAt:   rec.Session.ExpiresAt,
	})

	return StartResult{
		SessionID:  rec.Session.ID,
		SpentTotal: 0,
		ExpiresAt:  rec.Session.ExpiresAt,
		ServerNow:  now,
	}, nil
}

// SpendRequest is a purchase attempt. UserID is the verified caller, Amount
// is the client-claimed total, re-derived server-side before anything is
// accepted.
type SpendRequest struct {
	SessionID string
	UserID    int64
	Item      string
	Quantity  int64
	Amount    int64
}

// SpendResult is the outcome of a spend call. Reason is set only when OK is
// false.
type SpendResult struct {
	OK         bool
	SpentTotal int64
	Remaining  int64
	Finished   bool
	Reason     Reason
}

// Spend validates and applies a purchase. All checks and the mutation run
// under the session's lock, so two racing spends can never drive the total
// past the budget. A purchase fully succeeds or is fully rejected; totals
// are never clamped.
func (a *App) Spend(ctx context.Context, req SpendRequest) SpendResult {
	rec, ok := a.repo.Get(req.SessionID)
	if !ok {
		return SpendResult{Reason: ReasonSessionNotFound}
	}

	rec.Lock()
	defer rec.Unlock()

	s := &rec.Session
	now := a.clock.Now()

	// Guessing another player's session ID must not reveal its totals.
	if s.UserID != req.UserID {
		return SpendResult{Reason: ReasonForeignSession}
	}

	// An already-finished session wins over an expired one when both hold.
	if s.Status == models.SessionStatusFinished {
		return SpendResult{SpentTotal: s.SpentTotal, Remaining: s.Remaining(), Reason: ReasonSessionFinished}
	}
	if !now.Before(s.ExpiresAt) {
		a.finalizeLocked(ctx, rec, now)
		return SpendResult{SpentTotal: s.SpentTotal, Remaining: s.Remaining(), Reason: ReasonSessionExpired}
	}

	item, ok := a.catalog.Lookup(req.Item)
	if !ok || req.Quantity < 1 || req.Quantity > math.MaxInt64/item.UnitPrice {
		return SpendResult{SpentTotal: s.SpentTotal, Remaining: s.Remaining(), Reason: ReasonInvalidItem}
	}

	total := item.UnitPrice * req.Quantity
	if total != req.Amount {
		log.Warn().
			Str("session_id", s.ID).
			Str("item", item.Name).
			Int64("claimed", req.Amount).
			Int64("actual", total).
			Msg("rejecting tampered spend amount")
		return SpendResult{SpentTotal: s.SpentTotal, Remaining: s.Remaining(), Reason: ReasonAmountMismatch}
	}

	// Compare against the remaining budget; summing spentTotal and a
	// near-MaxInt64 total would wrap negative.
	if total > s.Budget-s.SpentTotal {
		return SpendResult{SpentTotal: s.SpentTotal, Remaining: s.Remaining(), Reason: ReasonInsufficientBudget}
	}

	s.Purchases = append(s.Purchases, models.Purchase{
		ItemName:   item.Name,
		Quantity:   req.Quantity,
		UnitPrice:  item.UnitPrice,
		TotalPrice: total,
		RecordedAt: now,
	})
	s.SpentTotal += total

	finished := s.SpentTotal == s.Budget
	if finished {
		a.finalizeLocked(ctx, rec, now)
	}

	a.publish(ctx, events.TypePurchaseMade, s.ID, now, events.PurchaseMadePayload{
		UserID:     s.UserID,
		ItemName:   item.Name,
		Quantity:   req.Quantity,
		TotalPrice: total,
		SpentTotal: s.SpentTotal,
		Finished:   finished,
	})

	return SpendResult{
		OK:         true,
		SpentTotal: s.SpentTotal,
		Remaining:  s.Remaining(),
		Finished:   finished,
	}
}

// FinishResult is the outcome of a finish call.
type FinishResult struct {
	SpentTotal int64
	Finished   bool
}

// Finish finalizes a session owned by userID. Idempotent: finishing a
// finished session returns its totals without side effects, so callers may
// retry freely.
func (a *App) Finish(ctx context.Context, sessionID string, userID int64) (FinishResult, Reason) {
	rec, ok := a.repo.Get(sessionID)
	if !ok {
		return FinishResult{}, ReasonSessionNotFound
	}

	rec.Lock()
	defer rec.Unlock()

	if rec.Session.UserID != userID {
		return FinishResult{}, ReasonForeignSession
	}

	if rec.Session.Status != models.SessionStatusFinished {
		a.finalizeLocked(ctx, rec, a.clock.Now())
	}

	return FinishResult{SpentTotal: rec.Session.SpentTotal, Finished: true}, ""
}

// finalizeLocked transitions the session to finished and publishes the
// result. Callers must hold the record's lock. Archive and bus failures are
// logged, never surfaced; the in-memory ledger is already consistent.
func (a *App) finalizeLocked(ctx context.Context, rec *Record, now time.Time) {
	s := &rec.Session
	if s.Status == models.SessionStatusFinished {
		return
	}

	s.Status = models.SessionStatusFinished
	finalizedAt := now
	s.FinalizedAt = &finalizedAt

	a.repo.ClearActive(s.UserID, s.ID)

	entry := models.LeaderboardEntry{
		UserID:      s.UserID,
		DisplayName: s.DisplayName,
		FinalSpent:  s.SpentTotal,
		FinalizedAt: finalizedAt,
	}
	a.board.Publish(entry)

	if a.archive != nil {
		if err := a.archive.SaveResult(ctx, entry); err != nil {
			log.Error().Err(err).Str("session_id", s.ID).Msg("failed to archive result")
		}
	}

	log.Info().
		Str("session_id", s.ID).
		Int64("user_id", s.UserID).
		Int64("final_spent", s.SpentTotal).
		Msg("session finalized")

	a.publish(ctx, events.TypeSessionFinished, s.ID, now, events.SessionFinishedPayload{
		UserID:      s.UserID,
		DisplayName: s.DisplayName,
		FinalSpent:  s.SpentTotal,
		FinalizedAt: finalizedAt,
	})
}

func (a *App) publish(ctx context.Context, eventType, sessionID string, ts time.Time, payload any) {
	event, err := events.New(eventType, sessionID, ts, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to build event")
		return
	}
	if err := a.publisher.Publish(ctx, event); err != nil {
		log.Error().Err(err).Str("event_type", eventType).Str("session_id", sessionID).Msg("failed to publish event")
	}
}
