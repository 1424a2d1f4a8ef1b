package query

import (
	"spendmillion/internal/models"
)

// SessionRepository defines what the query service needs from the session
// store.
type SessionRepository interface {
	Snapshot(id string) (models.Session, bool)
}

// Leaderboard defines what the query service needs from the leaderboard.
type Leaderboard interface {
	Top() []models.LeaderboardEntry
}

// RankedEntry is a leaderboard entry with its 1-based rank.
type RankedEntry struct {
	Rank int `json:"rank"`
	models.LeaderboardEntry
}

// App is the read-only facade over the session store and leaderboard.
type App struct {
	sessions SessionRepository
	board    Leaderboard
}

// NewApp creates a query service.
func NewApp(sessions SessionRepository, board Leaderboard) *App {
	return &App{
		sessions: sessions,
		board:    board,
	}
}

// Leaderboard returns the ranked standings, best first.
func (a *App) Leaderboard() []RankedEntry {
	top := a.board.Top()
	ranked := make([]RankedEntry, len(top))
	for i, entry := range top {
		ranked[i] = RankedEntry{Rank: i + 1, LeaderboardEntry: entry}
	}
	return ranked
}

// Session returns a point-in-time copy of a session.
func (a *App) Session(id string) (models.Session, bool) {
	return a.sessions.Snapshot(id)
}
