package leaderboard

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"spendmillion/internal/models"
)

// Config holds leaderboard settings.
type Config struct {
	Size int // maximum number of ranked entries exposed to readers
}

// DefaultConfig returns the default top-20 leaderboard.
func DefaultConfig() Config {
	return Config{Size: 20}
}

// App maintains the ranked view of finalized sessions. Writes are serialized
// on a mutex and swap in a fresh sorted snapshot; readers load the snapshot
// without locking, so they never observe a half-applied update.
//
// One entry is kept per user: the best final spend, with the earlier
// finalization winning ties. Replaying the game never lowers a user's rank.
type App struct {
	mu   sync.Mutex
	best map[int64]models.LeaderboardEntry
	top  atomic.Pointer[[]models.LeaderboardEntry]
	cfg  Config
}

// NewApp creates an empty leaderboard.
func NewApp(cfg Config) *App {
	a := &App{
		best: make(map[int64]models.LeaderboardEntry),
		cfg:  cfg,
	}
	empty := make([]models.LeaderboardEntry, 0)
	a.top.Store(&empty)
	return a
}

// Publish records a finalized session result.
func (a *App) Publish(entry models.LeaderboardEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()

	current, exists := a.best[entry.UserID]
	if exists && !better(entry, current) {
		return
	}
	a.best[entry.UserID] = entry
	a.rebuildLocked()

	log.Debug().
		Int64("user_id", entry.UserID).
		Int64("final_spent", entry.FinalSpent).
		Msg("leaderboard entry published")
}

// Top returns the current ranked snapshot, best first, at most Size entries.
// The returned slice is shared and must not be mutated.
func (a *App) Top() []models.LeaderboardEntry {
	return *a.top.Load()
}

// better reports whether candidate should replace current as a user's entry.
func better(candidate, current models.LeaderboardEntry) bool {
	if candidate.FinalSpent != current.FinalSpent {
		return candidate.FinalSpent > current.FinalSpent
	}
	return candidate.FinalizedAt.Before(current.FinalizedAt)
}

// rebuildLocked recomputes the sorted snapshot. Callers must hold mu.
func (a *App) rebuildLocked() {
	entries := make([]models.LeaderboardEntry, 0, len(a.best))
	for _, e := range a.best {
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].FinalSpent != entries[j].FinalSpent {
			return entries[i].FinalSpent > entries[j].FinalSpent
		}
		if !entries[i].FinalizedAt.Equal(entries[j].FinalizedAt) {
			return entries[i].FinalizedAt.Before(entries[j].FinalizedAt)
		}
		return entries[i].UserID < entries[j].UserID
	})

	if len(entries) > a.cfg.Size {
		entries = entries[:a.cfg.Size]
	}
	a.top.Store(&entries)
}
