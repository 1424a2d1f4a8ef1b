package session

import (
	"sync"

	"spendmillion/internal/models"
)

// Record is one session slot in the store. Its lock serializes every spend
// and finish on that session; operations on different sessions never share
// a lock.
type Record struct {
	mu      sync.Mutex
	Session models.Session
}

// Lock acquires exclusive access to the record's session.
func (r *Record) Lock() {
	r.mu.Lock()
}

// Unlock releases exclusive access to the record's session.
func (r *Record) Unlock() {
	r.mu.Unlock()
}

// Repository is the in-memory keyed session store. The top-level maps are
// guarded by mu; individual sessions are guarded by their record's lock.
// Records are never deleted during the process lifetime.
type Repository struct {
	mu           sync.RWMutex
	sessions     map[string]*Record
	activeByUser map[int64]string
	userLocks    map[int64]*sync.Mutex
}

// NewRepository creates an empty session store.
func NewRepository() *Repository {
	return &Repository{
		sessions:     make(map[string]*Record),
		activeByUser: make(map[int64]string),
		userLocks:    make(map[int64]*sync.Mutex),
	}
}

// Get returns the record for a session ID.
func (r *Repository) Get(id string) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.sessions[id]
	return rec, ok
}

// ActiveForUser returns the record currently indexed as the user's active
// session. The record may have expired since it was indexed; callers must
// re-check under the record's lock.
func (r *Repository) ActiveForUser(userID int64) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.activeByUser[userID]
	if !ok {
		return nil, false
	}
	rec, ok := r.sessions[id]
	return rec, ok
}

// Insert registers a new record and indexes it as the owning user's active
// session. Callers must hold the user's lock so two concurrent starts cannot
// both insert.
func (r *Repository) Insert(rec *Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[rec.Session.ID] = rec
	r.activeByUser[rec.Session.UserID] = rec.Session.ID
}

// ClearActive drops the user's active-session index entry if it still points
// at the given session. Called on finalization.
func (r *Repository) ClearActive(userID int64, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeByUser[userID] == sessionID {
		delete(r.activeByUser, userID)
	}
}

// UserLock returns the mutex that serializes start calls for a user. Locks
// are created lazily and kept for the process lifetime.
func (r *Repository) UserLock(userID int64) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lk, ok := r.userLocks[userID]
	if !ok {
		lk = &sync.Mutex{}
		r.userLocks[userID] = lk
	}
	return lk
}

// Snapshot returns a deep copy of a session for read-only callers.
func (r *Repository) Snapshot(id string) (models.Session, bool) {
	rec, ok := r.Get(id)
	if !ok {
		return models.Session{}, false
	}
	rec.Lock()
	defer rec.Unlock()
	s := rec.Session
	s.Purchases = append([]models.Purchase(nil), rec.Session.Purchases...)
	return s, true
}

// Len returns the number of stored sessions.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
