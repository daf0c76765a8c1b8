package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Lixing-Zhang/ebook-landing/internal/models"
	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("form session not found")
)

// SessionRepository defines the interface for form session storage
type SessionRepository interface {
	Create(ctx context.Context) (*models.FormSession, error)
	Get(ctx context.Context, id string) (*models.FormSession, error)
	Delete(ctx context.Context, id string) error
	Sweep(ctx context.Context, idleSince time.Time) int
}

// InMemorySessionRepository implements SessionRepository with in-memory storage
type InMemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*models.FormSession
	now      func() time.Time
}

// NewInMemorySessionRepository creates a new in-memory session repository
func NewInMemorySessionRepository() *InMemorySessionRepository {
	return &InMemorySessionRepository{
		sessions: make(map[string]*models.FormSession),
		now:      time.Now,
	}
}

// Create opens a new form session
func (r *InMemorySessionRepository) Create(ctx context.Context) (*models.FormSession, error) {
	session := models.NewFormSession(uuid.NewString(), r.now())

	r.mu.Lock()
	r.sessions[session.ID] = session
	r.mu.Unlock()

	return session, nil
}

// Get returns a session by its ID and records the access
func (r *InMemorySessionRepository) Get(ctx context.Context, id string) (*models.FormSession, error) {
	r.mu.RLock()
	session, exists := r.sessions[id]
	r.mu.RUnlock()

	if !exists {
		return nil, ErrSessionNotFound
	}
	session.Touch(r.now())
	return session, nil
}

// Delete removes a session
func (r *InMemorySessionRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; !exists {
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}

// Sweep drops idle sessions last seen before idleSince. Sessions with a submission in
// flight are kept. It returns the number removed.
func (r *InMemorySessionRepository) Sweep(ctx context.Context, idleSince time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, session := range r.sessions {
		if session.Guard.State() == models.StateSubmitting {
			continue
		}
		if session.LastSeen().Before(idleSince) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of open sessions
func (r *InMemorySessionRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
