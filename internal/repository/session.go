package repository

import (
	"context"
	"errors"
	"sync"

	"github.com/xtremettt/backend/internal/entity"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionRepository stores session records keyed by game id. Implementations
// must be safe for concurrent use; serialization of mutations per game is the
// caller's responsibility.
type SessionRepository interface {
	Save(ctx context.Context, session *entity.Session) error
	GetByID(ctx context.Context, id string) (*entity.Session, error)
	DeleteByID(ctx context.Context, id string) error
}

type memorySessions struct {
	mu       sync.RWMutex
	sessions map[string]*entity.Session
}

// NewMemorySessionRepository returns an in-process store. Sessions are
// deep-copied on the way in and out so callers never alias stored state.
func NewMemorySessionRepository() SessionRepository {
	return &memorySessions{
		sessions: make(map[string]*entity.Session),
	}
}

func (that *memorySessions) Save(_ context.Context, session *entity.Session) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.sessions[session.GameID] = session.Clone()

	return nil
}

func (that *memorySessions) GetByID(_ context.Context, id string) (*entity.Session, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	session, ok := that.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}

	return session.Clone(), nil
}

func (that *memorySessions) DeleteByID(_ context.Context, id string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.sessions, id)

	return nil
}
