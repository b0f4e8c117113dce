package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/tdex-network/tdex-notary/internal/core/domain"
)

type sessionInmemoryStore struct {
	sessions map[string]domain.Session
	locker   *sync.RWMutex
}

// SessionRepositoryImpl represents an in memory storage
type SessionRepositoryImpl struct {
	store *sessionInmemoryStore
}

// NewSessionRepositoryImpl returns a new empty SessionRepositoryImpl
func NewSessionRepositoryImpl() domain.SessionRepository {
	return &SessionRepositoryImpl{
		store: &sessionInmemoryStore{
			sessions: map[string]domain.Session{},
			locker:   &sync.RWMutex{},
		},
	}
}

func (r *SessionRepositoryImpl) AddSession(
	_ context.Context, session domain.Session,
) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	if _, ok := r.store.sessions[session.ID]; ok {
		return domain.ErrSessionAlreadyExists
	}
	r.store.sessions[session.ID] = session
	return nil
}

func (r *SessionRepositoryImpl) GetSession(
	_ context.Context, id string,
) (*domain.Session, error) {
	r.store.locker.RLock()
	defer r.store.locker.RUnlock()

	session, ok := r.store.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &session, nil
}

func (r *SessionRepositoryImpl) GetSessionsForAddress(
	_ context.Context, address string,
) ([]domain.Session, error) {
	r.store.locker.RLock()
	defer r.store.locker.RUnlock()

	return r.findSessions(func(s domain.Session) bool {
		return s.Address == address
	}), nil
}

func (r *SessionRepositoryImpl) ListSessions(
	_ context.Context,
) ([]domain.Session, error) {
	r.store.locker.RLock()
	defer r.store.locker.RUnlock()

	return r.findSessions(func(domain.Session) bool { return true }), nil
}

// UpdateSession updates data to the session passing an update function
func (r *SessionRepositoryImpl) UpdateSession(
	_ context.Context,
	id string,
	updateFn func(s *domain.Session) (*domain.Session, error),
) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	session, ok := r.store.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}

	updatedSession, err := updateFn(&session)
	if err != nil {
		return err
	}

	r.store.sessions[id] = *updatedSession
	return nil
}

func (r *SessionRepositoryImpl) DeleteSession(
	_ context.Context, id string,
) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	delete(r.store.sessions, id)
	return nil
}

func (r *SessionRepositoryImpl) Close() {}

func (r *SessionRepositoryImpl) findSessions(
	filter func(s domain.Session) bool,
) []domain.Session {
	sessions := make([]domain.Session, 0)
	for _, s := range r.store.sessions {
		if filter(s) {
			sessions = append(sessions, s)
		}
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt == sessions[j].CreatedAt {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt < sessions[j].CreatedAt
	})
	return sessions
}
