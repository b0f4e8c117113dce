package dbbadger

import (
	"context"
	"sort"

	"github.com/dgraph-io/badger/v3"
	"github.com/tdex-network/tdex-notary/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

type sessionRepositoryImpl struct {
	db *DbManager
}

// NewSessionRepositoryImpl returns a badger-backed domain.SessionRepository.
func NewSessionRepositoryImpl(db *DbManager) domain.SessionRepository {
	return &sessionRepositoryImpl{db}
}

func (r *sessionRepositoryImpl) AddSession(
	_ context.Context, session domain.Session,
) error {
	if err := r.db.SessionStore.Insert(session.ID, &session); err != nil {
		if err == badgerhold.ErrKeyExists {
			return domain.ErrSessionAlreadyExists
		}
		return err
	}
	return nil
}

func (r *sessionRepositoryImpl) GetSession(
	_ context.Context, id string,
) (*domain.Session, error) {
	var session domain.Session
	if err := r.db.SessionStore.Get(id, &session); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepositoryImpl) GetSessionsForAddress(
	_ context.Context, address string,
) ([]domain.Session, error) {
	query := badgerhold.Where("Address").Eq(address)
	return r.findSessions(query)
}

func (r *sessionRepositoryImpl) ListSessions(
	_ context.Context,
) ([]domain.Session, error) {
	return r.findSessions(nil)
}

func (r *sessionRepositoryImpl) UpdateSession(
	_ context.Context,
	id string,
	updateFn func(s *domain.Session) (*domain.Session, error),
) error {
	// Badger transactions are optimistic, the update is retried if another
	// one has been committed in the meanwhile.
	for {
		err := r.db.SessionStore.Badger().Update(func(tx *badger.Txn) error {
			var session domain.Session
			if err := r.db.SessionStore.TxGet(tx, id, &session); err != nil {
				if err == badgerhold.ErrNotFound {
					return domain.ErrSessionNotFound
				}
				return err
			}

			updatedSession, err := updateFn(&session)
			if err != nil {
				return err
			}
			return r.db.SessionStore.TxUpdate(tx, id, updatedSession)
		})
		if err != badger.ErrConflict {
			return err
		}
	}
}

func (r *sessionRepositoryImpl) DeleteSession(
	_ context.Context, id string,
) error {
	if err := r.db.SessionStore.Delete(id, domain.Session{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return err
	}
	return nil
}

func (r *sessionRepositoryImpl) Close() {
	r.db.Close()
}

func (r *sessionRepositoryImpl) findSessions(
	query *badgerhold.Query,
) ([]domain.Session, error) {
	sessions := make([]domain.Session, 0)
	if err := r.db.SessionStore.Find(&sessions, query); err != nil {
		return nil, err
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt < sessions[j].CreatedAt
	})
	return sessions, nil
}
