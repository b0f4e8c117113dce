package domain

import "context"

// SessionRepository is the abstraction for any kind of database intended to
// persist open registration sessions.
type SessionRepository interface {
	// AddSession stores a new session. Fails if one with the same id exists.
	AddSession(ctx context.Context, session Session) error
	// GetSession returns the session with the given id.
	GetSession(ctx context.Context, id string) (*Session, error)
	// GetSessionsForAddress returns all sessions bound to the given address.
	GetSessionsForAddress(ctx context.Context, address string) ([]Session, error)
	// ListSessions returns every stored session.
	ListSessions(ctx context.Context) ([]Session, error)
	// UpdateSession applies updateFn to the session with the given id and
	// stores the result.
	UpdateSession(
		ctx context.Context,
		id string,
		updateFn func(s *Session) (*Session, error),
	) error
	// DeleteSession removes the session. Deleting a missing session is not an
	// error.
	DeleteSession(ctx context.Context, id string) error
	// Close releases the underlying storage.
	Close()
}
