package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/NordCoder/KUSeek/internal/domain/auth"
	"github.com/google/uuid"
)

var _ auth.SessionRepo = (*SessionRepo)(nil)

// SessionRepo is the refresh-token revocation store: a row exists exactly
// as long as its refresh token may be used.
type SessionRepo struct{ db *DB }

func NewSessionRepo(db *DB) *SessionRepo { return &SessionRepo{db: db} }

const (
	qSessionCreate = `
INSERT INTO sessions (user_id, nonce, issued_at, expires_at)
VALUES ($1, $2, $3, $4);`

	qSessionTake = `
DELETE FROM sessions
WHERE user_id = $1 AND nonce = $2
RETURNING nonce;`

	qSessionDeleteAll = `
DELETE FROM sessions WHERE user_id = $1;`

	qSessionPrune = `
DELETE FROM sessions WHERE expires_at < $1;`
)

func (r *SessionRepo) Create(ctx context.Context, s *auth.Session) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	_, err := r.db.execQueryer(ctx).Exec(ctx, qSessionCreate, s.UserID, int64(s.Nonce), s.IssuedAt, s.ExpiresAt)
	return mapErr("session insert", err)
}

func (r *SessionRepo) Take(ctx context.Context, userID uuid.UUID, nonce uint32) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var got int64
	err := r.db.execQueryer(ctx).QueryRow(ctx, qSessionTake, userID, int64(nonce)).Scan(&got)
	if err != nil {
		if err = mapErr("session take", err); errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *SessionRepo) DeleteAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qSessionDeleteAll, userID)
	if err != nil {
		return 0, mapErr("session delete all", err)
	}
	return tag.RowsAffected(), nil
}

// PruneExpired drops sessions whose refresh token can no longer verify.
func (r *SessionRepo) PruneExpired(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qSessionPrune, before)
	if err != nil {
		return 0, mapErr("session prune", err)
	}
	return tag.RowsAffected(), nil
}
