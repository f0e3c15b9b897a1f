package auth

import (
	"context"

	"github.com/google/uuid"
)

type SessionRepo interface {
	Create(ctx context.Context, s *Session) error
	// Take deletes the (userID, nonce) session and reports whether it existed.
	Take(ctx context.Context, userID uuid.UUID, nonce uint32) (bool, error)
	DeleteAll(ctx context.Context, userID uuid.UUID) (int64, error)
}
