package auth

import (
	"time"

	"github.com/NordCoder/KUSeek/internal/domain/user"
	"github.com/google/uuid"
)

// Session is the server-side handle of one issued refresh token.
type Session struct {
	UserID    uuid.UUID
	Nonce     uint32
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Claims is the verified content of an access or refresh token.
type Claims struct {
	UserID    uuid.UUID
	Nonce     uint32 // refresh tokens only
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Tokens is what a successful login or refresh hands back to the caller.
type Tokens struct {
	Access  string
	Refresh string
	UserID  uuid.UUID
	Role    user.Role
}
