package outbox

import (
	"context"
	"time"
)

type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSuccess    Status = "SUCCESS"
)

type Kind int

const (
	KindUserRegistered  Kind = 1
	KindSessionsRevoked Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindUserRegistered:
		return "user_registered"
	case KindSessionsRevoked:
		return "sessions_revoked"
	default:
		return "unknown"
	}
}

type Message struct {
	IdempotencyKey string
	Kind           Kind
	Data           []byte
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Tracestate     string
	Traceparent    string
	Baggage        string
}

// AuthEvent is the payload of every auth outbox kind.
type AuthEvent struct {
	Type     string    `json:"type"`
	UserID   string    `json:"user_id"`
	Role     string    `json:"role,omitempty"`
	Sessions int64     `json:"sessions,omitempty"`
	At       time.Time `json:"at"`
}

type Repository interface {
	Enqueue(ctx context.Context, key string, kind Kind, data []byte) error

	PickBatch(ctx context.Context, batch int, inProgressTTL time.Duration) ([]Message, error)

	MarkSuccess(ctx context.Context, keys []string) error
}

type KindHandler func(ctx context.Context, data []byte) error

type GlobalHandler func(kind Kind) (KindHandler, error)
