package kafka

import (
	"context"

	"github.com/NordCoder/KUSeek/internal/domain/outbox"
)

type AuthEvents interface {
	PublishAuthEvent(ctx context.Context, ev outbox.AuthEvent) error
}
