package kafka

import (
	"context"

	"github.com/NordCoder/KUSeek/internal/domain/kafka"
	"github.com/NordCoder/KUSeek/internal/domain/outbox"
)

const AuthEventsTopic = "kuseek.auth.events"

type AuthEventsKafka struct {
	p *Producer
}

func NewAuthEventsKafka(p *Producer) *AuthEventsKafka { return &AuthEventsKafka{p: p} }

var _ kafka.AuthEvents = (*AuthEventsKafka)(nil)

// PublishAuthEvent keys by user id so one user's events stay ordered
// within a partition.
func (e *AuthEventsKafka) PublishAuthEvent(ctx context.Context, ev outbox.AuthEvent) error {
	return e.p.PublishJSON(ctx, []byte(ev.UserID), ev)
}
