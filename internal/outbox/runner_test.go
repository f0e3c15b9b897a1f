package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/NordCoder/KUSeek/internal/domain/outbox"
	"github.com/NordCoder/KUSeek/internal/obs/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRepo struct {
	mu     sync.Mutex
	queue  []outbox.Message
	marked []string
}

func (r *fakeRepo) Enqueue(_ context.Context, key string, kind outbox.Kind, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = append(r.queue, outbox.Message{IdempotencyKey: key, Kind: kind, Data: data})
	return nil
}

func (r *fakeRepo) PickBatch(_ context.Context, batch int, _ time.Duration) ([]outbox.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := min(batch, len(r.queue))
	out := r.queue[:n]
	r.queue = r.queue[n:]
	return out, nil
}

func (r *fakeRepo) MarkSuccess(_ context.Context, keys []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.marked = append(r.marked, keys...)
	return nil
}

func (r *fakeRepo) markedKeys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.marked...)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []outbox.AuthEvent
	failOn string
}

func (p *fakePublisher) PublishAuthEvent(_ context.Context, ev outbox.AuthEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ev.UserID == p.failOn {
		return errors.New("broker down")
	}
	p.events = append(p.events, ev)
	return nil
}

func noRetry() retry.Policy { return retry.Policy{Name: "outbox_test", Attempts: 1} }

func payload(t *testing.T, ev outbox.AuthEvent) []byte {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return b
}

func TestRunner_PublishesAndMarks(t *testing.T) {
	repo := &fakeRepo{}
	pub := &fakePublisher{failOn: "u-bad"}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, repo.Enqueue(ctx, "k1", outbox.KindUserRegistered,
		payload(t, outbox.AuthEvent{Type: "user_registered", UserID: "u-1", Role: "Student"})))
	require.NoError(t, repo.Enqueue(ctx, "k2", outbox.KindSessionsRevoked,
		payload(t, outbox.AuthEvent{Type: "sessions_revoked", UserID: "u-bad", Sessions: 2})))
	require.NoError(t, repo.Enqueue(ctx, "k3", outbox.Kind(99), []byte(`{}`)))

	r := NewOutboxRunner(zap.NewNop(), repo, MakeGlobalOutboxHandler(pub, noRetry()), 1, 10, 5*time.Millisecond, time.Minute)
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(repo.markedKeys()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, []string{"k1"}, repo.markedKeys())
	require.Len(t, pub.events, 1)
	assert.Equal(t, "u-1", pub.events[0].UserID)
}

func TestGlobalHandler_BadPayloadIsNotRetried(t *testing.T) {
	pub := &fakePublisher{}
	h, err := MakeGlobalOutboxHandler(pub, retry.DefaultKafkaPolicy(nil))(outbox.KindUserRegistered)
	require.NoError(t, err)

	start := time.Now()
	err = h(context.Background(), []byte("not json"))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 150*time.Millisecond)
	assert.Empty(t, pub.events)
}

func TestGlobalHandler_UnknownKind(t *testing.T) {
	_, err := MakeGlobalOutboxHandler(&fakePublisher{}, noRetry())(outbox.Kind(42))
	require.Error(t, err)
}
