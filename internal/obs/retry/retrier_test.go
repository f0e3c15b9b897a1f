package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/NordCoder/KUSeek/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_StorePolicyRetriesOnce(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return errors.New("boom")
	}, StorePolicy("test_store", nil))

	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestDo_SecondAttemptSucceeds(t *testing.T) {
	calls := 0
	start := time.Now()
	err := Do(context.Background(), func() error {
		calls++
		if calls == 1 {
			return errors.New("transient")
		}
		return nil
	}, StorePolicy("test_store_ok", nil))

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestDo_NotRetryable(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return context.Canceled
	}, StorePolicy("test_store_cancel", nil))

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestExpoJitter_Capped(t *testing.T) {
	b := ExpoJitter{Base: 10 * time.Millisecond, Max: 50 * time.Millisecond}
	assert.Equal(t, 10*time.Millisecond, b.Next(0))
	assert.Equal(t, 20*time.Millisecond, b.Next(1))
	assert.Equal(t, 50*time.Millisecond, b.Next(10))
}

func TestDo_PermanentStopsRetrying(t *testing.T) {
	calls := 0
	cause := errors.New("bad payload")
	err := Do(context.Background(), func() error {
		calls++
		return Permanent(cause)
	}, DefaultKafkaPolicy(nil))

	require.ErrorIs(t, err, cause)
	assert.True(t, IsPermanent(err))
	assert.Equal(t, 1, calls)
}

func TestDo_StoreWritePolicyRetriesUndeliveredOnly(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return fmt.Errorf("read: %w", domain.ErrUnavailable)
	}, StoreWritePolicy("test_store_write", nil))
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	calls = 0
	err = Do(context.Background(), func() error {
		calls++
		if calls == 1 {
			return fmt.Errorf("dial: %w: %w", domain.ErrUnavailable, domain.ErrNotDelivered)
		}
		return nil
	}, StoreWritePolicy("test_store_write", nil))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
