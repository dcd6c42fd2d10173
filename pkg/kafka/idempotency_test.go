package kafka

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestMemoryIdempotencyStore_AddAndContains(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	ctx := context.Background()

	exists, err := store.Contains(ctx, "ev-1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Add(ctx, "ev-1"))

	exists, err = store.Contains(ctx, "ev-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemoryIdempotencyStore_Expiry(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Nanosecond)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "ev-1"))
	time.Sleep(time.Millisecond)

	exists, err := store.Contains(ctx, "ev-1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestIdempotentHandler_SkipsDuplicate(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	calls := 0
	inner := func(ctx context.Context, event *Event) error {
		calls++
		return nil
	}

	handler := IdempotentHandler(store, inner, testLogger())

	event, err := NewEvent("shop.product.updated", "prod-1", "product", "catalog-service", map[string]string{"slug": "widget"})
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), event))
	require.NoError(t, handler(context.Background(), event))

	assert.Equal(t, 1, calls)
}

func TestIdempotentHandler_FailedHandlingNotRecorded(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	calls := 0
	inner := func(ctx context.Context, event *Event) error {
		calls++
		if calls == 1 {
			return errors.New("transient")
		}
		return nil
	}

	handler := IdempotentHandler(store, inner, testLogger())

	event, err := NewEvent("shop.user.updated", "user-1", "user", "user-service", nil)
	require.NoError(t, err)

	require.Error(t, handler(context.Background(), event))
	// A failed attempt must not mark the event as processed.
	require.NoError(t, handler(context.Background(), event))
	assert.Equal(t, 2, calls)
}

func TestIdempotentHandler_PassThroughWithoutEventID(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	calls := 0
	inner := func(ctx context.Context, event *Event) error {
		calls++
		return nil
	}

	handler := IdempotentHandler(store, inner, testLogger())

	event := &Event{EventType: "shop.product.updated"}
	require.NoError(t, handler(context.Background(), event))
	require.NoError(t, handler(context.Background(), event))
	assert.Equal(t, 2, calls)
}
