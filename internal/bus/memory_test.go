package bus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryPublishSubscribe(t *testing.T) {
	b := NewMemory()
	ctx := context.Background()

	var got [][]byte
	require.NoError(t, b.Subscribe(ctx, "session:s1", func(p []byte) { got = append(got, p) }))
	require.True(t, b.Subscribed("session:s1"))

	require.NoError(t, b.Publish(ctx, "session:s1", []byte(`{"n":1}`)))
	require.NoError(t, b.Publish(ctx, "session:s1", []byte(`{"n":2}`)))
	// other channels must not reach the handler
	require.NoError(t, b.Publish(ctx, "session:s2", []byte(`{"n":3}`)))

	require.Len(t, got, 2)
	require.Equal(t, `{"n":1}`, string(got[0]))
	require.Equal(t, `{"n":2}`, string(got[1]))
}

func TestMemoryUnsubscribe(t *testing.T) {
	b := NewMemory()
	ctx := context.Background()

	calls := 0
	require.NoError(t, b.Subscribe(ctx, "restaurant:r1:staff", func([]byte) { calls++ }))
	require.NoError(t, b.Unsubscribe(ctx, "restaurant:r1:staff"))
	require.False(t, b.Subscribed("restaurant:r1:staff"))

	require.NoError(t, b.Publish(ctx, "restaurant:r1:staff", []byte(`{}`)))
	require.Zero(t, calls)

	// unknown channel is a no-op
	require.NoError(t, b.Unsubscribe(ctx, "restaurant:r9:staff"))
}

func TestMemorySecondSubscribeIsNoop(t *testing.T) {
	b := NewMemory()
	ctx := context.Background()

	first, second := 0, 0
	require.NoError(t, b.Subscribe(ctx, "session:s1", func([]byte) { first++ }))
	require.NoError(t, b.Subscribe(ctx, "session:s1", func([]byte) { second++ }))
	require.NoError(t, b.Publish(ctx, "session:s1", []byte(`{}`)))
	require.Equal(t, 1, first)
	require.Zero(t, second)
}
