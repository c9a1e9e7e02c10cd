package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryDeliversTypedPayload(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	msgs, err := q.Consume(ctx)
	require.NoError(t, err)

	want := Message{Type: TypeMonthlyRebuild, Rebuild: &RebuildJob{StudentID: "s1", Year: 2025, Month: 3}}
	require.NoError(t, q.Publish(ctx, want))

	select {
	case got := <-msgs:
		assert.Equal(t, want.Type, got.Type)
		require.NotNil(t, got.Rebuild)
		assert.Equal(t, *want.Rebuild, *got.Rebuild)
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}
}

func TestInMemoryPublishHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q := NewInMemory(0)
	err := q.Publish(ctx, Message{Type: TypeMonthlyRebuild})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMessageJSONRoundTrip(t *testing.T) {
	msg := Message{Type: TypeMonthlyRebuild, Rebuild: &RebuildJob{StudentID: "s1", Year: 2025, Month: 12}}
	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	var got Message
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, msg.Type, got.Type)
	require.NotNil(t, got.Rebuild)
	assert.Equal(t, *msg.Rebuild, *got.Rebuild)
}
