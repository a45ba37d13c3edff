package pubsub

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"cafeplease/internal/model"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingHub struct {
	mu       sync.Mutex
	channels []string
	messages []map[string]interface{}
}

func (h *recordingHub) Publish(channel string, message map[string]interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.channels = append(h.channels, channel)
	h.messages = append(h.messages, message)
}

func TestBus_LocalOnly(t *testing.T) {
	hub := &recordingHub{}
	bus := New(nil, zap.NewNop())
	bus.SetWSHub(hub)

	require.NoError(t, bus.PublishTeam(model.TeamAmigo, map[string]interface{}{"type": "request.created"}))
	require.NoError(t, bus.PublishUser("u1", map[string]interface{}{"type": "request.created"}))
	require.NoError(t, bus.PublishManagers(map[string]interface{}{"type": "request.created"}))

	assert.Equal(t, []string{"team:AMIGO", "user:u1", "managers"}, hub.channels)
	assert.Equal(t, "team:AMIGO", hub.messages[0]["channel"])
	assert.Nil(t, bus.GetStreams())
}

func TestBus_StreamsReplay(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6380"
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	channel := "test:" + time.Now().Format("150405.000000")
	defer rdb.Del(ctx, "stream:"+channel, "seq:"+channel)

	bus := New(rdb, zap.NewNop())
	for i := 0; i < 3; i++ {
		require.NoError(t, bus.Publish(channel, map[string]interface{}{"type": "tick", "n": i}))
	}

	events, err := bus.GetStreams().ReplayEvents(channel, 1, 100)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(2), events[0].Sequence)
	assert.Equal(t, float64(2), events[1].Event["n"])

	require.NoError(t, bus.GetStreams().AcknowledgeSequence(channel, "conn", 3))
	last, err := rdb.Get(ctx, "ack:"+channel+":conn").Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(3), last)
	rdb.Del(ctx, "ack:"+channel+":conn")
}
