package store

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T, maxLen int) *RedisStore {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	s, err := NewRedis(addr, maxLen)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRedisSaveHistoryPurge(t *testing.T) {
	s := newRedisStore(t, 3)
	room := uuid.NewString()
	t.Cleanup(func() { _ = s.Purge(room) })

	now := time.Now().UTC()
	for i, text := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.Save(room, chat("alice", text, now.Add(time.Duration(i)*time.Second))))
	}

	history, err := s.History(room, 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Equal(t, "b", history[0].Message)
	require.Equal(t, "d", history[2].Message)

	history, err = s.History(room, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "c", history[0].Message)

	require.NoError(t, s.Purge(room))
	history, err = s.History(room, 10)
	require.NoError(t, err)
	require.Empty(t, history)
}
