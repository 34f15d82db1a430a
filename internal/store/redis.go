package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/devaloi/chatrooms/internal/domain"
)

const redisOpTimeout = 5 * time.Second

// RedisStore implements Store with one capped Redis list per room.
// The newest message sits at the head of the list.
type RedisStore struct {
	rdb    *redis.Client
	maxLen int
}

// NewRedis connects to Redis at addr. Each room keeps at most maxLen messages.
func NewRedis(addr string, maxLen int) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, errors.Wrapf(err, "ping redis at %s", addr)
	}
	return NewRedisFromClient(rdb, maxLen), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(rdb *redis.Client, maxLen int) *RedisStore {
	if maxLen <= 0 {
		maxLen = 50
	}
	return &RedisStore{rdb: rdb, maxLen: maxLen}
}

func roomKey(roomID string) string {
	return "chatrooms:room:" + roomID + ":messages"
}

// Save pushes a message and trims the room list to its cap.
func (s *RedisStore) Save(roomID string, msg domain.Message) error {
	if msg.SentAt == nil {
		now := time.Now().UTC()
		msg.SentAt = &now
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal message")
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	key := roomKey(roomID)
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, key, data)
		p.LTrim(ctx, key, 0, int64(s.maxLen-1))
		return nil
	})
	return errors.Wrap(err, "push message")
}

// History returns the last `limit` messages for a room, oldest first.
func (s *RedisStore) History(roomID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		return []domain.Message{}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	raw, err := s.rdb.LRange(ctx, roomKey(roomID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "range messages")
	}

	msgs := make([]domain.Message, 0, len(raw))
	for _, item := range raw {
		m, err := domain.DecodeMessage([]byte(item))
		if err != nil {
			return nil, errors.Wrap(err, "decode stored message")
		}
		msgs = append(msgs, m)
	}
	reverse(msgs)
	return msgs, nil
}

// Purge deletes the room list.
func (s *RedisStore) Purge(roomID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	return errors.Wrap(s.rdb.Del(ctx, roomKey(roomID)).Err(), "delete room list")
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
