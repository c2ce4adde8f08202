package history

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisTimeout = 2 * time.Second

// redisKey returns the Redis key for a room's history list.
func redisKey(room string) string {
	return "room:" + room + ":history"
}

// Redis persists room history in Redis using a list per room, so history
// survives process restarts when a Redis address is configured.
type Redis struct {
	client redis.Cmdable
	limit  int64
}

// NewRedis creates a Redis-backed store retaining up to limit lines per room.
func NewRedis(client redis.Cmdable, limit int) *Redis {
	return &Redis{
		client: client,
		limit:  int64(limit),
	}
}

// Append pushes a line onto the room's list and trims it to the limit.
func (s *Redis) Append(room, line string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	key := redisKey(room)
	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, line)
	pipe.LTrim(ctx, key, -s.limit, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("redis: failed to append history: %v", err)
	}
}

// List returns the room's history, oldest first.
func (s *Redis) List(room string) []string {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	lines, err := s.client.LRange(ctx, redisKey(room), 0, -1).Result()
	if err != nil {
		log.Printf("redis: failed to read history: %v", err)
		return []string{}
	}
	if lines == nil {
		return []string{}
	}
	return lines
}

// Len returns the number of stored lines for a room.
func (s *Redis) Len(room string) int {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	n, err := s.client.LLen(ctx, redisKey(room)).Result()
	if err != nil {
		log.Printf("redis: failed to count history: %v", err)
		return 0
	}
	return int(n)
}
