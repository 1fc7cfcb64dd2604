package suggest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultRedisKeyPrefix = "boredapi:suggest"
	memberSep             = "\x00"
	rebuildBatch          = 500
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisSuggester keeps titles in a sorted set so several server processes
// share one suggestion structure. Members are "folded\x00title\x00id" with
// score 0 and are read back with ZRANGEBYLEX; a hash maps id to member for
// removal.
type RedisSuggester struct {
	client  *redis.Client
	zsetKey string
	hashKey string
}

// NewRedisSuggester connects to Redis and checks the connection.
func NewRedisSuggester(ctx context.Context, cfg RedisConfig) (*RedisSuggester, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisSuggesterFromClient(client, cfg.KeyPrefix), nil
}

func NewRedisSuggesterFromClient(client *redis.Client, keyPrefix string) *RedisSuggester {
	if keyPrefix == "" {
		keyPrefix = DefaultRedisKeyPrefix
	}
	return &RedisSuggester{
		client:  client,
		zsetKey: keyPrefix + ":titles",
		hashKey: keyPrefix + ":ids",
	}
}

func (s *RedisSuggester) Close() error {
	return s.client.Close()
}

func member(id, title string) string {
	return Fold(title) + memberSep + title + memberSep + id
}

func titleOf(m string) string {
	parts := strings.SplitN(m, memberSep, 3)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func (s *RedisSuggester) Add(ctx context.Context, id, title string) error {
	if Fold(title) == "" {
		return s.Remove(ctx, id)
	}
	next := member(id, title)

	old, err := s.client.HGet(ctx, s.hashKey, id).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to read suggestion: %w", err)
	}
	if old == next {
		return nil
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if old != "" {
			pipe.ZRem(ctx, s.zsetKey, old)
		}
		pipe.ZAdd(ctx, s.zsetKey, redis.Z{Score: 0, Member: next})
		pipe.HSet(ctx, s.hashKey, id, next)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to add suggestion: %w", err)
	}
	return nil
}

func (s *RedisSuggester) Remove(ctx context.Context, id string) error {
	old, err := s.client.HGet(ctx, s.hashKey, id).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read suggestion: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, s.zsetKey, old)
		pipe.HDel(ctx, s.hashKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove suggestion: %w", err)
	}
	return nil
}

func (s *RedisSuggester) Suggest(ctx context.Context, prefix string, size int) ([]string, error) {
	folded := Fold(prefix)
	out := make([]string, 0, max(size, 0))
	if folded == "" || size <= 0 {
		return out, nil
	}

	// valid UTF-8 never contains 0xff, so it bounds every member starting with folded
	rng := &redis.ZRangeBy{
		Min:   "[" + folded,
		Max:   "(" + folded + "\xff",
		Count: int64(size * 4),
	}
	seen := make(map[string]struct{})
	for {
		members, err := s.client.ZRangeByLex(ctx, s.zsetKey, rng).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to query suggestions: %w", err)
		}
		for _, m := range members {
			title := titleOf(m)
			if _, dup := seen[title]; dup || title == "" {
				continue
			}
			seen[title] = struct{}{}
			out = append(out, title)
			if len(out) >= size {
				return out, nil
			}
		}
		if int64(len(members)) < rng.Count {
			return out, nil
		}
		rng.Offset += rng.Count
	}
}

func (s *RedisSuggester) Rebuild(ctx context.Context, entries []Entry) error {
	if _, err := s.client.Del(ctx, s.zsetKey, s.hashKey).Result(); err != nil {
		return fmt.Errorf("failed to clear suggestions: %w", err)
	}

	for start := 0; start < len(entries); start += rebuildBatch {
		end := min(start+rebuildBatch, len(entries))
		_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, e := range entries[start:end] {
				if Fold(e.Title) == "" {
					continue
				}
				m := member(e.ID, e.Title)
				pipe.ZAdd(ctx, s.zsetKey, redis.Z{Score: 0, Member: m})
				pipe.HSet(ctx, s.hashKey, e.ID, m)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to rebuild suggestions: %w", err)
		}
	}
	return nil
}
