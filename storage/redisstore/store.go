// Package redisstore shares rate limit windows between instances through Redis.
package redisstore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/ratelimit"
)

const DefaultKeyPrefix = "academia:ratelimit:"

// hitScript increments the window counter and starts the window on the first hit.
// Returns {count, remaining ms}.
var hitScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

type Store struct {
	client redis.Scripter
	prefix string
}

var _ ratelimit.Store = (*Store)(nil)

func New(client redis.Scripter, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// NewClient connects to the configured Redis server and checks it answers.
func NewClient(ctx context.Context, conf core.RateLimitConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.RedisAddr,
		Password: conf.RedisPassword,
		DB:       conf.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

// Hit counts a call in Redis. Windows expire on their own, so there is nothing to sweep.
func (s *Store) Hit(ctx context.Context, key string, preset ratelimit.Preset, now time.Time) (ratelimit.Record, error) {
	window := preset.Window.Milliseconds()
	if window < 1 {
		window = 1
	}

	res, err := hitScript.Run(ctx, s.client, []string{s.prefix + key}, window).Int64Slice()
	if err != nil {
		return ratelimit.Record{}, errors.Wrap(err, "running hit script")
	}
	if len(res) != 2 {
		return ratelimit.Record{}, errors.Errorf("unexpected hit script result %v", res)
	}

	remaining := time.Duration(res[1]) * time.Millisecond
	return ratelimit.Record{
		Count:       int(res[0]),
		WindowStart: now.Add(remaining - preset.Window),
	}, nil
}
