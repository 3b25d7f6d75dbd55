// Package claim keeps two concurrent analyzer passes from working on the
// same record. Claims expire after a TTL so a crashed pass cannot strand a
// record.
package claim

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultTTL bounds how long a claim survives its owner.
const DefaultTTL = 5 * time.Minute

const keyPrefix = "assist:claim:"

// Claimer hands out per-record claims.
type Claimer interface {
	// Claim reports whether the caller now owns record id.
	Claim(ctx context.Context, id int64) bool
	// Release gives up a claim taken with Claim.
	Release(ctx context.Context, id int64)
}

// Noop grants every claim. Used when no Redis is configured; the store's
// conditional update still keeps a record from being applied twice.
type Noop struct{}

func (Noop) Claim(context.Context, int64) bool { return true }
func (Noop) Release(context.Context, int64)    {}

// releaseScript deletes the key only if it still holds our owner token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Redis claims records with SET NX. Redis failures grant the claim and are
// logged.
type Redis struct {
	rdb    *redis.Client
	owner  string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedis returns a claimer whose claims carry owner as their value.
func NewRedis(rdb *redis.Client, owner string, ttl time.Duration, logger *zap.Logger) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{rdb: rdb, owner: owner, ttl: ttl, logger: logger}
}

// Dial parses a redis:// URL and returns a connected client.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func key(id int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, id)
}

// Claim implements Claimer.
func (r *Redis) Claim(ctx context.Context, id int64) bool {
	ok, err := r.rdb.SetNX(ctx, key(id), r.owner, r.ttl).Result()
	if err != nil {
		r.logger.Warn("claim check failed, processing anyway",
			zap.Int64("record_id", id),
			zap.Error(err),
		)
		return true
	}
	if !ok {
		r.logger.Info("record claimed by another pass", zap.Int64("record_id", id))
	}
	return ok
}

// Release implements Claimer.
func (r *Redis) Release(ctx context.Context, id int64) {
	if err := releaseScript.Run(ctx, r.rdb, []string{key(id)}, r.owner).Err(); err != nil && err != redis.Nil {
		r.logger.Warn("release claim", zap.Int64("record_id", id), zap.Error(err))
	}
}
