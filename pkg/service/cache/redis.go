package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
	"github.com/secmon-lab/vulnapproval/pkg/domain/interfaces"
	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
)

const (
	redisKeyPrefix    = "vulnapproval:approval:"
	redisGenKeyPrefix = "vulnapproval:approval-gen:"

	// outlives any reader holding a generation
	redisGenTTL = 24 * time.Hour
)

// putIfCurrent sets KEYS[2] only while the generation in KEYS[1] equals ARGV[1].
// ARGV[3] is the TTL in milliseconds, 0 for none.
var putIfCurrent = redis.NewScript(`
if (redis.call('GET', KEYS[1]) or '0') ~= ARGV[1] then
	return 0
end
if ARGV[3] == '0' then
	redis.call('SET', KEYS[2], ARGV[2])
else
	redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
end
return 1
`)

// Redis is an approval detail cache shared by every server instance
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

var _ interfaces.ApprovalCache = &Redis{}

func NewRedis(addr, password string, db int, ttl time.Duration) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Redis{client: client, ttl: ttl}
}

// Ping checks the server is reachable
func (c *Redis) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return goerr.Wrap(err, "failed to ping redis")
	}
	return nil
}

func (c *Redis) Close() error {
	return c.client.Close()
}

func redisKey(id model.ApprovalID) string {
	return redisKeyPrefix + string(id)
}

func redisGenKey(id model.ApprovalID) string {
	return redisGenKeyPrefix + string(id)
}

func (c *Redis) Get(ctx context.Context, id model.ApprovalID) (*model.ApprovalDetail, error) {
	raw, err := c.client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get cached approval", goerr.V(model.ApprovalIDKey, id))
	}

	var detail model.ApprovalDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		return nil, goerr.Wrap(err, "failed to decode cached approval", goerr.V(model.ApprovalIDKey, id))
	}
	return &detail, nil
}

func (c *Redis) Generation(ctx context.Context, id model.ApprovalID) (uint64, error) {
	gen, err := c.client.Get(ctx, redisGenKey(id)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, goerr.Wrap(err, "failed to get cache generation", goerr.V(model.ApprovalIDKey, id))
	}
	return gen, nil
}

func (c *Redis) Put(ctx context.Context, detail *model.ApprovalDetail, gen uint64) error {
	id := detail.Approval.ID
	raw, err := json.Marshal(detail)
	if err != nil {
		return goerr.Wrap(err, "failed to encode approval", goerr.V(model.ApprovalIDKey, id))
	}

	keys := []string{redisGenKey(id), redisKey(id)}
	args := []any{strconv.FormatUint(gen, 10), raw, c.ttl.Milliseconds()}
	if err := putIfCurrent.Run(ctx, c.client, keys, args...).Err(); err != nil {
		return goerr.Wrap(err, "failed to cache approval", goerr.V(model.ApprovalIDKey, id))
	}
	return nil
}

func (c *Redis) Invalidate(ctx context.Context, ids ...model.ApprovalID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Incr(ctx, redisGenKey(id))
			pipe.PExpire(ctx, redisGenKey(id), redisGenTTL)
			pipe.Del(ctx, redisKey(id))
		}
		return nil
	})
	if err != nil {
		return goerr.Wrap(err, "failed to invalidate cached approvals", goerr.V("approval_ids", ids))
	}
	return nil
}
