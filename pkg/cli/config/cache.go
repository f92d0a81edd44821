package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vulnapproval/pkg/domain/interfaces"
	"github.com/secmon-lab/vulnapproval/pkg/service/cache"
	"github.com/secmon-lab/vulnapproval/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Cache backends
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Cache holds CLI flags for the approval read cache
type Cache struct {
	backend       string
	ttl           time.Duration
	redisAddr     string
	redisPassword string
	redisDB       int64
}

func (c *Cache) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "cache-backend",
			Usage:       "Approval read cache (none, memory or redis)",
			Value:       CacheNone,
			Category:    "Cache",
			Sources:     cli.EnvVars("VULNAPPROVAL_CACHE_BACKEND"),
			Destination: &c.backend,
		},
		&cli.DurationFlag{
			Name:        "cache-ttl",
			Usage:       "Lifetime of a cached approval detail",
			Value:       time.Minute,
			Category:    "Cache",
			Sources:     cli.EnvVars("VULNAPPROVAL_CACHE_TTL"),
			Destination: &c.ttl,
		},
		&cli.StringFlag{
			Name:        "redis-addr",
			Usage:       "Redis address (host:port) for the redis cache",
			Category:    "Cache",
			Sources:     cli.EnvVars("VULNAPPROVAL_REDIS_ADDR"),
			Destination: &c.redisAddr,
		},
		&cli.StringFlag{
			Name:        "redis-password",
			Usage:       "Redis password",
			Category:    "Cache",
			Sources:     cli.EnvVars("VULNAPPROVAL_REDIS_PASSWORD"),
			Destination: &c.redisPassword,
		},
		&cli.Int64Flag{
			Name:        "redis-db",
			Usage:       "Redis database number",
			Category:    "Cache",
			Sources:     cli.EnvVars("VULNAPPROVAL_REDIS_DB"),
			Destination: &c.redisDB,
		},
	}
}

func (c Cache) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("backend", c.backend),
		slog.Duration("ttl", c.ttl),
		slog.String("redis_addr", c.redisAddr),
	)
}

// Configure returns the cache and a function releasing its resources
func (c *Cache) Configure(ctx context.Context) (interfaces.ApprovalCache, func(), error) {
	switch c.backend {
	case "", CacheNone:
		return cache.Nop{}, func() {}, nil

	case CacheMemory:
		logging.Default().Info("Using in-memory approval cache", "ttl", c.ttl)
		return cache.NewMemory(c.ttl), func() {}, nil

	case CacheRedis:
		if c.redisAddr == "" {
			return nil, nil, goerr.Wrap(ErrInvalidConfig, "redis-addr is required when using redis cache")
		}
		rc := cache.NewRedis(c.redisAddr, c.redisPassword, int(c.redisDB), c.ttl)
		if err := rc.Ping(ctx); err != nil {
			_ = rc.Close()
			return nil, nil, goerr.Wrap(err, "failed to connect redis cache", goerr.V("addr", c.redisAddr))
		}
		logging.Default().Info("Using redis approval cache", "addr", c.redisAddr, "ttl", c.ttl)
		return rc, func() {
			if err := rc.Close(); err != nil {
				logging.Default().Error("failed to close redis cache", "error", err.Error())
			}
		}, nil

	default:
		return nil, nil, goerr.Wrap(ErrInvalidConfig, "invalid cache backend", goerr.V(BackendKey, c.backend))
	}
}
