package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/andresuchdata/cloudmigrate/internal/config"
	"github.com/andresuchdata/cloudmigrate/internal/namer"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const nameLeaseKeyPrefix = "cloudmigrate:name"

// redisNameLease serializes name claims across processes that download into a
// shared directory. A name is granted only when both the Redis lease and the
// local claim succeed.
type redisNameLease struct {
	client *redis.Client
	ttl    time.Duration
	local  namer.Claimer
}

// NewNameClaimer returns local unchanged when the cache is disabled, otherwise a
// Claimer that takes a Redis SETNX lease before delegating to local.
func NewNameClaimer(cfg config.CacheConfig, local namer.Claimer) (namer.Claimer, error) {
	if !cfg.Enabled {
		return local, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return newRedisNameLease(client, ttl, local), nil
}

func newRedisNameLease(client *redis.Client, ttl time.Duration, local namer.Claimer) *redisNameLease {
	return &redisNameLease{client: client, ttl: ttl, local: local}
}

func (l *redisNameLease) Claim(ctx context.Context, path string) (bool, error) {
	key := buildNameLeaseKey(path)

	ok, err := l.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	if !ok {
		return false, nil
	}

	claimed, err := l.local.Claim(ctx, path)
	if err != nil || !claimed {
		if delErr := l.client.Del(ctx, key).Err(); delErr != nil {
			log.Warn().Err(delErr).Str("path", path).Msg("name lease: release after local refusal failed")
		}
		return false, err
	}
	return true, nil
}

func (l *redisNameLease) Release(ctx context.Context, path string) error {
	if err := l.local.Release(ctx, path); err != nil {
		return err
	}
	if err := l.client.Del(ctx, buildNameLeaseKey(path)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func buildNameLeaseKey(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return fmt.Sprintf("%s:%s", nameLeaseKeyPrefix, filepath.ToSlash(abs))
}
