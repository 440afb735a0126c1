package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/CMZCoder/CommerzioS-sub000/internal/database"
	"github.com/CMZCoder/CommerzioS-sub000/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix   = "session:"
	claimKeyPrefix     = "claim:"
	rateLimitKeyPrefix = "ratelimit:"
)

// RedisSessions stores sessions, idempotency claims and rate-limit counters
// in redis so multiple API instances share them.
type RedisSessions struct {
	client     *redis.Client
	sessionTTL time.Duration
}

func NewRedisSessions(client *redis.Client, sessionTTL time.Duration) *RedisSessions {
	if sessionTTL <= 0 {
		sessionTTL = time.Duration(models.DefaultSessionTTL) * time.Second
	}
	return &RedisSessions{client: client, sessionTTL: sessionTTL}
}

func (r *RedisSessions) GetSession(ctx context.Context, token string) (*models.Session, error) {
	raw, err := r.client.Get(ctx, sessionKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

func (r *RedisSessions) SetSession(ctx context.Context, session *models.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKeyPrefix+session.Token, raw, r.sessionTTL).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

func (r *RedisSessions) DeleteSession(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, sessionKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ClaimOnce marks an idempotency key with SETNX. False means another caller
// already claimed it.
func (r *RedisSessions) ClaimOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, claimKeyPrefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim key: %w", err)
	}
	return ok, nil
}

// ReleaseClaim drops a claimed key so the next delivery can claim it again.
func (r *RedisSessions) ReleaseClaim(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, claimKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("release claim: %w", err)
	}
	return nil
}

// CheckRateLimit counts requests per key in a fixed window. True means the
// request is allowed.
func (r *RedisSessions) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	redisKey := rateLimitKeyPrefix + key

	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("increment rate limit: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return false, fmt.Errorf("expire rate limit: %w", err)
		}
	}
	return count <= int64(limit), nil
}

func (r *RedisSessions) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
