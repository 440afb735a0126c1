package repository

import (
	"context"
	"errors"
	"time"

	"github.com/CMZCoder/CommerzioS-sub000/internal/database"
	"github.com/CMZCoder/CommerzioS-sub000/internal/models"

	"github.com/rs/zerolog"
)

// FailoverSessions prefers redis and falls back to the in-memory store when
// redis errors. Sessions created during an outage live only in memory; they
// are lost on restart, which just forces a re-login.
type FailoverSessions struct {
	primary  *RedisSessions
	fallback *MemorySessions
	logger   *zerolog.Logger
}

func NewFailoverSessions(primary *RedisSessions, fallback *MemorySessions, logger *zerolog.Logger) *FailoverSessions {
	return &FailoverSessions{primary: primary, fallback: fallback, logger: logger}
}

func (f *FailoverSessions) GetSession(ctx context.Context, token string) (*models.Session, error) {
	session, err := f.primary.GetSession(ctx, token)
	if err == nil || errors.Is(err, database.ErrNotFound) {
		if errors.Is(err, database.ErrNotFound) {
			// The session may have been written during a redis outage.
			return f.fallback.GetSession(ctx, token)
		}
		return session, err
	}

	f.logger.Warn().Err(err).Msg("redis get session failed, using memory fallback")
	return f.fallback.GetSession(ctx, token)
}

func (f *FailoverSessions) SetSession(ctx context.Context, session *models.Session) error {
	if err := f.primary.SetSession(ctx, session); err != nil {
		f.logger.Warn().Err(err).Msg("redis set session failed, using memory fallback")
		return f.fallback.SetSession(ctx, session)
	}
	return nil
}

func (f *FailoverSessions) DeleteSession(ctx context.Context, token string) error {
	_ = f.fallback.DeleteSession(ctx, token)
	if err := f.primary.DeleteSession(ctx, token); err != nil {
		f.logger.Warn().Err(err).Msg("redis delete session failed")
	}
	return nil
}

// ClaimOnce does not fail over: an idempotency decision taken on a store the
// other instances cannot see would let a duplicate through. The caller treats
// the error as "retry later".
func (f *FailoverSessions) ClaimOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return f.primary.ClaimOnce(ctx, key, ttl)
}

// ReleaseClaim follows ClaimOnce: primary only.
func (f *FailoverSessions) ReleaseClaim(ctx context.Context, key string) error {
	return f.primary.ReleaseClaim(ctx, key)
}

func (f *FailoverSessions) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	allowed, err := f.primary.CheckRateLimit(ctx, key, limit, window)
	if err != nil {
		f.logger.Warn().Err(err).Msg("redis rate limit failed, using memory fallback")
		return f.fallback.CheckRateLimit(ctx, key, limit, window)
	}
	return allowed, nil
}
