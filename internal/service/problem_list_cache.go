package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/arena-go/internal/dto"
	"github.com/noah-isme/arena-go/internal/session"
)

const problemListCacheKey = "arena:problems:list"

// CachedProblemLister serves the ordered problem list from redis, falling back
// to the wrapped source on a miss. The list is shared by every session.
type CachedProblemLister struct {
	source session.ProblemLister
	cache  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedProblemLister wraps source; a nil redis client disables caching.
func NewCachedProblemLister(source session.ProblemLister, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) *CachedProblemLister {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedProblemLister{
		source: source,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("component", "problem_list_cache").Logger(),
	}
}

func (l *CachedProblemLister) ListProblems(ctx context.Context) ([]dto.ProblemResponse, error) {
	if l.cache != nil {
		if cached, err := l.cache.Get(ctx, problemListCacheKey).Result(); err == nil {
			var problems []dto.ProblemResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &problems); unmarshalErr == nil {
				l.logger.Debug().Int("count", len(problems)).Msg("problem list cache hit")
				return problems, nil
			}
		} else if err != redis.Nil {
			l.logger.Warn().Err(err).Msg("failed to read problem list cache")
		}
	}

	problems, err := l.source.ListProblems(ctx)
	if err != nil {
		return nil, err
	}

	if l.cache != nil {
		if payload, err := json.Marshal(problems); err == nil {
			if err := l.cache.Set(ctx, problemListCacheKey, payload, l.ttl).Err(); err != nil {
				l.logger.Warn().Err(err).Msg("failed to store problem list cache")
			}
		}
	}

	return problems, nil
}

// Invalidate drops the cached list.
func (l *CachedProblemLister) Invalidate(ctx context.Context) error {
	if l.cache == nil {
		return nil
	}
	return l.cache.Del(ctx, problemListCacheKey).Err()
}
