package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/school-records-api/internal/dto"
	"github.com/noah-isme/school-records-api/internal/observability"
)

const studentCachePrefix = "records:student-results:"

// StudentResultsCache keeps the public per-student view warm. Writers that
// change marks, monitoring or rosters invalidate the affected entries.
type StudentResultsCache interface {
	Get(ctx context.Context, studentID string) (dto.StudentResultsResponse, bool)
	Set(ctx context.Context, studentID string, value dto.StudentResultsResponse)
	Invalidate(ctx context.Context, studentIDs ...string)
	InvalidateAll(ctx context.Context)
}

type redisStudentResultsCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewStudentResultsCache returns a Redis backed cache, or a no-op cache when
// client is nil.
func NewStudentResultsCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) StudentResultsCache {
	if client == nil {
		return noopStudentResultsCache{}
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &redisStudentResultsCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "student_results_cache").Logger(),
	}
}

func (c *redisStudentResultsCache) Get(ctx context.Context, studentID string) (dto.StudentResultsResponse, bool) {
	raw, err := c.client.Get(ctx, studentCachePrefix+studentID).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Msg("failed to read student results cache")
		}
		observability.StudentCacheLookups().WithLabelValues("miss").Inc()
		return dto.StudentResultsResponse{}, false
	}

	var value dto.StudentResultsResponse
	if err := json.Unmarshal(raw, &value); err != nil {
		c.logger.Warn().Err(err).Str("student_id", studentID).Msg("discarding corrupt cache entry")
		observability.StudentCacheLookups().WithLabelValues("miss").Inc()
		return dto.StudentResultsResponse{}, false
	}

	observability.StudentCacheLookups().WithLabelValues("hit").Inc()
	return value, true
}

func (c *redisStudentResultsCache) Set(ctx context.Context, studentID string, value dto.StudentResultsResponse) {
	payload, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to encode student results")
		return
	}
	if err := c.client.Set(ctx, studentCachePrefix+studentID, payload, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to store student results cache")
	}
}

func (c *redisStudentResultsCache) Invalidate(ctx context.Context, studentIDs ...string) {
	if len(studentIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(studentIDs))
	for _, id := range studentIDs {
		keys = append(keys, studentCachePrefix+id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn().Err(err).Int("keys", len(keys)).Msg("failed to invalidate student results cache")
	}
}

func (c *redisStudentResultsCache) InvalidateAll(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, studentCachePrefix+"*", 500).Iterator()
	batch := make([]string, 0, 500)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			c.logger.Warn().Err(err).Msg("failed to flush student results cache")
		}
		batch = batch[:0]
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			flush()
		}
	}
	flush()

	if err := iter.Err(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to scan student results cache")
	}
}

type noopStudentResultsCache struct{}

func (noopStudentResultsCache) Get(context.Context, string) (dto.StudentResultsResponse, bool) {
	return dto.StudentResultsResponse{}, false
}

func (noopStudentResultsCache) Set(context.Context, string, dto.StudentResultsResponse) {}

func (noopStudentResultsCache) Invalidate(context.Context, ...string) {}

func (noopStudentResultsCache) InvalidateAll(context.Context) {}
