package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-records-api/internal/dto"
	"github.com/noah-isme/school-records-api/internal/repository"
)

func newRedisCache(t *testing.T) (StudentResultsCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStudentResultsCache(client, time.Minute, testLogger()), mr
}

func TestStudentResultsCacheRoundTrip(t *testing.T) {
	cache, mr := newRedisCache(t)
	ctx := context.Background()

	_, ok := cache.Get(ctx, "S-1")
	require.False(t, ok)

	grade := "5-A"
	value := dto.StudentResultsResponse{ID: "S-1", FullName: "Ali", GradeName: &grade, StudyYearName: "2024-2025"}
	cache.Set(ctx, "S-1", value)
	require.True(t, mr.Exists(studentCachePrefix+"S-1"))
	require.Equal(t, time.Minute, mr.TTL(studentCachePrefix+"S-1"))

	cached, ok := cache.Get(ctx, "S-1")
	require.True(t, ok)
	require.Equal(t, value, cached)

	cache.Invalidate(ctx, "S-1", "S-2")
	_, ok = cache.Get(ctx, "S-1")
	require.False(t, ok)
}

func TestStudentResultsCacheInvalidateAllKeepsForeignKeys(t *testing.T) {
	cache, mr := newRedisCache(t)
	ctx := context.Background()

	for _, id := range []string{"S-1", "S-2", "S-3"} {
		cache.Set(ctx, id, dto.StudentResultsResponse{ID: id})
	}
	require.NoError(t, mr.Set("session:abc", "keep"))

	cache.InvalidateAll(ctx)

	require.Equal(t, []string{"session:abc"}, mr.Keys())
}

func TestStudentResultsCacheDiscardsCorruptEntries(t *testing.T) {
	cache, mr := newRedisCache(t)
	require.NoError(t, mr.Set(studentCachePrefix+"S-1", "{not json"))

	_, ok := cache.Get(context.Background(), "S-1")
	require.False(t, ok)
}

func TestStudentResultsServedFromCache(t *testing.T) {
	db := newTestDB(t)
	s := seedSchool(t, db)
	cache, _ := newRedisCache(t)

	svc := newServices(db, 0)
	students := NewStudentService(StudentDependencies{
		Students:    repository.NewStudentRepository(db),
		Marks:       repository.NewMarkRepository(db),
		Monitorings: repository.NewMonitoringRepository(db),
		Cache:       cache,
	}, testLogger())

	first, err := students.Results(context.Background(), "S-1")
	require.NoError(t, err)
	require.Empty(t, first.Quarters)

	mark := 5.0
	_, err = svc.marks.Create(context.Background(), dto.MarkCreateRequest{StudentID: "S-1", SubjectID: s.math.ID, QuarterID: s.q1.ID, Score: &mark})
	require.NoError(t, err)

	// svc.marks invalidates its own recording cache, not Redis.
	stale, err := students.Results(context.Background(), "S-1")
	require.NoError(t, err)
	require.Empty(t, stale.Quarters)

	cache.Invalidate(context.Background(), "S-1")
	fresh, err := students.Results(context.Background(), "S-1")
	require.NoError(t, err)
	require.Len(t, fresh.Quarters, 1)
}

func TestNilRedisClientFallsBackToNoop(t *testing.T) {
	cache := NewStudentResultsCache(nil, 0, testLogger())
	cache.Set(context.Background(), "S-1", dto.StudentResultsResponse{ID: "S-1"})
	_, ok := cache.Get(context.Background(), "S-1")
	require.False(t, ok)
}
