package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func setupRepository(t *testing.T, now time.Time) (*miniredis.Miniredis, *IdempotencyRepository) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewIdempotencyRepository(client, WithClock(func() time.Time { return now }))
}

func TestIdempotencyRepository_CreateGetAndMarkDone(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mr, repo := setupRepository(t, now)

	created, err := repo.CreateProcessing("key-1", "hash-1", now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.IdempotencyStatusProcessing, created.Status)
	assert.Equal(t, time.Hour, mr.TTL(defaultPrefix+"key-1"))

	require.NoError(t, repo.MarkDone("key-1", []byte(`{"data":{"id":"o-1"}}`), 201))

	got, err := repo.Get("key-1")
	require.NoError(t, err)
	assert.Equal(t, domain.IdempotencyStatusDone, got.Status)
	assert.Equal(t, 201, got.HTTPStatus)
	assert.JSONEq(t, `{"data":{"id":"o-1"}}`, string(got.ResponseBody))
	assert.True(t, got.TTLAt.Equal(now.Add(time.Hour)))
	assert.Equal(t, time.Hour, mr.TTL(defaultPrefix+"key-1"), "finish keeps the original ttl")
}

func TestIdempotencyRepository_ConflictAndHashMismatch(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	_, repo := setupRepository(t, now)

	_, err := repo.CreateProcessing("key-1", "hash-a", time.Time{})
	require.NoError(t, err)

	existing, err := repo.CreateProcessing("key-1", "hash-a", time.Time{})
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyAlreadyExists)
	assert.Equal(t, domain.IdempotencyStatusProcessing, existing.Status)

	_, err = repo.CreateProcessing("key-1", "hash-b", time.Time{})
	require.ErrorIs(t, err, domain.ErrIdempotencyHashMismatch)
	assert.True(t, domain.IsIdempotencyConflict(err))
}

func TestIdempotencyRepository_ExpiredKeyIsReusable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mr, repo := setupRepository(t, now)

	_, err := repo.CreateProcessing("key-1", "hash-a", now.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, repo.MarkFailed("key-1", []byte(`{"message":"boom"}`), 500))

	mr.FastForward(2 * time.Minute)

	_, err = repo.Get("key-1")
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)
	_, err = repo.CreateProcessing("key-1", "hash-b", now.Add(time.Minute))
	require.NoError(t, err)

	removed, err := repo.DeleteExpired(now, 10)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestIdempotencyRepository_Validation(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	_, repo := setupRepository(t, now)

	_, err := repo.CreateProcessing(" ", "hash", time.Time{})
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyRequired)
	_, err = repo.CreateProcessing("key", "", time.Time{})
	require.ErrorIs(t, err, domain.ErrIdempotencyRequestHashRequired)
	_, err = repo.CreateProcessing("key", "hash", now.Add(-time.Second))
	require.ErrorIs(t, err, domain.ErrValidation)

	require.ErrorIs(t, repo.MarkDone("missing", nil, 200), domain.ErrIdempotencyKeyNotFound)
	require.NoError(t, repo.Ping(context.Background()))
}

func TestIdempotencyRepository_PrefixIsolatesKeys(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	first := NewIdempotencyRepository(client, WithPrefix("a:"), WithClock(func() time.Time { return now }))
	second := NewIdempotencyRepository(client, WithPrefix("b:"), WithClock(func() time.Time { return now }))

	_, err := first.CreateProcessing("key", "hash-1", time.Time{})
	require.NoError(t, err)
	_, err = second.CreateProcessing("key", "hash-2", time.Time{})
	require.NoError(t, err)
	assert.True(t, mr.Exists("a:key"))
	assert.True(t, mr.Exists("b:key"))
}
