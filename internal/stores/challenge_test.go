package stores

import (
	"context"
	"crypto/sha256"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChallengeStore(t *testing.T) (*ChallengeStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewChallengeStore(rdb, ""), mr
}

func TestConsumeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	s, _ := newChallengeStore(t)
	hash := sha256.Sum256([]byte("secret"))

	require.NoError(t, s.Put(ctx, "c1", Challenge{UserID: "u1", SecretHash: hash}, time.Hour))

	uid, err := s.Consume(ctx, "c1", hash, 3)
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)

	_, err = s.Consume(ctx, "c1", hash, 3)
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestConsumeBurnsAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	s, mr := newChallengeStore(t)
	hash := sha256.Sum256([]byte("secret"))
	wrong := sha256.Sum256([]byte("wrong"))
	key := defaultChallengePrefix + "c2"

	require.NoError(t, s.Put(ctx, "c2", Challenge{UserID: "u2", SecretHash: hash}, time.Hour))

	_, err := s.Consume(ctx, "c2", wrong, 2)
	assert.ErrorIs(t, err, ErrChallengeSecretMismatch)
	assert.True(t, mr.Exists(key))
	assert.Equal(t, "1", mr.HGet(key, fieldAttempts))
	assert.Positive(t, mr.TTL(key), "a miss keeps the expiry")

	_, err = s.Consume(ctx, "c2", wrong, 2)
	assert.ErrorIs(t, err, ErrChallengeAttemptsExceeded)
	assert.False(t, mr.Exists(key))

	_, err = s.Consume(ctx, "c2", hash, 2)
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestChallengeExpires(t *testing.T) {
	ctx := context.Background()
	s, mr := newChallengeStore(t)
	hash := sha256.Sum256([]byte("secret"))

	require.NoError(t, s.Put(ctx, "c3", Challenge{UserID: "u3", SecretHash: hash}, time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := s.Consume(ctx, "c3", hash, 3)
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestPutReplacesAndDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := newChallengeStore(t)
	first := sha256.Sum256([]byte("first"))
	second := sha256.Sum256([]byte("second"))

	require.NoError(t, s.Put(ctx, "c4", Challenge{UserID: "u4", SecretHash: first}, time.Hour))
	require.NoError(t, s.Put(ctx, "c4", Challenge{UserID: "u4", SecretHash: second}, time.Hour))

	_, err := s.Consume(ctx, "c4", first, 5)
	assert.ErrorIs(t, err, ErrChallengeSecretMismatch)

	require.NoError(t, s.Delete(ctx, "c4"))
	require.NoError(t, s.Delete(ctx, "c4"))
	_, err = s.Consume(ctx, "c4", second, 5)
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestChallengeRedisDown(t *testing.T) {
	ctx := context.Background()
	s, mr := newChallengeStore(t)
	mr.Close()

	err := s.Put(ctx, "c5", Challenge{UserID: "u5"}, time.Minute)
	assert.ErrorIs(t, err, ErrChallengeRedisUnavailable)
	_, err = s.Consume(ctx, "c5", [32]byte{}, 1)
	assert.ErrorIs(t, err, ErrChallengeRedisUnavailable)
}
