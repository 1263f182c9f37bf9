package stores

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultChallengePrefix = "evc:"

var (
	ErrChallengeNotFound         = errors.New("challenge not found")
	ErrChallengeSecretMismatch   = errors.New("challenge secret mismatch")
	ErrChallengeAttemptsExceeded = errors.New("challenge attempts exceeded")
	ErrChallengeRedisUnavailable = errors.New("challenge redis unavailable")
)

// Hash fields of a stored challenge.
const (
	fieldUserID   = "uid"
	fieldHash     = "hash"
	fieldAttempts = "attempts"
)

// consumeChallenge checks ARGV[1] against the stored hash. A match deletes
// the challenge and returns {uid, hash}. A miss bumps the attempt counter
// and deletes the challenge once it reaches ARGV[2].
var consumeChallenge = redis.NewScript(`
local stored = redis.call('HGET', KEYS[1], 'hash')
if not stored then
  return {err='not_found'}
end
if stored ~= ARGV[1] then
  local n = redis.call('HINCRBY', KEYS[1], 'attempts', 1)
  if n >= tonumber(ARGV[2]) then
    redis.call('DEL', KEYS[1])
    return {err='attempts_exceeded'}
  end
  return {err='secret_mismatch'}
end
local uid = redis.call('HGET', KEYS[1], 'uid')
redis.call('DEL', KEYS[1])
return {uid, stored}
`)

var scriptErrors = map[string]error{
	"not_found":         ErrChallengeNotFound,
	"attempts_exceeded": ErrChallengeAttemptsExceeded,
	"secret_mismatch":   ErrChallengeSecretMismatch,
}

// Challenge is a pending verification owned by UserID. Only the hash of the
// secret is stored.
type Challenge struct {
	UserID     string
	SecretHash [32]byte
}

// ChallengeStore keeps single-use challenges as Redis hashes with a TTL.
type ChallengeStore struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewChallengeStore(rdb redis.UniversalClient, prefix string) *ChallengeStore {
	if prefix == "" {
		prefix = defaultChallengePrefix
	}
	return &ChallengeStore{rdb: rdb, prefix: prefix}
}

func (s *ChallengeStore) key(id string) string { return s.prefix + id }

// Put stores c under id for ttl, replacing any previous challenge with the
// same id.
func (s *ChallengeStore) Put(ctx context.Context, id string, c Challenge, ttl time.Duration) error {
	if c.UserID == "" {
		return errors.New("challenge user id is empty")
	}
	key := s.key(id)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key, fieldUserID, c.UserID, fieldHash, string(c.SecretHash[:]), fieldAttempts, 0)
		p.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
	}
	return nil
}

// Consume returns the owning user id when secretHash matches and removes the
// challenge. Every mismatch counts toward maxAttempts.
func (s *ChallengeStore) Consume(ctx context.Context, id string, secretHash [32]byte, maxAttempts int) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	res, err := consumeChallenge.Run(ctx, s.rdb, []string{s.key(id)}, string(secretHash[:]), maxAttempts).StringSlice()
	if err != nil {
		if mapped, ok := scriptErrors[err.Error()]; ok {
			return "", mapped
		}
		return "", fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
	}
	if len(res) != 2 {
		return "", fmt.Errorf("%w: unexpected script reply", ErrChallengeRedisUnavailable)
	}

	// The script compares with plain string equality.
	if subtle.ConstantTimeCompare([]byte(res[1]), secretHash[:]) != 1 {
		return "", ErrChallengeSecretMismatch
	}
	return res[0], nil
}

// Delete drops a pending challenge. A missing challenge is not an error.
func (s *ChallengeStore) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
	}
	return nil
}
