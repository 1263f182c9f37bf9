package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is the sliding lifetime of a cached session.
const DefaultTTL = 24 * time.Hour

// DefaultPrefix namespaces session keys.
const DefaultPrefix = "sess:"

var (
	// ErrNotFound is returned when the session key is absent or expired.
	ErrNotFound = errors.New("session not found")
	// ErrRedisUnavailable wraps transport failures talking to Redis.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrCorrupt is returned when a cached blob cannot be decoded.
	ErrCorrupt = errors.New("session corrupt")
)

// Store is the Redis-backed session cache. It holds no in-process state and
// is safe for concurrent use.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewStore creates a session [Store] backed by the given Redis client.
// An empty prefix or non-positive ttl selects the defaults.
func NewStore(redis redis.UniversalClient, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		redis:  redis,
		prefix: prefix,
		ttl:    ttl,
	}
}

// TTL reports the lifetime applied by Put and Extend.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

func (s *Store) key(sessionID string) string {
	return s.prefix + sessionID
}

// Put writes the descriptor under its session id with the store TTL.
func (s *Store) Put(ctx context.Context, sess *Session) error {
	if sess == nil || sess.SessionID == "" {
		return errors.New("session id is required")
	}
	data, err := Encode(sess)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(sess.SessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get returns the cached descriptor. A miss is ErrNotFound; a transport
// failure is ErrRedisUnavailable so callers can fail closed distinctly.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	sess.SessionID = sessionID
	return sess, nil
}

// GetMany returns the descriptors that are still cached, in input order.
// Missing or undecodable entries are skipped.
func (s *Store) GetMany(ctx context.Context, sessionIDs []string) ([]*Session, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}
	keys := make([]string, len(sessionIDs))
	for i, id := range sessionIDs {
		keys[i] = s.key(id)
	}

	values, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	out := make([]*Session, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		sess, err := Decode([]byte(raw))
		if err != nil {
			continue
		}
		sess.SessionID = sessionIDs[i]
		out = append(out, sess)
	}
	return out, nil
}

// Extend resets the TTL of a cached session. It reports false when the key
// no longer exists.
func (s *Store) Extend(ctx context.Context, sessionID string) (bool, error) {
	ok, err := s.redis.Expire(ctx, s.key(sessionID), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ok, nil
}

// Delete removes one session. Deleting an absent session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// DeleteMany issues one independent DEL per id in a single pipeline round
// trip. It returns how many keys were removed and the joined per-key errors;
// a failure on one key does not stop the others.
func (s *Store) DeleteMany(ctx context.Context, sessionIDs []string) (int, error) {
	if len(sessionIDs) == 0 {
		return 0, nil
	}

	cmds, pipeErr := s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range sessionIDs {
			pipe.Del(ctx, s.key(id))
		}
		return nil
	})

	var (
		removed int
		errs    []error
	)
	for i, cmd := range cmds {
		n, err := cmd.(*redis.IntCmd).Result()
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: delete %s: %v", ErrRedisUnavailable, sessionIDs[i], err))
			continue
		}
		removed += int(n)
	}
	if len(cmds) == 0 && pipeErr != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrRedisUnavailable, pipeErr))
	}
	return removed, errors.Join(errs...)
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
