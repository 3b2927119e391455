package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps every failure to reach or use the backing store.
var ErrUnavailable = errors.New("session store unavailable")

// ErrNotFound is returned when a key is absent or expired.
var ErrNotFound = errors.New("session entry not found")

// DefaultOperationTimeout bounds each store call when no timeout is configured.
const DefaultOperationTimeout = 3 * time.Second

// takeScript reads a key together with its remaining TTL and deletes it in one
// step, so a value can be consumed exactly once.
const takeScript = `
local value = redis.call("GET", KEYS[1])
if not value then
  return false
end
local ttl = redis.call("PTTL", KEYS[1])
redis.call("DEL", KEYS[1])
return {value, ttl}
`

var takeLua = redis.NewScript(takeScript)

// Store is a Redis-backed expiring key-value adapter.
//
// Every call runs under the configured operation timeout, which go-redis only
// applies to socket I/O when the client sets ContextTimeoutEnabled. Reads follow the
// caller's cancellation; writes and deletes are detached from it so an aborted
// request cannot leave a partially written token pair behind.
type Store struct {
	redis   redis.UniversalClient
	timeout time.Duration
}

// NewStore creates a [Store] backed by the given Redis client. A non-positive
// timeout selects [DefaultOperationTimeout].
func NewStore(client redis.UniversalClient, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = DefaultOperationTimeout
	}
	return &Store{
		redis:   client,
		timeout: timeout,
	}
}

func (s *Store) readContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
}

// Set writes value under key, overwriting any previous value and restarting
// the TTL.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	ctx, cancel := s.writeContext(ctx)
	defer cancel()

	if err := s.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// SetAll writes every entry inside one MULTI/EXEC transaction. Either all
// entries are stored or the call fails.
func (s *Store) SetAll(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if e.TTL <= 0 {
			return fmt.Errorf("ttl must be positive for key %q", e.Key)
		}
	}

	ctx, cancel := s.writeContext(ctx)
	defer cancel()

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range entries {
			pipe.Set(ctx, e.Key, e.Value, e.TTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get returns the value stored under key, or [ErrNotFound].
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.readContext(ctx)
	defer cancel()

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return data, nil
}

// Exists reports whether key is currently stored.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := s.readContext(ctx)
	defer cancel()

	n, err := s.redis.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.writeContext(ctx)
	defer cancel()

	if err := s.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Take atomically reads and deletes key, returning the value and the TTL it
// had left. Of any number of concurrent Take calls on the same key exactly one
// observes the value; the rest get [ErrNotFound].
//
//	Performance: 1 Redis round-trip (EVALSHA).
func (s *Store) Take(ctx context.Context, key string) ([]byte, time.Duration, error) {
	ctx, cancel := s.writeContext(ctx)
	defer cancel()

	res, err := takeLua.Run(ctx, s.redis, []string{key}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	values, ok := res.([]interface{})
	if !ok || len(values) != 2 {
		return nil, 0, fmt.Errorf("%w: unexpected take reply %T", ErrUnavailable, res)
	}

	var data []byte
	switch v := values[0].(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return nil, 0, fmt.Errorf("%w: unexpected take value %T", ErrUnavailable, values[0])
	}

	ttlMillis, _ := values[1].(int64)
	var ttl time.Duration
	if ttlMillis > 0 {
		ttl = time.Duration(ttlMillis) * time.Millisecond
	}

	return data, ttl, nil
}

// Ping checks connectivity to the backing store.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.readContext(ctx)
	defer cancel()

	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
