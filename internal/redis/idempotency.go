package redisclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrInFlight means another request holding the same key has not finished.
	ErrInFlight = errors.New("idempotency key in flight")
	// ErrInvalidKey rejects empty or oversized keys.
	ErrInvalidKey = errors.New("invalid idempotency key")
)

const (
	keyPrefix     = "idem:appointments:"
	pendingPrefix = "pending:"
	maxKeyLength  = 255
)

// Reservation is the outcome of Reserve. When Replay is set, the key was
// already used and AppointmentID holds the id allocated the first time.
type Reservation struct {
	Key           string
	AppointmentID string
	Replay        bool

	token string
}

// IdempotencyStore remembers which appointment an Idempotency-Key created.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

// Reserve claims key for a new request. A key that already maps to an
// appointment comes back as a replay; a key still held by a running request
// returns ErrInFlight.
func (s *IdempotencyStore) Reserve(ctx context.Context, key string) (Reservation, error) {
	key = strings.TrimSpace(key)
	if key == "" || len(key) > maxKeyLength {
		return Reservation{}, ErrInvalidKey
	}
	token := pendingPrefix + uuid.NewString()
	redisKey := keyPrefix + key

	ok, err := s.client.SetNX(ctx, redisKey, token, s.ttl).Result()
	if err != nil {
		return Reservation{}, fmt.Errorf("reserve idempotency key: %w", err)
	}
	if ok {
		return Reservation{Key: key, token: token}, nil
	}

	val, err := s.client.Get(ctx, redisKey).Result()
	if errors.Is(err, redis.Nil) {
		// Expired or released between the two calls.
		return s.Reserve(ctx, key)
	}
	if err != nil {
		return Reservation{}, fmt.Errorf("read idempotency key: %w", err)
	}
	if strings.HasPrefix(val, pendingPrefix) {
		return Reservation{}, ErrInFlight
	}
	return Reservation{Key: key, AppointmentID: val, Replay: true}, nil
}

// Complete binds the reserved key to the created appointment.
func (s *IdempotencyStore) Complete(ctx context.Context, r Reservation, appointmentID string) error {
	if r.Replay {
		return nil
	}
	_, err := completeScript.Run(ctx, s.client, []string{keyPrefix + r.Key}, r.token, appointmentID, s.ttl.Milliseconds()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

// Release drops a reservation whose request failed so the client can retry
// with the same key.
func (s *IdempotencyStore) Release(ctx context.Context, r Reservation) error {
	if r.Replay {
		return nil
	}
	_, err := releaseScript.Run(ctx, s.client, []string{keyPrefix + r.Key}, r.token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

var completeScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
else
  return 0
end
`)

var releaseScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)
