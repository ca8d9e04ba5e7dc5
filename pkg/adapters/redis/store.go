package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aretw0/forge/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// SessionStore implements ports.SessionStore using Redis.
// Sessions are JSON values with a native TTL; a ZSET scored by creation time
// indexes them so the periodic reaper can prune without scanning keys.
type SessionStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures the SessionStore.
type Option func(*SessionStore)

// WithTTL sets the native expiration for sessions.
func WithTTL(ttl time.Duration) Option {
	return func(s *SessionStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for sessions.
func WithPrefix(prefix string) Option {
	return func(s *SessionStore) {
		s.prefix = prefix
	}
}

// New creates a new Redis session store with options.
func New(address, password string, db int, opts ...Option) *SessionStore {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis session store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *SessionStore {
	store := &SessionStore{
		client: client,
		prefix: "forge:session:",
		ttl:    0, // No native expiration by default; the reaper still prunes
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *SessionStore) key(sessionKey string) string {
	return s.prefix + sessionKey
}

func (s *SessionStore) indexKey() string {
	return s.prefix + "index"
}

// Save persists a new session to Redis.
func (s *SessionStore) Save(ctx context.Context, session domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(session.Key), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  float64(session.CreatedAt.UnixMilli()),
		Member: session.Key,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves the session from Redis.
func (s *SessionStore) Load(ctx context.Context, key string) (domain.Session, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return domain.Session{}, domain.ErrSessionNotFound
		}
		return domain.Session{}, fmt.Errorf("failed to get from redis: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return domain.Session{}, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return session, nil
}

// Replace overwrites the payload of a live session.
// SET XX KEEPTTL only succeeds if the key still exists and leaves its expiry untouched.
func (s *SessionStore) Replace(ctx context.Context, key string, payload domain.Payload) error {
	current, err := s.Load(ctx, key)
	if err != nil {
		return err
	}
	current.Payload = payload

	data, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	err = s.client.SetArgs(ctx, s.key(key), data, backend.SetArgs{
		Mode:    "XX",
		KeepTTL: true,
	}).Err()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return domain.ErrSessionNotFound
		}
		return fmt.Errorf("failed to replace in redis: %w", err)
	}
	return nil
}

// Delete removes the session.
func (s *SessionStore) Delete(ctx context.Context, key string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(key))
	pipe.ZRem(ctx, s.indexKey(), key)

	_, err := pipe.Exec(ctx)
	return err
}

// Reap deletes every indexed session created before the cutoff.
func (s *SessionStore) Reap(ctx context.Context, cutoff time.Time) (int, error) {
	// Exclusive upper bound: "(" prefix.
	maxScore := "(" + strconv.FormatInt(cutoff.UnixMilli(), 10)
	members, err := s.client.ZRangeByScore(ctx, s.indexKey(), &backend.ZRangeBy{
		Min: "-inf",
		Max: maxScore,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to scan expired sessions: %w", err)
	}
	if len(members) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(members))
	index := make([]any, 0, len(members))
	for _, m := range members {
		keys = append(keys, s.key(m))
		index = append(index, m)
	}

	pipe := s.client.TxPipeline()
	deleted := pipe.Del(ctx, keys...)
	pipe.ZRem(ctx, s.indexKey(), index...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to prune expired sessions: %w", err)
	}
	// Index entries whose key redis already expired are pruned but not counted.
	return int(deleted.Val()), nil
}

// Close closes the redis client.
func (s *SessionStore) Close() error {
	return s.client.Close()
}
