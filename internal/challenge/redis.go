package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
)

// RedisStore shares pending ceremonies across replicas. GETDEL makes
// consumption atomic, so two concurrent verifications of the same challenge
// cannot both find it.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "webauthn:challenge"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(challenge string) string {
	return fmt.Sprintf("%s:%s", s.prefix, challenge)
}

func (s *RedisStore) Save(ctx context.Context, challenge string, data *webauthn.SessionData, ttl time.Duration) error {
	if challenge == "" || data == nil {
		return errors.New("challenge and session data are required")
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode ceremony state: %w", err)
	}
	// NX: a colliding challenge would mean two ceremonies sharing state.
	ok, err := s.client.SetNX(ctx, s.key(challenge), payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("store ceremony state: %w", err)
	}
	if !ok {
		return errors.New("challenge already pending")
	}
	return nil
}

func (s *RedisStore) Consume(ctx context.Context, challenge string) (*webauthn.SessionData, error) {
	payload, err := s.client.GetDel(ctx, s.key(challenge)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load ceremony state: %w", err)
	}
	var data webauthn.SessionData
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return nil, fmt.Errorf("decode ceremony state: %w", err)
	}
	return &data, nil
}
