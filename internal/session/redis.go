package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"taxmatch/internal/gateway"
)

const defaultKey = "taxmatch:session"

// RedisStore keeps the session in Redis with a TTL matching its expiry, so
// it survives process restarts.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore builds a Redis-backed session store. key scopes the entry;
// empty uses the default key.
func NewRedisStore(addr, password, key string) *RedisStore {
	if key == "" {
		key = defaultKey
	}
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password}),
		key:    key,
	}
}

func (s *RedisStore) Save(ctx context.Context, sess gateway.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	ttl := time.Duration(0)
	if !sess.ExpiresAt.IsZero() {
		ttl = time.Until(sess.ExpiresAt)
		if ttl <= 0 {
			return nil
		}
	}
	return s.client.Set(ctx, s.key, data, ttl).Err()
}

func (s *RedisStore) Load(ctx context.Context) (gateway.Session, bool, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return gateway.Session{}, false, nil
	}
	if err != nil {
		return gateway.Session{}, false, err
	}
	var sess gateway.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return gateway.Session{}, false, err
	}
	if expired(sess) {
		return gateway.Session{}, false, nil
	}
	return sess, true, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}
