// pkg/oauth2flow/session_redis.go
package oauth2flow

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSessionStore keeps pending sessions in redis with a server-side
// TTL. Consume uses GETDEL so the take-and-delete is a single atomic
// operation; the state comparison happens after the session is already
// gone, so a mismatched callback can never be retried against the same
// session.
type RedisSessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisSessionStore(rdb *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb, ttl: ttl}
}

func (st *RedisSessionStore) key(tenant, connector string) string {
	return "oauthsess:" + tenant + ":" + connector
}

func (st *RedisSessionStore) Begin(ctx context.Context, tenant, connector string, s Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return st.rdb.Set(ctx, st.key(tenant, connector), raw, st.ttl).Err()
}

func (st *RedisSessionStore) Consume(ctx context.Context, tenant, connector, suppliedState string) (Session, error) {
	raw, err := st.rdb.GetDel(ctx, st.key(tenant, connector)).Bytes()
	if err == redis.Nil {
		return Session{}, ErrInvalidState
	}
	if err != nil {
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, ErrInvalidState
	}
	if !StateEqual(suppliedState, s.State) {
		return Session{}, ErrInvalidState
	}
	return s, nil
}

func (st *RedisSessionStore) Discard(ctx context.Context, tenant, connector string) error {
	return st.rdb.Del(ctx, st.key(tenant, connector)).Err()
}
