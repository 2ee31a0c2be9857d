package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "session:v1:"

// RedisStore keeps sessions in Redis. Open and Revoke run as Lua scripts so
// the account key and the token key always change together.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore builds a Redis-backed session store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func accountKey(id int64) string   { return keyPrefix + "account:" + strconv.FormatInt(id, 10) }
func tokenKey(token string) string { return keyPrefix + "token:" + token }

const (
	openActive    = 1
	openCollision = 2
)

// KEYS: account key, token key. ARGV: token, payload, ttl in ms (0 keeps forever).
var openScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 1
end
if redis.call("EXISTS", KEYS[2]) == 1 then
	return 2
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ttl)
	redis.call("SET", KEYS[2], ARGV[2], "PX", ttl)
else
	redis.call("SET", KEYS[1], ARGV[1])
	redis.call("SET", KEYS[2], ARGV[2])
end
return 0
`)

// KEYS: account key. ARGV: token key prefix.
var revokeScript = redis.NewScript(`
local token = redis.call("GET", KEYS[1])
if token then
	redis.call("DEL", KEYS[1], ARGV[1] .. token)
end
return 0
`)

// Open claims the account slot and the token slot in one step.
func (r *RedisStore) Open(ctx context.Context, s Session) error {
	var ttl time.Duration
	if !s.ExpiresAt.IsZero() {
		ttl = time.Until(s.ExpiresAt)
		if ttl <= 0 {
			return fmt.Errorf("open session: already expired at %s", s.ExpiresAt)
		}
	}

	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	res, err := openScript.Run(ctx, r.client,
		[]string{accountKey(s.AccountID), tokenKey(s.Token)},
		s.Token, payload, ttl.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	switch res {
	case openActive:
		return ErrActiveSession
	case openCollision:
		return ErrTokenCollision
	}
	return nil
}

// ByToken returns the session bound to token.
func (r *RedisStore) ByToken(ctx context.Context, token string) (Session, error) {
	raw, err := r.client.Get(ctx, tokenKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}

	// A token whose account key points elsewhere is orphaned.
	current, err := r.client.Get(ctx, accountKey(s.AccountID)).Result()
	if errors.Is(err, redis.Nil) || (err == nil && current != token) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("load account session: %w", err)
	}
	return s, nil
}

// ByAccount returns the account's live session.
func (r *RedisStore) ByAccount(ctx context.Context, accountID int64) (Session, error) {
	token, err := r.client.Get(ctx, accountKey(accountID)).Result()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("load account session: %w", err)
	}
	s, err := r.ByToken(ctx, token)
	if err != nil {
		return Session{}, err
	}
	if s.AccountID != accountID {
		return Session{}, ErrNotFound
	}
	return s, nil
}

// Revoke deletes both keys of the account's session.
func (r *RedisStore) Revoke(ctx context.Context, accountID int64) error {
	if err := revokeScript.Run(ctx, r.client, []string{accountKey(accountID)}, keyPrefix+"token:").Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}
