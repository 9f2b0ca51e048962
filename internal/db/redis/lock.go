package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/docqa/internal/db"
)

// unlockScript deletes the key only while it still carries the caller's token,
// so an expired holder never removes a lock re-acquired by someone else.
const unlockScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`

// extendScript resets the expiry only while the key still carries the caller's token.
const extendScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("PEXPIRE", KEYS[1], ARGV[2]) else return 0 end`

// TryLock sets key to token with SET NX PX. Returns false if the key is held.
func (s *Store) TryLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	cmd := s.b().Set().Key(s.key(key)).Value(token).Nx().PxMilliseconds(ttl.Milliseconds()).Build()
	if _, err := s.do(ctx, cmd).ToString(); err != nil {
		if rueidis.IsRedisNil(err) {
			return false, nil
		}
		return false, &db.Error{Op: db.OpSet, Err: err}
	}
	return true, nil
}

// Unlock releases key if it is still held by token.
func (s *Store) Unlock(ctx context.Context, key, token string) error {
	cmd := s.b().Eval().Script(unlockScript).Numkeys(1).Key(s.key(key)).Arg(token).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpEval, Err: err}
	}
	return nil
}

// Extend pushes the expiry of key to ttl from now if token still holds it.
// Returns false when the lock has expired or moved to another holder.
func (s *Store) Extend(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	cmd := s.b().Eval().Script(extendScript).Numkeys(1).Key(s.key(key)).
		Arg(token, strconv.FormatInt(ttl.Milliseconds(), 10)).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return false, &db.Error{Op: db.OpEval, Err: err}
	}
	return n == 1, nil
}
