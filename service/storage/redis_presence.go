package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// PresenceMirror publishes presence transitions into redis so sidecar
// tooling (admin dashboards, the CRUD API) can read "who is online" without
// touching the gateway. The in-memory directory stays the source of truth;
// every call here is best-effort.
//
// presence key: im:presence:<user>, TTL bounds staleness if the process dies
// last-seen key: im:lastseen:<user>, RFC3339
type PresenceMirror struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewPresenceMirror(rdb *redis.Client, ttl time.Duration) *PresenceMirror {
	return &PresenceMirror{rdb: rdb, ttl: ttl}
}

func presenceKey(user string) string { return "im:presence:" + user }
func lastSeenKey(user string) string { return "im:lastseen:" + user }

// Online marks the user online. Nil receiver is a no-op so the gateway can
// run without redis.
func (m *PresenceMirror) Online(ctx context.Context, user string) error {
	if m == nil {
		return nil
	}
	return m.rdb.Set(ctx, presenceKey(user), "1", m.ttl).Err()
}

// Offline clears the online flag and records last-seen.
func (m *PresenceMirror) Offline(ctx context.Context, user string, lastSeen time.Time) error {
	if m == nil {
		return nil
	}
	pipe := m.rdb.TxPipeline()
	pipe.Del(ctx, presenceKey(user))
	pipe.Set(ctx, lastSeenKey(user), lastSeen.UTC().Format(time.RFC3339), 0)
	_, err := pipe.Exec(ctx)
	return err
}

// Lookup reports the mirrored online flag.
func (m *PresenceMirror) Lookup(ctx context.Context, user string) (bool, error) {
	if m == nil {
		return false, nil
	}
	_, err := m.rdb.Get(ctx, presenceKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
