package staging

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "pending:"

// Entry is the staged payload for a partial delivery push.
type Entry struct {
	RawNotification string    `json:"raw_notification"`
	StagedAt        time.Time `json:"staged_at"`
}

// Store keeps in-flight reconciliation state per correlation id. Entries
// are TTL-bounded; the store absorbs provider retransmits and out-of-order
// arrival relative to correlation-id registration.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{rdb: rdb, ttl: ttl}
}

func key(providerMsgID string) string {
	return keyPrefix + providerMsgID
}

// Stage records a raw partial push under its correlation id, resetting the
// TTL. Restaging an id overwrites the previous entry.
func (s *Store) Stage(ctx context.Context, providerMsgID, raw string, stagedAt time.Time) error {
	b, err := json.Marshal(Entry{RawNotification: raw, StagedAt: stagedAt.UTC()})
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key(providerMsgID), b, s.ttl).Err()
}

// Get returns the staged entry for a correlation id, or ok=false if none.
func (s *Store) Get(ctx context.Context, providerMsgID string) (Entry, bool, error) {
	raw, err := s.rdb.Get(ctx, key(providerMsgID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

// Remove deletes the staged entry, reporting whether one existed.
func (s *Store) Remove(ctx context.Context, providerMsgID string) (bool, error) {
	n, err := s.rdb.Del(ctx, key(providerMsgID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
