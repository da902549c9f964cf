package models

import (
	"context"
	"fmt"
	"time"

	"github.com/brpix/pix-processor/config/database"
	"github.com/brpix/pix-processor/config/redis"
)

type ApiStore struct {
	db *database.DB
}

func NewApiStore(db *database.DB) *ApiStore {
	return &ApiStore{
		db: db,
	}
}

// OffsetStore remembers which settled amounts are currently attached to an
// open charge. Keys expire with the charge lifetime, so a flag disappears
// around the time the charge it belongs to stops being matchable.
type OffsetStore struct {
	name    string
	ttl     time.Duration
	context context.Context
	db      *redis.RedisDB
}

type OffsetFlagger interface {
	FlagAmount(value string) error
	AmountFlagged(value string) (bool, error)
}

func NewOffsetStore(ctx context.Context, redis *redis.RedisDB, name string, ttl time.Duration) *OffsetStore {
	return &OffsetStore{
		name:    name,
		ttl:     ttl,
		context: ctx,
		db:      redis,
	}
}

func (store *OffsetStore) FlagAmount(value string) error {
	result := store.db.Client.Set(store.context, store.key(value), "1", store.ttl)
	return result.Err()
}

func (store *OffsetStore) AmountFlagged(value string) (bool, error) {
	count, err := store.db.Client.Exists(store.context, store.key(value)).Result()
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func (store *OffsetStore) key(value string) string {
	return fmt.Sprintf("%s:%s", store.name, value)
}

func (store *OffsetStore) Close() error {
	return store.db.Client.Close()
}
