package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const grantCachePrefix = "rbac:grants"

// GrantCache is a read-through Redis cache in front of a GrantStore. Entries
// live under per-principal version keys bumped on every replace. Redis read
// failures fall back to the store; they never turn into empty grant sets.
type GrantCache struct {
	store  GrantStore
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewGrantCache wraps store. A nil client disables caching.
func NewGrantCache(store GrantStore, client *redis.Client, ttl time.Duration, logger *slog.Logger) *GrantCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &GrantCache{store: store, client: client, ttl: ttl, logger: logger}
}

// RoleGrants implements GrantReader.
func (c *GrantCache) RoleGrants(ctx context.Context, roleID int64) (GrantRecord, error) {
	return c.fetch(ctx, grantKey(KindRole, roleID), func(ctx context.Context) (GrantRecord, error) {
		return c.store.RoleGrants(ctx, roleID)
	})
}

// UserGrants implements GrantReader.
func (c *GrantCache) UserGrants(ctx context.Context, userID int64) (GrantRecord, error) {
	return c.fetch(ctx, grantKey(KindUser, userID), func(ctx context.Context) (GrantRecord, error) {
		return c.store.UserGrants(ctx, userID)
	})
}

// ReplaceRoleGrants writes through and bumps the version of the cached entry.
func (c *GrantCache) ReplaceRoleGrants(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if err := c.store.ReplaceRoleGrants(ctx, roleID, permissionIDs); err != nil {
		return err
	}
	return c.bump(ctx, grantKey(KindRole, roleID))
}

// ReplaceUserGrants writes through and bumps the version of the cached entry.
func (c *GrantCache) ReplaceUserGrants(ctx context.Context, userID int64, permissionIDs []int64) error {
	if err := c.store.ReplaceUserGrants(ctx, userID, permissionIDs); err != nil {
		return err
	}
	return c.bump(ctx, grantKey(KindUser, userID))
}

// fetch reads the entry stored under the current version of key. A fill
// that raced a replace lands under the superseded version and is never read.
func (c *GrantCache) fetch(ctx context.Context, key string, loader func(context.Context) (GrantRecord, error)) (GrantRecord, error) {
	if c.client == nil {
		return loader(ctx)
	}
	ver, err := c.version(ctx, key)
	if err != nil {
		c.logger.Warn("grant cache version", slog.String("key", key), slog.Any("error", err))
		return loader(ctx)
	}
	dataKey := versionedKey(key, ver)
	payload, err := c.client.Get(ctx, dataKey).Bytes()
	if err == nil {
		var record GrantRecord
		if err := json.Unmarshal(payload, &record); err == nil {
			return record, nil
		}
		c.logger.Warn("grant cache decode", slog.String("key", dataKey))
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("grant cache get", slog.String("key", dataKey), slog.Any("error", err))
	}

	record, err := loader(ctx)
	if err != nil {
		return GrantRecord{}, err
	}
	if raw, err := json.Marshal(record); err == nil {
		if err := c.client.Set(ctx, dataKey, raw, c.ttl).Err(); err != nil {
			c.logger.Warn("grant cache set", slog.String("key", dataKey), slog.Any("error", err))
		}
	}
	return record, nil
}

func (c *GrantCache) version(ctx context.Context, key string) (int64, error) {
	ver, err := c.client.Get(ctx, key+":version").Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return ver, err
}

// bump moves key to a new version. The store write has already happened, so
// a failure is returned: readers could otherwise keep the superseded entry
// until it expires.
func (c *GrantCache) bump(ctx context.Context, key string) error {
	if c.client == nil {
		return nil
	}
	ver, err := c.client.Incr(ctx, key+":version").Result()
	if err != nil {
		c.logger.Error("grant cache bump", slog.String("key", key), slog.Any("error", err))
		return fmt.Errorf("rbac: invalidate cached grants %s: %w", key, err)
	}
	if err := c.client.Del(ctx, versionedKey(key, ver-1)).Err(); err != nil {
		c.logger.Warn("grant cache evict", slog.String("key", key), slog.Any("error", err))
	}
	return nil
}

func grantKey(kind PrincipalKind, id int64) string {
	return grantCachePrefix + ":" + string(kind) + ":" + strconv.FormatInt(id, 10)
}

func versionedKey(key string, ver int64) string {
	return fmt.Sprintf("%s:%d", key, ver)
}

var _ GrantStore = (*GrantCache)(nil)
