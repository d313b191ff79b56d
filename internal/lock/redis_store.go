package lock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLeaseStore is a Redis implementation of LeaseStore.
//
// Each resource maps to one hash key carrying the owner fields; the key's TTL
// is the lease. Conditional transitions run as Lua scripts, which Redis
// executes atomically, and an expired lease simply disappears, so "key absent"
// and "lease expired" are the same condition.
type RedisLeaseStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// RedisLeaseOption configures a RedisLeaseStore.
type RedisLeaseOption func(*RedisLeaseStore)

// WithLeaseKeyPrefix sets a prefix for all lease keys in Redis.
func WithLeaseKeyPrefix(prefix string) RedisLeaseOption {
	return func(s *RedisLeaseStore) {
		s.prefix = prefix
	}
}

// NewRedisLeaseStore creates a new Redis-backed lease store.
func NewRedisLeaseStore(client *redis.Client, opts ...RedisLeaseOption) *RedisLeaseStore {
	s := &RedisLeaseStore{
		client: client,
		prefix: "editlock:",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisLeaseStore) key(rt ResourceType, resourceID string) string {
	return s.prefix + string(rt) + ":" + resourceID
}

// acquireScript grants, renews, or steals-after-expiry in one atomic step.
// Expired keys have already been dropped by Redis, so a present owner field
// is always an active lease. Returns {1, acquired_at} on success or
// {0, owner, owner_name, acquired_at, expires_at} on denial.
var acquireScript = redis.NewScript(`
	local cur = redis.call("HGET", KEYS[1], "owner")
	if cur == false or cur == ARGV[1] then
		local acquired = ARGV[3]
		if cur == ARGV[1] then
			acquired = redis.call("HGET", KEYS[1], "acquired_at")
		end
		redis.call("HSET", KEYS[1], "owner", ARGV[1], "owner_name", ARGV[2], "acquired_at", acquired, "expires_at", ARGV[4])
		redis.call("PEXPIRE", KEYS[1], ARGV[5])
		return {1, acquired}
	end
	return {0,
		redis.call("HGET", KEYS[1], "owner"),
		redis.call("HGET", KEYS[1], "owner_name"),
		redis.call("HGET", KEYS[1], "acquired_at"),
		redis.call("HGET", KEYS[1], "expires_at")}
`)

// renewScript extends the TTL only when the owner matches.
var renewScript = redis.NewScript(`
	if redis.call("HGET", KEYS[1], "owner") == ARGV[1] then
		redis.call("HSET", KEYS[1], "expires_at", ARGV[2])
		redis.call("PEXPIRE", KEYS[1], ARGV[3])
		return redis.call("HGET", KEYS[1], "acquired_at")
	end
	return false
`)

// deleteScript removes the key only when the owner matches.
var deleteScript = redis.NewScript(`
	if redis.call("HGET", KEYS[1], "owner") == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// TryAcquireOrRenew implements LeaseStore.TryAcquireOrRenew.
func (s *RedisLeaseStore) TryAcquireOrRenew(ctx context.Context, rt ResourceType, resourceID, ownerID, ownerName string, lease time.Duration) (*Record, error) {
	now := s.now()
	expiresAt := now.Add(lease)

	raw, err := acquireScript.Run(ctx, s.client, []string{s.key(rt, resourceID)},
		ownerID, ownerName, now.UnixMilli(), expiresAt.UnixMilli(), lease.Milliseconds()).Slice()
	if err != nil {
		return nil, fmt.Errorf("acquire lease: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("acquire lease: empty script reply")
	}

	if granted, _ := raw[0].(int64); granted == 1 {
		acquiredAt := now
		if len(raw) > 1 {
			acquiredAt = parseMilliField(raw[1], now)
		}
		return &Record{
			ResourceType: rt,
			ResourceID:   resourceID,
			OwnerID:      ownerID,
			OwnerName:    ownerName,
			AcquiredAt:   acquiredAt,
			ExpiresAt:    expiresAt,
		}, nil
	}

	holder := &Record{ResourceType: rt, ResourceID: resourceID}
	if len(raw) >= 5 {
		holder.OwnerID, _ = raw[1].(string)
		holder.OwnerName, _ = raw[2].(string)
		holder.AcquiredAt = parseMilliField(raw[3], now)
		holder.ExpiresAt = parseMilliField(raw[4], now)
	}
	return nil, &ConflictError{Holder: holder}
}

// RenewIfOwner implements LeaseStore.RenewIfOwner.
func (s *RedisLeaseStore) RenewIfOwner(ctx context.Context, rt ResourceType, resourceID, ownerID string, lease time.Duration) (*Record, error) {
	now := s.now()
	expiresAt := now.Add(lease)

	acquired, err := renewScript.Run(ctx, s.client, []string{s.key(rt, resourceID)},
		ownerID, expiresAt.UnixMilli(), lease.Milliseconds()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotOwner
	}
	if err != nil {
		return nil, fmt.Errorf("renew lease: %w", err)
	}

	return &Record{
		ResourceType: rt,
		ResourceID:   resourceID,
		OwnerID:      ownerID,
		AcquiredAt:   parseMilliField(acquired, now),
		ExpiresAt:    expiresAt,
	}, nil
}

// DeleteIfOwner implements LeaseStore.DeleteIfOwner.
func (s *RedisLeaseStore) DeleteIfOwner(ctx context.Context, rt ResourceType, resourceID, ownerID string) (bool, error) {
	deleted, err := deleteScript.Run(ctx, s.client, []string{s.key(rt, resourceID)}, ownerID).Int64()
	if err != nil {
		return false, fmt.Errorf("release lease: %w", err)
	}
	return deleted > 0, nil
}

// FindActive implements LeaseStore.FindActive.
func (s *RedisLeaseStore) FindActive(ctx context.Context, rt ResourceType, resourceID string) (*Record, error) {
	fields, err := s.client.HGetAll(ctx, s.key(rt, resourceID)).Result()
	if err != nil {
		return nil, fmt.Errorf("find lease: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return recordFromHash(rt, resourceID, fields), nil
}

// DeleteIfExpired implements LeaseStore.DeleteIfExpired. Always a no-op:
// Redis has already dropped any expired key.
func (s *RedisLeaseStore) DeleteIfExpired(ctx context.Context, rt ResourceType, resourceID string) (bool, error) {
	return false, nil
}

// FindActiveBatch implements LeaseStore.FindActiveBatch using one pipeline.
func (s *RedisLeaseStore) FindActiveBatch(ctx context.Context, keys []Key) (map[Key]*Record, error) {
	result := make(map[Key]*Record, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.HGetAll(ctx, s.key(key.ResourceType, key.ResourceID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("find leases: %w", err)
	}

	for i, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil {
			return nil, fmt.Errorf("find leases: %w", err)
		}
		if len(fields) == 0 {
			continue
		}
		result[keys[i]] = recordFromHash(keys[i].ResourceType, keys[i].ResourceID, fields)
	}
	return result, nil
}

// PurgeExpired implements LeaseStore.PurgeExpired. Redis drops expired keys
// on its own, so there is nothing to purge here.
func (s *RedisLeaseStore) PurgeExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

// Ping checks if the Redis connection is healthy.
func (s *RedisLeaseStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func recordFromHash(rt ResourceType, resourceID string, fields map[string]string) *Record {
	rec := &Record{
		ResourceType: rt,
		ResourceID:   resourceID,
		OwnerID:      fields["owner"],
		OwnerName:    fields["owner_name"],
	}
	if ms, err := strconv.ParseInt(fields["acquired_at"], 10, 64); err == nil {
		rec.AcquiredAt = time.UnixMilli(ms)
	}
	if ms, err := strconv.ParseInt(fields["expires_at"], 10, 64); err == nil {
		rec.ExpiresAt = time.UnixMilli(ms)
	}
	return rec
}

// parseMilliField decodes a unix-millisecond script reply, which go-redis
// hands back as either a string or an int64 depending on the reply path.
func parseMilliField(v interface{}, fallback time.Time) time.Time {
	switch t := v.(type) {
	case string:
		if ms, err := strconv.ParseInt(t, 10, 64); err == nil {
			return time.UnixMilli(ms)
		}
	case int64:
		return time.UnixMilli(t)
	}
	return fallback
}

// Verify RedisLeaseStore implements LeaseStore.
var _ LeaseStore = (*RedisLeaseStore)(nil)
