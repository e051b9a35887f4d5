// Copyright 2026 The Authgrid Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cache holds the Redis-backed permission cache. The cache is
// strictly an accelerator: every method is best-effort and the
// resolver recomputes from storage on any miss or failure.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/authgrid/authgrid/internal/observability/logger"
)

const (
	keyPrefix           = "permissions:"
	invalidationChannel = "permission-invalidation"

	// DefaultTTL bounds staleness when an invalidation is lost.
	DefaultTTL = 5 * time.Minute
)

// Redis stores each user's flattened permission-id set as a Redis set
// under "permissions:<userID>". Invalidation deletes the key and
// broadcasts the user id on a pub/sub channel so other instances can
// drop any local state of their own.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects and verifies the server is reachable.
func NewRedis(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Redis, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Redis{client: client, ttl: ttl}, nil
}

// Get returns the cached set. ok is false on miss or any Redis error.
// An empty set is never cached, so zero members means miss.
func (c *Redis) Get(ctx context.Context, userID string) ([]string, bool) {
	ids, err := c.client.SMembers(ctx, keyPrefix+userID).Result()
	if err != nil {
		slog.WarnContext(ctx, "permission cache read failed", logger.UserID(userID), logger.Error(err))
		return nil, false
	}
	if len(ids) == 0 {
		return nil, false
	}
	return ids, true
}

// Put stores the set with the configured TTL. Empty sets are skipped
// so they stay distinguishable from misses.
func (c *Redis) Put(ctx context.Context, userID string, permissionIDs []string) {
	if len(permissionIDs) == 0 {
		return
	}
	key := keyPrefix + userID
	members := make([]interface{}, len(permissionIDs))
	for i, id := range permissionIDs {
		members[i] = id
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SAdd(ctx, key, members...)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.WarnContext(ctx, "permission cache write failed", logger.UserID(userID), logger.Error(err))
	}
}

// Invalidate deletes the key and notifies peers.
func (c *Redis) Invalidate(ctx context.Context, userID string) {
	if err := c.client.Del(ctx, keyPrefix+userID).Err(); err != nil {
		slog.WarnContext(ctx, "permission cache invalidation failed", logger.UserID(userID), logger.Error(err))
	}
	if err := c.client.Publish(ctx, invalidationChannel, userID).Err(); err != nil {
		slog.WarnContext(ctx, "invalidation broadcast failed", logger.UserID(userID), logger.Error(err))
	}
}

// ListenInvalidations applies invalidations broadcast by peer
// instances until ctx is cancelled. Deleting an already-deleted key
// is a no-op, so applying our own broadcasts is harmless.
func (c *Redis) ListenInvalidations(ctx context.Context) {
	sub := c.client.Subscribe(ctx, invalidationChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := c.client.Del(ctx, keyPrefix+msg.Payload).Err(); err != nil {
				slog.WarnContext(ctx, "applying peer invalidation failed",
					logger.UserID(msg.Payload), logger.Error(err))
			}
		}
	}
}

// Close releases the Redis connection.
func (c *Redis) Close() error {
	return c.client.Close()
}
