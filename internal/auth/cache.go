// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/authstate/pkg/errutil"
)

// Keys used in the local key-value store.
const (
	KeyCachedUser      = "auth.cached_user"
	KeyIdentity        = "auth.identity"
	KeyIsAuthenticated = "auth.is_authenticated"
	KeySavedEmail      = "auth.saved_email"
	KeySavedName       = "auth.saved_name"
)

// cacheVersion is bumped when the envelope layout changes; older entries are
// discarded on load.
const cacheVersion = 1

type cachedRecord struct {
	Version  int       `json:"version"`
	CachedAt time.Time `json:"cachedAt"`
	User     *User     `json:"user"`
}

// UserCache keeps a single cached User in the local store.
// It is best effort: write failures are logged and reads never fail.
type UserCache struct {
	store  KeyValueStore
	logger *slog.Logger
	now    func() time.Time
}

// NewUserCache creates a UserCache over store.
func NewUserCache(store KeyValueStore, logger *slog.Logger) *UserCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserCache{store: store, logger: logger, now: time.Now}
}

// Save overwrites the cached user. Failures are logged, not returned.
func (c *UserCache) Save(ctx context.Context, user *User) {
	if user == nil {
		return
	}
	data, err := json.Marshal(cachedRecord{
		Version:  cacheVersion,
		CachedAt: c.now().UTC(),
		User:     user,
	})
	if err != nil {
		recordCacheEvent(CacheSaveFailed)
		errutil.LogWarn(ctx, c.logger, "cached user not saved", oops.Code("AUTH_CACHE_SAVE_FAILED").
			With("operation", "encode user").
			With("provider_id", user.ProviderID).
			Wrap(err))
		return
	}
	if err := c.store.Set(ctx, KeyCachedUser, data); err != nil {
		recordCacheEvent(CacheSaveFailed)
		errutil.LogWarn(ctx, c.logger, "cached user not saved", oops.Code("AUTH_CACHE_SAVE_FAILED").
			With("operation", "write user").
			With("provider_id", user.ProviderID).
			Wrap(err))
		return
	}
	recordCacheEvent(CacheSaved)
}

// Load returns the cached user, or nil when nothing usable is stored.
// Entries that cannot be decoded are removed.
func (c *UserCache) Load(ctx context.Context) *User {
	data, err := c.store.Get(ctx, KeyCachedUser)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			errutil.LogWarn(ctx, c.logger, "cached user not readable", oops.Code("AUTH_CACHE_READ_FAILED").Wrap(err))
		}
		recordCacheEvent(CacheMiss)
		return nil
	}

	var rec cachedRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		c.discard(ctx, "decode", err)
		return nil
	}
	if rec.Version != cacheVersion || rec.User == nil || rec.User.ProviderID == "" {
		c.discard(ctx, "validate", oops.With("version", rec.Version).Errorf("cached record is incomplete"))
		return nil
	}

	recordCacheEvent(CacheHit)
	return rec.User
}

// Clear removes the cached user.
func (c *UserCache) Clear(ctx context.Context) {
	if err := c.store.Remove(ctx, KeyCachedUser); err != nil {
		recordCacheEvent(CacheClearFailed)
		errutil.LogWarn(ctx, c.logger, "cached user not cleared", oops.Code("AUTH_CACHE_CLEAR_FAILED").Wrap(err))
	}
}

func (c *UserCache) discard(ctx context.Context, stage string, cause error) {
	recordCacheEvent(CacheCorrupt)
	c.logger.WarnContext(ctx, "discarding corrupted cached user",
		"stage", stage,
		"error", cause,
	)
	c.Clear(ctx)
}
