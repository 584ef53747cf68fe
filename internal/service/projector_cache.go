package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const invalidateTimeout = time.Second

// ProjectorCache stores rendered read-model views in Redis under versioned
// keys.  Every scope (one table, one entity, the pool list) has a version
// counter that writers bump after commit.  Readers fetch the current
// version first and only ever read or write views under that version, so
// a view computed from pre-commit state can never be served once the
// version has moved on.
//
// A nil *ProjectorCache is valid and caches nothing.
type ProjectorCache struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
	log    *zap.Logger
}

// NewProjectorCache returns nil when rdb is nil.
func NewProjectorCache(rdb redis.Cmdable, prefix string, ttl time.Duration, log *zap.Logger) *ProjectorCache {
	if rdb == nil {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ProjectorCache{rdb: rdb, prefix: prefix, ttl: ttl, log: log}
}

const poolsScope = "pools"

func tableScope(id uint32) string  { return "table:" + strconv.FormatUint(uint64(id), 10) }
func entityScope(id string) string { return "entity:" + id }

func (c *ProjectorCache) versionKey(scope string) string { return c.prefix + ":ver:" + scope }

func (c *ProjectorCache) viewKey(scope string, ver int64) string {
	return fmt.Sprintf("%s:view:%s:%d", c.prefix, scope, ver)
}

// versions reads the current version of each scope.  Scopes never bumped
// are at version 0.
func (c *ProjectorCache) versions(ctx context.Context, scopes []string) ([]int64, error) {
	keys := make([]string, len(scopes))
	for i, s := range scopes {
		keys[i] = c.versionKey(s)
	}
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]int64, len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("version %s: %w", keys[i], err)
		}
		out[i] = n
	}
	return out, nil
}

// loadMany fetches views for scopes at the given versions.  Missing or
// unreadable entries come back as nil.
func (c *ProjectorCache) loadMany(ctx context.Context, scopes []string, vers []int64) ([][]byte, error) {
	keys := make([]string, len(scopes))
	for i, s := range scopes {
		keys[i] = c.viewKey(s, vers[i])
	}
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[i] = []byte(s)
		}
	}
	return out, nil
}

// load fetches one view into dst and reports whether it was cached.
func (c *ProjectorCache) load(ctx context.Context, scope string, ver int64, dst interface{}) (bool, error) {
	raw, err := c.rdb.Get(ctx, c.viewKey(scope, ver)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, nil
	}
	return true, nil
}

// store writes a view under the version it was computed for.  Failures
// are logged; the caller already has the view.
func (c *ProjectorCache) store(ctx context.Context, scope string, ver int64, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.log.Warn("projector cache: marshal view", zap.String("scope", scope), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, c.viewKey(scope, ver), raw, c.ttl).Err(); err != nil {
		c.log.Warn("projector cache: store view", zap.String("scope", scope), zap.Error(err))
	}
}

// invalidate bumps the version of each scope in one round trip.  It runs
// detached from the caller's cancellation: the ledger has already
// committed and readers must stop seeing the old view.
func (c *ProjectorCache) invalidate(ctx context.Context, scopes ...string) {
	if c == nil || len(scopes) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
	defer cancel()
	_, err := c.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, s := range scopes {
			p.Incr(ctx, c.versionKey(s))
		}
		return nil
	})
	if err == nil {
		return
	}
	c.log.Warn("projector cache: invalidate", zap.Strings("scopes", scopes), zap.Error(err))

	// the version stayed put, so drop the views cached under it
	vers, verr := c.versions(ctx, scopes)
	if verr != nil {
		return
	}
	keys := make([]string, len(scopes))
	for i, s := range scopes {
		keys[i] = c.viewKey(s, vers[i])
	}
	if derr := c.rdb.Del(ctx, keys...).Err(); derr != nil {
		c.log.Warn("projector cache: drop stale views", zap.Strings("scopes", scopes), zap.Error(derr))
	}
}

// InvalidateTables marks the seating views of the given tables stale.
func (c *ProjectorCache) InvalidateTables(ctx context.Context, ids ...uint32) {
	if c == nil {
		return
	}
	scopes := make([]string, 0, len(ids))
	for _, id := range ids {
		scopes = append(scopes, tableScope(id))
	}
	c.invalidate(ctx, scopes...)
}

// InvalidateEntities marks the occupancy summaries of the given entities
// stale.
func (c *ProjectorCache) InvalidateEntities(ctx context.Context, ids ...string) {
	if c == nil {
		return
	}
	scopes := make([]string, 0, len(ids))
	for _, id := range ids {
		scopes = append(scopes, entityScope(id))
	}
	c.invalidate(ctx, scopes...)
}

// InvalidatePools marks the pool fill counts stale.
func (c *ProjectorCache) InvalidatePools(ctx context.Context) {
	if c == nil {
		return
	}
	c.invalidate(ctx, poolsScope)
}
