// Package cache keeps provider track metadata in redis so playback sync
// and the queue view do not wait on the provider.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"musicroom-sync-client/internal/provider"
)

const (
	DefaultTTL = 24 * time.Hour
	keyPrefix  = "musicroom:track:"
)

// TrackSource loads tracks the cache does not have.
type TrackSource interface {
	Tracks(ctx context.Context, ids ...string) ([]provider.Track, error)
}

type TrackCache struct {
	rdb *redis.Client
	src TrackSource
	ttl time.Duration
	log zerolog.Logger
}

func NewTrackCache(rdb *redis.Client, src TrackSource, ttl time.Duration, log zerolog.Logger) *TrackCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TrackCache{rdb: rdb, src: src, ttl: ttl, log: log}
}

func key(id string) string { return keyPrefix + id }

// Get returns the cached track. ok is false on a miss.
func (c *TrackCache) Get(ctx context.Context, id string) (provider.Track, bool, error) {
	raw, err := c.rdb.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return provider.Track{}, false, nil
	}
	if err != nil {
		return provider.Track{}, false, fmt.Errorf("cache get %s: %w", id, err)
	}
	var t provider.Track
	if err := json.Unmarshal(raw, &t); err != nil {
		return provider.Track{}, false, fmt.Errorf("cache decode %s: %w", id, err)
	}
	return t, true, nil
}

func (c *TrackCache) Put(ctx context.Context, tracks ...provider.Track) error {
	if len(tracks) == 0 {
		return nil
	}
	pipe := c.rdb.Pipeline()
	for _, t := range tracks {
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}
		pipe.Set(ctx, key(t.ID), b, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Lookup returns the tracks for ids in the given order, loading misses
// from the source and storing them. Ids the provider does not know are
// left out.
func (c *TrackCache) Lookup(ctx context.Context, ids ...string) ([]provider.Track, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = key(id)
	}
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("cache mget: %w", err)
	}

	found := make(map[string]provider.Track, len(ids))
	var missing []string
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			missing = append(missing, ids[i])
			continue
		}
		var t provider.Track
		if err := json.Unmarshal([]byte(s), &t); err != nil {
			missing = append(missing, ids[i])
			continue
		}
		found[ids[i]] = t
	}

	if len(missing) > 0 {
		loaded, err := c.src.Tracks(ctx, missing...)
		if err != nil {
			return nil, fmt.Errorf("load tracks: %w", err)
		}
		if err := c.Put(ctx, loaded...); err != nil {
			c.log.Warn().Err(err).Msg("store tracks")
		}
		for _, t := range loaded {
			found[t.ID] = t
		}
	}

	out := make([]provider.Track, 0, len(found))
	for _, id := range ids {
		if t, ok := found[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// Duration returns the track's length, loading it if needed.
func (c *TrackCache) Duration(ctx context.Context, id string) (time.Duration, error) {
	tracks, err := c.Lookup(ctx, id)
	if err != nil {
		return 0, err
	}
	if len(tracks) == 0 {
		return 0, fmt.Errorf("track %s: unknown", id)
	}
	return tracks[0].Duration, nil
}

// Prefetch warms the cache for ids. Failures are only logged.
func (c *TrackCache) Prefetch(ctx context.Context, ids []string) {
	if _, err := c.Lookup(ctx, ids...); err != nil {
		c.log.Debug().Err(err).Int("tracks", len(ids)).Msg("prefetch")
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
