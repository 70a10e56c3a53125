package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/CarrieW-BorderX/tiktok-scraper/internal/media"
)

const (
	keyPrefix   = "harvester"
	completed   = "completed"
	statsPrefix = "harvester:stats:"
)

// Deduplicator keeps completion markers and outcome counters in Redis.
type Deduplicator struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewDeduplicator wraps rdb. If ttlHours is 0 markers never expire.
func NewDeduplicator(rdb *redis.Client, ttlHours int) *Deduplicator {
	var ttl time.Duration
	if ttlHours > 0 {
		ttl = time.Duration(ttlHours) * time.Hour
	}
	return &Deduplicator{rdb: rdb, ttl: ttl}
}

// Connect dials Redis and verifies it answers.
func Connect(ctx context.Context, address, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis not answering at %s: %w", address, err)
	}
	return rdb, nil
}

func markerKey(prefixType, kind, id string) string {
	return fmt.Sprintf("%s:%s:%s:%s", keyPrefix, prefixType, kind, id)
}

// CheckIfProcessed reports whether a marker for id exists under prefixType.
func (d *Deduplicator) CheckIfProcessed(ctx context.Context, prefixType string, kind media.SearchKind, id string) (bool, error) {
	exists, err := d.rdb.Exists(ctx, markerKey(prefixType, string(kind), id)).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

// IsCompleted reports whether identifier was downloaded by an earlier run.
func (d *Deduplicator) IsCompleted(ctx context.Context, kind media.SearchKind, identifier string) (bool, error) {
	return d.CheckIfProcessed(ctx, completed, kind, identifier)
}

// StatKey is the counter key for an item status.
func StatKey(status media.ItemStatus) string {
	return statsPrefix + string(status)
}

// Record counts rec and marks successful downloads as completed.
func (d *Deduplicator) Record(ctx context.Context, rec media.Record) error {
	pipe := d.rdb.TxPipeline()
	pipe.Incr(ctx, StatKey(rec.Status))
	if rec.RateLimitHits > 0 {
		pipe.IncrBy(ctx, statsPrefix+"rate_limit_hits", int64(rec.RateLimitHits))
	}
	if rec.Status == media.StatusDone {
		pipe.Set(ctx, markerKey(completed, string(rec.Kind), rec.Identifier), "1", d.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis record %s: %w", rec.Identifier, err)
	}
	return nil
}

func (d *Deduplicator) Name() string { return "redis" }

// RDB returns the internal redis client for metrics.
func (d *Deduplicator) RDB() *redis.Client {
	return d.rdb
}

// Close closes the underlying redis connection
func (d *Deduplicator) Close() error {
	return d.rdb.Close()
}
