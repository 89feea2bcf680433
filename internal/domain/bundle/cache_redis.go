package bundle

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

const cacheKeyPrefix = "bundle:"

// cachedRepo is a read-through cache in front of another Repository.
// Cache failures are logged and fall through to the backing store; they
// never fail a request.
type cachedRepo struct {
	next   Repository
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

// WithRedisCache wraps next with a read-through cache.
func WithRedisCache(next Repository, client *redis.Client, ttl time.Duration, logger zerolog.Logger) Repository {
	return &cachedRepo{next: next, client: client, ttl: ttl, logger: logger}
}

func (r *cachedRepo) Save(ctx context.Context, b *StoredBundle) error {
	if err := r.next.Save(ctx, b); err != nil {
		return err
	}
	r.put(ctx, b)
	return nil
}

func (r *cachedRepo) GetByID(ctx context.Context, id string) (*StoredBundle, error) {
	raw, err := r.client.Get(ctx, cacheKeyPrefix+id).Bytes()
	switch {
	case err == nil:
		var b StoredBundle
		if jerr := json.Unmarshal(raw, &b); jerr == nil {
			return &b, nil
		}
		r.logger.Warn().Str("bundle_id", id).Msg("discarding undecodable cache entry")
	case !errors.Is(err, redis.Nil):
		r.logger.Warn().Err(err).Str("bundle_id", id).Msg("bundle cache read failed")
	}

	b, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.put(ctx, b)
	return b, nil
}

func (r *cachedRepo) List(ctx context.Context, limit, offset int) ([]*Summary, int, error) {
	return r.next.List(ctx, limit, offset)
}

func (r *cachedRepo) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		r.logger.Warn().Err(err).Msg("bundle cache unreachable")
	}
	return r.next.Ping(ctx)
}

func (r *cachedRepo) put(ctx context.Context, b *StoredBundle) {
	raw, err := json.Marshal(b)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, cacheKeyPrefix+b.ID, raw, r.ttl).Err(); err != nil {
		r.logger.Warn().Err(err).Str("bundle_id", b.ID).Msg("bundle cache write failed")
	}
}
