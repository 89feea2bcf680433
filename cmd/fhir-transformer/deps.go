package main

import (
	"context"
	"fmt"

	"github.com/couchbase/gocb/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/ehr/fhirtransform/internal/config"
	"github.com/ehr/fhirtransform/internal/domain/bundle"
	"github.com/ehr/fhirtransform/internal/platform/db"
	"github.com/ehr/fhirtransform/internal/platform/notification"
	"github.com/ehr/fhirtransform/internal/platform/webhook"
	"github.com/ehr/fhirtransform/migrations"
)

// store is the opened bundle backend plus whatever has to be closed on
// shutdown. pool is set only for the postgres backend.
type store struct {
	repo    bundle.Repository
	pool    *pgxpool.Pool
	closers []func()
}

func (s *store) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*store, error) {
	s := &store{}

	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		s.pool = pool
		s.closers = append(s.closers, pool.Close)
		s.repo = bundle.NewBundleRepoPG(pool)
		logger.Info().Msg("connected to database")
	case config.BackendCouchbase:
		cluster, err := bundle.ConnectCouchbase(bundle.CouchbaseConfig{
			ConnString: cfg.CouchbaseURL,
			Username:   cfg.CouchbaseUsername,
			Password:   cfg.CouchbasePassword,
			Bucket:     cfg.CouchbaseBucket,
		})
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = cluster.Close(&gocb.ClusterCloseOptions{}) })
		s.repo = bundle.NewBundleRepoCouchbase(cluster, cfg.CouchbaseBucket)
		logger.Info().Str("bucket", cfg.CouchbaseBucket).Msg("connected to couchbase")
	case config.BackendMemory:
		s.repo = bundle.NewMemoryRepo()
		logger.Warn().Msg("using in-memory bundle store; bundles are lost on restart")
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	if cfg.RedisURL != "" {
		client, err := bundle.NewRedisClient(cfg.RedisURL)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		s.closers = append(s.closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("bundle cache unreachable at startup")
		}
		s.repo = bundle.WithRedisCache(s.repo, client, cfg.CacheTTL, logger)
		logger.Info().Dur("ttl", cfg.CacheTTL).Msg("bundle cache enabled")
	}

	return s, nil
}

// newMigrator reads migrations from dir, or from the copies embedded in the
// binary when dir is empty.
func newMigrator(pool *pgxpool.Pool, dir string) *db.Migrator {
	if dir == "" {
		return db.NewMigratorFS(pool, migrations.FS)
	}
	return db.NewMigrator(pool, dir)
}

// openPublishers connects every configured bundle.created channel and adds
// the always-on extra channels.
func openPublishers(cfg *config.Config, logger zerolog.Logger, extra ...notification.Publisher) (notification.Publisher, func(), error) {
	var (
		pubs    = append(notification.Multi{}, extra...)
		closers []func()
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.WebhookURL != "" {
		d, err := webhook.New(webhook.Config{
			URL:        cfg.WebhookURL,
			Secret:     cfg.WebhookSecret,
			MaxRetries: cfg.WebhookMaxRetries,
			Timeout:    cfg.WebhookTimeout,
		})
		if err != nil {
			return nil, closeAll, err
		}
		pubs = append(pubs, d)
		logger.Info().Str("url", cfg.WebhookURL).Msg("webhook notifications enabled")
	}

	if cfg.MQTTBroker != "" {
		p, err := notification.NewMQTTPublisher(notification.MQTTConfig{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Topic:    cfg.MQTTTopic,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
		})
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		closers = append(closers, p.Close)
		pubs = append(pubs, p)
		logger.Info().Str("broker", cfg.MQTTBroker).Str("topic", cfg.MQTTTopic).Msg("MQTT notifications enabled")
	}

	switch len(pubs) {
	case 0:
		return notification.Nop{}, closeAll, nil
	case 1:
		return pubs[0], closeAll, nil
	default:
		return pubs, closeAll, nil
	}
}
