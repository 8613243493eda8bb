package main

import (
	"context"
	"fmt"
	"log"

	"github.com/fortuna/diamond/internal/cache"
	"github.com/fortuna/diamond/internal/feed"
	"github.com/fortuna/diamond/internal/normalize"
	"github.com/fortuna/diamond/internal/store"
)

func openDatabase(ctx context.Context) (*store.Database, error) {
	db, err := store.NewDatabase(ctx, cfg.Database.DSN, cfg.Database.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	log.Println("✓ Connected to database")

	if err := db.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	log.Println("✓ Database migrations applied")
	return db, nil
}

// openCache returns nil when Redis is disabled.
func openCache(ctx context.Context) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(ctx, cfg.Redis.URL, cfg.Redis.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	log.Println("✓ Connected to Redis")
	return rc, nil
}

func newFeedClient(rc *cache.RedisCache) *feed.Client {
	opts := feed.Options{
		BaseURL:  cfg.StatsAPI.BaseURL,
		Timeout:  cfg.StatsAPI.Timeout,
		Retries:  cfg.StatsAPI.Retries,
		CacheTTL: cfg.StatsAPI.CacheTTL,
	}
	if rc != nil {
		opts.Cache = rc
	}
	return feed.New(opts)
}

func newDriver(sink normalize.Sink, observers ...normalize.Observer) (*normalize.Driver, error) {
	policy, err := normalize.ParseRISPPolicy(cfg.Normalize.RISPPolicy)
	if err != nil {
		return nil, err
	}
	return normalize.NewDriver(normalize.Config{
		Workers:    cfg.Normalize.Workers,
		RISPPolicy: policy,
	}, sink, observers...), nil
}
