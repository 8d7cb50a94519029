package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/LJTian/TheNews/internal/config"
	"github.com/LJTian/TheNews/internal/logger"
	"github.com/LJTian/TheNews/internal/news"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Keys of the persisted schema.
const (
	KeyInterval    = "interval"
	KeyCategories  = "categories"
	KeyCycle       = "cycle"
	KeyResults     = "results"
	KeyLanguage    = "language"
	KeyTimestamp   = "timestamp"
	KeyCacheExpiry = "cache_expiry"
)

var allKeys = []string{KeyInterval, KeyCategories, KeyCycle, KeyResults, KeyLanguage, KeyTimestamp, KeyCacheExpiry}

// CacheEntry is the last successful fetch. A zero Timestamp means "never".
type CacheEntry struct {
	Results   news.ResultSet `json:"results"`
	Timestamp int64          `json:"timestamp"`
}

// Age is how long ago the entry was written.
func (c CacheEntry) Age(now time.Time) time.Duration {
	return time.Duration(now.Unix()-c.Timestamp) * time.Second
}

// Fresh reports whether now - timestamp < expiry.
func (c CacheEntry) Fresh(now time.Time, expiry time.Duration) bool {
	if c.Timestamp == 0 {
		return false
	}
	return now.Unix()-c.Timestamp < int64(expiry/time.Second)
}

type Store struct {
	KV    KV
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStore wires the configured backend. Postgres, when configured, also
// backs the story archive regardless of which backend holds the state.
func NewStore(cfg *config.Config) (*Store, error) {
	s := &Store{}

	if cfg.PostgresDSN != "" {
		db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
		if err != nil {
			return nil, err
		}
		if err := db.AutoMigrate(&KVEntry{}, &StoryRecord{}); err != nil {
			return nil, err
		}
		s.DB = db
	}

	switch cfg.StorageBackend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.S().Warnf("redis ping failed: %v", err)
		}
		s.Redis = rdb
		s.KV = NewRedisKV(rdb, cfg.KeyPrefix)
	case "postgres":
		if s.DB == nil {
			return nil, errors.New("storage: postgres backend requires POSTGRES_DSN")
		}
		s.KV = NewGormKV(s.DB)
	case "memory", "":
		s.KV = NewMemoryKV()
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.StorageBackend)
	}
	return s, nil
}

// NewMemoryStore is a store with no external dependencies.
func NewMemoryStore() *Store {
	return &Store{KV: NewMemoryKV()}
}

func (s *Store) Close() error {
	var errs []error
	if s.Redis != nil {
		errs = append(errs, s.Redis.Close())
	}
	if s.DB != nil {
		if sqlDB, err := s.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}

// Load reads options and cache in one round trip. Missing keys fall back to
// defaults; unreadable values are logged and treated as missing.
func (s *Store) Load(ctx context.Context) (config.Options, CacheEntry, error) {
	opts := config.DefaultOptions()
	var entry CacheEntry

	vals, err := s.KV.Get(ctx, allKeys...)
	if err != nil {
		return opts, entry, fmt.Errorf("loading state: %w", err)
	}

	decode := func(key string, dst any) {
		raw, ok := vals[key]
		if !ok || len(raw) == 0 {
			return
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			logger.S().Warnf("storage: ignoring unreadable %q: %v", key, err)
		}
	}
	decode(KeyInterval, &opts.Interval)
	decode(KeyCategories, &opts.Categories)
	decode(KeyCycle, &opts.Cycle)
	decode(KeyLanguage, &opts.Language)
	decode(KeyCacheExpiry, &opts.CacheExpiry)

	var results news.ResultSet
	decode(KeyResults, &results)
	var ts *int64
	decode(KeyTimestamp, &ts)
	entry.Results = results
	if ts != nil {
		entry.Timestamp = *ts
	}
	return opts, entry, nil
}

func (s *Store) LoadOptions(ctx context.Context) (config.Options, error) {
	opts, _, err := s.Load(ctx)
	return opts, err
}

func (s *Store) LoadCache(ctx context.Context) (CacheEntry, error) {
	_, entry, err := s.Load(ctx)
	return entry, err
}

// SaveOptions writes the user settings; the cache keys are left alone.
func (s *Store) SaveOptions(ctx context.Context, o config.Options) error {
	values, err := encodeAll(map[string]any{
		KeyInterval:    o.Interval,
		KeyCategories:  o.Categories,
		KeyCycle:       o.Cycle,
		KeyLanguage:    o.Language,
		KeyCacheExpiry: o.CacheExpiry,
	})
	if err != nil {
		return err
	}
	if err := s.KV.SetMany(ctx, values); err != nil {
		return fmt.Errorf("saving options: %w", err)
	}
	return nil
}

// SaveCache replaces results and timestamp together.
func (s *Store) SaveCache(ctx context.Context, rs news.ResultSet, at time.Time) error {
	if rs.Stories == nil {
		rs.Stories = []news.Story{}
	}
	values, err := encodeAll(map[string]any{
		KeyResults:   rs,
		KeyTimestamp: at.Unix(),
	})
	if err != nil {
		return err
	}
	if err := s.KV.SetMany(ctx, values); err != nil {
		return fmt.Errorf("saving results: %w", err)
	}
	return nil
}

func encodeAll(in map[string]any) (map[string][]byte, error) {
	out := make(map[string][]byte, len(in))
	for k, v := range in {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding %q: %w", k, err)
		}
		out[k] = b
	}
	return out, nil
}
