// Package redis keeps mappings as JSON values under `<prefix><shortId>`, the
// layout the Python bot used.
package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/filmzi/filelink/backend/internal/storage/record"
	"github.com/filmzi/filelink/shared/config"
	"github.com/filmzi/filelink/shared/domain"
	internal_errors "github.com/filmzi/filelink/shared/errors"
	goredis "github.com/redis/go-redis/v9"
)

type Storage struct {
	client *goredis.Client
	prefix string
}

func New(cfg *config.Config) *Storage {
	opts := &goredis.Options{
		Addr:     cfg.Public.DirectStore.Redis.Addr,
		Password: cfg.Private.RedisPassword,
		DB:       cfg.Public.DirectStore.Redis.DB,
	}
	if cfg.Public.DirectStore.Redis.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return NewWithClient(goredis.NewClient(opts), cfg.Public.DirectStore.Redis.KeyPrefix)
}

func NewWithClient(client *goredis.Client, prefix string) *Storage {
	return &Storage{client: client, prefix: prefix}
}

func (s *Storage) key(id domain.ShortId) string {
	return s.prefix + string(id)
}

func (s *Storage) Put(ctx context.Context, m domain.FileMapping) error {
	data, err := record.Encode(m, record.Bot)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(m.ShortId), data, 0).Err()
}

func (s *Storage) Get(ctx context.Context, id domain.ShortId) (domain.FileMapping, error) {
	val, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.FileMapping{}, internal_errors.NotFound
	}
	if err != nil {
		return domain.FileMapping{}, fmt.Errorf("redis get %s: %w", id, err)
	}
	return record.Decode(id, val)
}

// List walks the key space with SCAN. Values that fail to decode are skipped.
func (s *Storage) List(ctx context.Context) ([]domain.FileMapping, error) {
	var mappings []domain.FileMapping
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		val, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis get %s: %w", key, err)
		}
		m, err := record.Decode(domain.ShortId(key[len(s.prefix):]), val)
		if err != nil {
			continue
		}
		mappings = append(mappings, m)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return mappings, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Storage) Close() error {
	return s.client.Close()
}
