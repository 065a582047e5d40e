package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"storywoven/pkg/schema"
)

const redisKeyPrefix = "storywoven:project:"

// RedisStore keeps each project as one JSON value; SET replaces the whole
// document, so the last writer wins.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(addr, password string, db int) *RedisStore {
	return &RedisStore{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (s *RedisStore) LoadProject(ctx context.Context, id string) (*schema.Project, error) {
	data, err := s.rdb.Get(ctx, redisKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("loading project %s: %w", id, err)
	}
	var p schema.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding project %s: %w", id, err)
	}
	return &p, nil
}

func (s *RedisStore) WriteProject(ctx context.Context, p *schema.Project) error {
	p.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding project %s: %w", p.ID, err)
	}
	if err := s.rdb.Set(ctx, redisKeyPrefix+p.ID, data, 0).Err(); err != nil {
		return fmt.Errorf("writing project %s: %w", p.ID, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
