package store

import (
	"context"
	"encoding/json"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"storywoven/pkg/schema"
)

// CachedStore is a read-through cache in front of another Store. Loads hand
// out deep copies so callers never mutate a cached document in place; writes
// go straight through and invalidate.
type CachedStore struct {
	inner Store
	cache *gocache.Cache
}

func NewCachedStore(inner Store, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedStore{
		inner: inner,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (s *CachedStore) LoadProject(ctx context.Context, id string) (*schema.Project, error) {
	if v, ok := s.cache.Get(id); ok {
		return copyProject(v.(*schema.Project))
	}
	p, err := s.inner.LoadProject(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(id, p)
	return copyProject(p)
}

func (s *CachedStore) WriteProject(ctx context.Context, p *schema.Project) error {
	if err := s.inner.WriteProject(ctx, p); err != nil {
		s.cache.Delete(p.ID)
		return err
	}
	cached, err := copyProject(p)
	if err != nil {
		s.cache.Delete(p.ID)
		return nil
	}
	s.cache.SetDefault(p.ID, cached)
	return nil
}

func copyProject(p *schema.Project) (*schema.Project, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var out schema.Project
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
