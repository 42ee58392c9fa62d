package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"VendorLink/internal/domain/models"
	"VendorLink/internal/domain/repository"
	"VendorLink/pkg/cache"
)

const (
	deploymentPrefix  = "deployment"
	idempotencyPrefix = "idem"
)

// CacheDeploymentStore keeps deployments in a cache.Service without expiry.
type CacheDeploymentStore struct {
	c cache.Service
}

func NewCacheDeploymentStore(c cache.Service) *CacheDeploymentStore {
	return &CacheDeploymentStore{c: c}
}

func (s *CacheDeploymentStore) Get(ctx context.Context, id string) (models.Deployment, error) {
	var d models.Deployment
	err := s.c.Get(ctx, cache.GenerateKey(deploymentPrefix, id), &d)
	if errors.Is(err, cache.ErrCacheMiss) {
		return models.Deployment{}, repository.ErrDeploymentNotFound
	}
	if err != nil {
		return models.Deployment{}, fmt.Errorf("get deployment %s: %w", id, err)
	}
	return d, nil
}

func (s *CacheDeploymentStore) Put(ctx context.Context, d models.Deployment) error {
	if err := s.c.Set(ctx, cache.GenerateKey(deploymentPrefix, d.ID), d, 0); err != nil {
		return fmt.Errorf("put deployment %s: %w", d.ID, err)
	}
	return nil
}

// List returns every deployment ordered by id.
func (s *CacheDeploymentStore) List(ctx context.Context) ([]models.Deployment, error) {
	keys, err := s.c.Keys(ctx, cache.BuildPattern(deploymentPrefix))
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	found, err := cache.MGetTyped[models.Deployment](ctx, s.c, keys...)
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	out := make([]models.Deployment, 0, len(found))
	for _, d := range found {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CacheDedupGuard claims idempotency keys with a cache lock that expires after ttl.
type CacheDedupGuard struct {
	c   cache.Service
	ttl time.Duration
}

func NewCacheDedupGuard(c cache.Service, ttl time.Duration) *CacheDedupGuard {
	return &CacheDedupGuard{c: c, ttl: ttl}
}

func (g *CacheDedupGuard) Claim(ctx context.Context, key string) (bool, error) {
	return g.c.TryLock(ctx, cache.GenerateKey(idempotencyPrefix, key), g.ttl)
}

func (g *CacheDedupGuard) Release(ctx context.Context, key string) error {
	return g.c.Unlock(ctx, cache.GenerateKey(idempotencyPrefix, key))
}

var (
	_ repository.DeploymentStore = (*CacheDeploymentStore)(nil)
	_ repository.DedupGuard      = (*CacheDedupGuard)(nil)
)
