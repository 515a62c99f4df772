package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/smallbiznis/vendorhub/internal/catalog/domain"
	"github.com/smallbiznis/vendorhub/internal/config"
	"github.com/smallbiznis/vendorhub/internal/observability/metrics"
	"go.uber.org/fx"
)

const (
	defaultServiceCacheSize = 512
	defaultServiceTTL       = time.Minute
)

var Module = fx.Module("cache",
	fx.Provide(NewServiceCache),
)

// ServiceCache keeps recently read services with their packages for the
// public pricing endpoints.
//
// Every Invalidate advances a generation. A read-through captures the
// generation before loading and stores its result with SetIfCurrent, so a
// load that overlapped a write never repopulates the cache with the record
// the write replaced.
type ServiceCache interface {
	Get(ctx context.Context, id string) (*domain.Service, bool)
	Generation() uint64
	SetIfCurrent(id string, svc *domain.Service, gen uint64) bool
	Invalidate(id string)
}

type serviceCache struct {
	mu      sync.Mutex
	gen     uint64
	items   Cache[string, *domain.Service]
	metrics *metrics.Metrics
}

type ServiceCacheParams struct {
	fx.In

	Config  config.Config
	Metrics *metrics.Metrics `optional:"true"`
}

func NewServiceCache(p ServiceCacheParams) ServiceCache {
	size := p.Config.Cache.Size
	if size <= 0 {
		size = defaultServiceCacheSize
	}
	ttl := p.Config.Cache.TTL
	if ttl <= 0 {
		ttl = defaultServiceTTL
	}
	return &serviceCache{
		items:   NewLRU[string, *domain.Service](size, ttl),
		metrics: p.Metrics,
	}
}

func (c *serviceCache) Get(ctx context.Context, id string) (*domain.Service, bool) {
	svc, ok := c.items.Get(cacheKey(id))
	c.metrics.RecordCacheLookup(ctx, "service", ok)
	return svc, ok
}

func (c *serviceCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func (c *serviceCache) SetIfCurrent(id string, svc *domain.Service, gen uint64) bool {
	if svc == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.items.Set(cacheKey(id), svc)
	return true
}

func (c *serviceCache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.items.Delete(cacheKey(id))
}

func cacheKey(parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, strings.ToLower(trimmed))
	}
	return strings.Join(values, "|")
}
