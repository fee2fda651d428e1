package database

import (
	"context"
	"log"
	"time"

	"github.com/JerrettDavis/QuickApiMapper-sub001/internal/cache"
	"github.com/JerrettDavis/QuickApiMapper-sub001/model"
)

// Cache keys are namespaced per lookup column so a change notification can
// invalidate every alias of one mapping without a re-query.
const (
	cacheKeyMappingID       = "mapping:id:"
	cacheKeyMappingName     = "mapping:name:"
	cacheKeyMappingEndpoint = "mapping:endpoint:"
	cacheKeyGlobalStatics   = "mapping:globals:static"
	cacheKeyNamespaces      = "mapping:globals:namespace"
)

// CachedStore decorates any MappingStore with TTL-based caching of single-key
// lookups. List queries pass through uncached; their key space is unbounded.
// It implements pg_listener.NotificationHandler so mapping changes published
// on the database channel evict stale entries before their TTL runs out.
type CachedStore struct {
	store MappingStore
	cache cache.Cache
	ttl   time.Duration
}

func NewCachedStore(store MappingStore, c cache.Cache, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedStore{store: store, cache: c, ttl: ttl}
}

func (c *CachedStore) GetAllMappings(ctx context.Context, limit, offset int) ([]model.IntegrationMapping, error) {
	return c.store.GetAllMappings(ctx, limit, offset)
}

func (c *CachedStore) GetMappingByID(ctx context.Context, id string) (*model.IntegrationMapping, error) {
	return c.getMapping(ctx, cacheKeyMappingID+id, func() (*model.IntegrationMapping, error) {
		return c.store.GetMappingByID(ctx, id)
	})
}

func (c *CachedStore) GetMappingByName(ctx context.Context, name string) (*model.IntegrationMapping, error) {
	return c.getMapping(ctx, cacheKeyMappingName+name, func() (*model.IntegrationMapping, error) {
		return c.store.GetMappingByName(ctx, name)
	})
}

func (c *CachedStore) GetMappingByEndpoint(ctx context.Context, endpoint string) (*model.IntegrationMapping, error) {
	return c.getMapping(ctx, cacheKeyMappingEndpoint+endpoint, func() (*model.IntegrationMapping, error) {
		return c.store.GetMappingByEndpoint(ctx, endpoint)
	})
}

func (c *CachedStore) GetGlobalStatics(ctx context.Context) (map[string]string, error) {
	return c.getGlobals(ctx, cacheKeyGlobalStatics, c.store.GetGlobalStatics)
}

func (c *CachedStore) GetNamespaces(ctx context.Context) (map[string]string, error) {
	return c.getGlobals(ctx, cacheKeyNamespaces, c.store.GetNamespaces)
}

func (c *CachedStore) getMapping(ctx context.Context, key string, fetch func() (*model.IntegrationMapping, error)) (*model.IntegrationMapping, error) {
	var cached model.IntegrationMapping
	err := c.cache.Get(ctx, key, &cached)
	if err == nil && cached.MappingID != "" {
		return &cached, nil
	}

	mapping, err := fetch()
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, key, mapping, c.ttl); err != nil {
		// Log the error, but don't return it as the main operation succeeded
		log.Printf("Failed to cache mapping: %v", err)
	}

	return mapping, nil
}

func (c *CachedStore) getGlobals(ctx context.Context, key string, fetch func(ctx context.Context) (map[string]string, error)) (map[string]string, error) {
	var cached map[string]string
	err := c.cache.Get(ctx, key, &cached)
	if err == nil && cached != nil {
		return cached, nil
	}

	globals, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, key, globals, c.ttl); err != nil {
		// Log the error, but don't return it as the main operation succeeded
		log.Printf("Failed to cache globals: %v", err)
	}

	return globals, nil
}

// HandleNotification evicts cache entries for a changed row. Payloads carry
// the identifying columns of the row (see the notify triggers in db.go), so
// every alias key can be deleted without querying the store.
func (c *CachedStore) HandleNotification(table string, data map[string]interface{}) error {
	ctx := context.Background()

	switch table {
	case "mappings":
		if id, ok := data["mapping_id"].(string); ok && id != "" {
			c.evict(ctx, cacheKeyMappingID+id)
		}
		if name, ok := data["name"].(string); ok && name != "" {
			c.evict(ctx, cacheKeyMappingName+name)
		}
		if endpoint, ok := data["endpoint"].(string); ok && endpoint != "" {
			c.evict(ctx, cacheKeyMappingEndpoint+endpoint)
		}
	case "globals":
		c.evict(ctx, cacheKeyGlobalStatics)
		c.evict(ctx, cacheKeyNamespaces)
	}

	return nil
}

func (c *CachedStore) evict(ctx context.Context, key string) {
	if err := c.cache.Delete(ctx, key); err != nil {
		log.Printf("Failed to evict cache key %s: %v", key, err)
	}
}
