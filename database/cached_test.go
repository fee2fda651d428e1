/*
Copyright 2025 QuickApiMapper Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/JerrettDavis/QuickApiMapper-sub001/internal/apierror"
	"github.com/JerrettDavis/QuickApiMapper-sub001/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore serves a fixed mapping and counts how often each lookup
// reaches it, so tests can tell cache hits from misses.
type countingStore struct {
	mapping     model.IntegrationMapping
	statics     map[string]string
	namespaces  map[string]string
	idCalls     int
	nameCalls   int
	epCalls     int
	allCalls    int
	staticCalls int
	nsCalls     int
}

func (s *countingStore) GetAllMappings(ctx context.Context, limit, offset int) ([]model.IntegrationMapping, error) {
	s.allCalls++
	return []model.IntegrationMapping{s.mapping}, nil
}

func (s *countingStore) GetMappingByID(ctx context.Context, id string) (*model.IntegrationMapping, error) {
	s.idCalls++
	if id != s.mapping.MappingID {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "Mapping not found", nil)
	}
	m := s.mapping
	return &m, nil
}

func (s *countingStore) GetMappingByName(ctx context.Context, name string) (*model.IntegrationMapping, error) {
	s.nameCalls++
	if name != s.mapping.Name {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "Mapping not found", nil)
	}
	m := s.mapping
	return &m, nil
}

func (s *countingStore) GetMappingByEndpoint(ctx context.Context, endpoint string) (*model.IntegrationMapping, error) {
	s.epCalls++
	if endpoint != s.mapping.Endpoint {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "Mapping not found", nil)
	}
	m := s.mapping
	return &m, nil
}

func (s *countingStore) GetGlobalStatics(ctx context.Context) (map[string]string, error) {
	s.staticCalls++
	return s.statics, nil
}

func (s *countingStore) GetNamespaces(ctx context.Context) (map[string]string, error) {
	s.nsCalls++
	return s.namespaces, nil
}

// memCache is a map-backed cache.Cache that round-trips values through JSON
// the same way the Redis-backed cache does.
type memCache struct {
	entries map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]byte{}}
}

func (c *memCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = data
	return nil
}

func (c *memCache) Get(ctx context.Context, key string, data interface{}) error {
	raw, ok := c.entries[key]
	if !ok {
		return nil
	}
	return json.Unmarshal(raw, data)
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	delete(c.entries, key)
	return nil
}

func newCachedFixture() (*CachedStore, *countingStore) {
	store := &countingStore{
		mapping: model.IntegrationMapping{
			MappingID:       "map1",
			Name:            "crm-orders",
			Endpoint:        "crm-orders",
			SourceType:      model.PayloadJSON,
			DestinationType: model.PayloadXML,
			FieldMappings:   []model.FieldMapping{{Source: "$.order.id", Destination: "/Order/Id"}},
		},
		statics:    map[string]string{"company": "Acme Corp"},
		namespaces: map[string]string{},
	}
	return NewCachedStore(store, newMemCache(), time.Minute), store
}

func TestCachedStore_CachesMappingLookups(t *testing.T) {
	cached, store := newCachedFixture()
	ctx := context.Background()

	first, err := cached.GetMappingByID(ctx, "map1")
	require.NoError(t, err)
	second, err := cached.GetMappingByID(ctx, "map1")
	require.NoError(t, err)

	assert.Equal(t, 1, store.idCalls)
	assert.Equal(t, first.Name, second.Name)
	assert.Len(t, second.FieldMappings, 1)

	_, err = cached.GetMappingByName(ctx, "crm-orders")
	require.NoError(t, err)
	_, err = cached.GetMappingByName(ctx, "crm-orders")
	require.NoError(t, err)
	assert.Equal(t, 1, store.nameCalls)

	_, err = cached.GetMappingByEndpoint(ctx, "crm-orders")
	require.NoError(t, err)
	_, err = cached.GetMappingByEndpoint(ctx, "crm-orders")
	require.NoError(t, err)
	assert.Equal(t, 1, store.epCalls)
}

func TestCachedStore_CachesGlobals(t *testing.T) {
	cached, store := newCachedFixture()
	ctx := context.Background()

	statics, err := cached.GetGlobalStatics(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", statics["company"])

	_, err = cached.GetGlobalStatics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, store.staticCalls)
}

func TestCachedStore_CachesEmptyGlobals(t *testing.T) {
	// An empty map is a valid cached value and must not be mistaken for a miss.
	cached, store := newCachedFixture()
	ctx := context.Background()

	namespaces, err := cached.GetNamespaces(ctx)
	require.NoError(t, err)
	assert.Len(t, namespaces, 0)

	_, err = cached.GetNamespaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, store.nsCalls)
}

func TestCachedStore_ErrorsAreNotCached(t *testing.T) {
	cached, store := newCachedFixture()
	ctx := context.Background()

	_, err := cached.GetMappingByID(ctx, "map_missing")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)

	_, err = cached.GetMappingByID(ctx, "map_missing")
	assert.Error(t, err)
	assert.Equal(t, 2, store.idCalls)
}

func TestCachedStore_GetAllPassesThrough(t *testing.T) {
	cached, store := newCachedFixture()
	ctx := context.Background()

	_, err := cached.GetAllMappings(ctx, 20, 0)
	require.NoError(t, err)
	_, err = cached.GetAllMappings(ctx, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, store.allCalls)
}

func TestCachedStore_HandleNotificationEvicts(t *testing.T) {
	cached, store := newCachedFixture()
	ctx := context.Background()

	_, err := cached.GetMappingByID(ctx, "map1")
	require.NoError(t, err)
	_, err = cached.GetMappingByEndpoint(ctx, "crm-orders")
	require.NoError(t, err)

	err = cached.HandleNotification("mappings", map[string]interface{}{
		"mapping_id": "map1",
		"name":       "crm-orders",
		"endpoint":   "crm-orders",
		"op":         "UPDATE",
	})
	require.NoError(t, err)

	_, err = cached.GetMappingByID(ctx, "map1")
	require.NoError(t, err)
	_, err = cached.GetMappingByEndpoint(ctx, "crm-orders")
	require.NoError(t, err)

	assert.Equal(t, 2, store.idCalls)
	assert.Equal(t, 2, store.epCalls)
}

func TestCachedStore_HandleNotificationGlobals(t *testing.T) {
	cached, store := newCachedFixture()
	ctx := context.Background()

	_, err := cached.GetGlobalStatics(ctx)
	require.NoError(t, err)

	err = cached.HandleNotification("globals", map[string]interface{}{
		"kind": GlobalKindStatic,
		"key":  "company",
		"op":   "UPDATE",
	})
	require.NoError(t, err)

	_, err = cached.GetGlobalStatics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, store.staticCalls)
}
