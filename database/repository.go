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
	"time"

	"github.com/JerrettDavis/QuickApiMapper-sub001/internal/filter"
	"github.com/JerrettDavis/QuickApiMapper-sub001/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	mapping // Interface for mapping configuration operations
	capture // Interface for message capture operations
}

// MappingStore is the read-only configuration surface consumed by the mapping
// service: every lookup the engine needs and nothing it does not. Datasource,
// FileStore and CachedStore all satisfy it.
type MappingStore interface {
	GetAllMappings(ctx context.Context, limit, offset int) ([]model.IntegrationMapping, error) // Retrieves mappings in pages
	GetMappingByID(ctx context.Context, id string) (*model.IntegrationMapping, error)          // Retrieves a mapping by ID
	GetMappingByName(ctx context.Context, name string) (*model.IntegrationMapping, error)      // Retrieves a mapping by name
	GetMappingByEndpoint(ctx context.Context, endpoint string) (*model.IntegrationMapping, error) // Retrieves the mapping serving an endpoint
	GetGlobalStatics(ctx context.Context) (map[string]string, error)                           // Retrieves the global static-value map
	GetNamespaces(ctx context.Context) (map[string]string, error)                              // Retrieves envelope namespace declarations (prefix -> URI)
}

// mapping defines methods for handling integration mappings.
type mapping interface {
	MappingStore
	CreateMapping(ctx context.Context, mapping *model.IntegrationMapping) (*model.IntegrationMapping, error)                                                               // Creates a new mapping
	UpdateMapping(ctx context.Context, mapping *model.IntegrationMapping) error                                                                                           // Updates an existing mapping
	DeleteMapping(ctx context.Context, id string) error                                                                                                                   // Deletes a mapping by ID
	SetGlobal(ctx context.Context, kind, key, value string) error                                                                                                         // Upserts one global static or namespace entry
	GetAllMappingsWithFilterAndOptions(ctx context.Context, filters *filter.QueryFilterSet, opts *filter.QueryOptions, limit, offset int) ([]model.IntegrationMapping, *int64, error) // Retrieves mappings with filtering and sorting
}

// capture defines methods for handling message captures.
type capture interface {
	RecordCapture(ctx context.Context, capture *model.MessageCapture) (*model.MessageCapture, error)                                                                  // Records a capture of one mapping run
	GetCaptureByID(ctx context.Context, id string) (*model.MessageCapture, error)                                                                                     // Retrieves a capture by ID
	GetAllCaptures(ctx context.Context, limit, offset int) ([]model.MessageCapture, error)                                                                            // Retrieves captures in pages
	GetCapturesByMapping(ctx context.Context, mappingName string, limit, offset int) ([]model.MessageCapture, error)                                                  // Retrieves captures for one mapping
	GetAllCapturesWithFilterAndOptions(ctx context.Context, filters *filter.QueryFilterSet, opts *filter.QueryOptions, limit, offset int) ([]model.MessageCapture, *int64, error) // Retrieves captures with filtering and sorting
	DeleteCapturesBefore(ctx context.Context, cutoff time.Time) (int64, error)                                                                                        // Deletes captures older than the cutoff
}
