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
package mocks

import (
	"context"
	"time"

	"github.com/JerrettDavis/QuickApiMapper-sub001/internal/filter"
	"github.com/JerrettDavis/QuickApiMapper-sub001/model"
	"github.com/stretchr/testify/mock"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Mapping methods

func (m *MockDataSource) CreateMapping(ctx context.Context, mapping *model.IntegrationMapping) (*model.IntegrationMapping, error) {
	args := m.Called(ctx, mapping)
	return args.Get(0).(*model.IntegrationMapping), args.Error(1)
}

func (m *MockDataSource) GetAllMappings(ctx context.Context, limit, offset int) ([]model.IntegrationMapping, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]model.IntegrationMapping), args.Error(1)
}

func (m *MockDataSource) GetMappingByID(ctx context.Context, id string) (*model.IntegrationMapping, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*model.IntegrationMapping), args.Error(1)
}

func (m *MockDataSource) GetMappingByName(ctx context.Context, name string) (*model.IntegrationMapping, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(*model.IntegrationMapping), args.Error(1)
}

func (m *MockDataSource) GetMappingByEndpoint(ctx context.Context, endpoint string) (*model.IntegrationMapping, error) {
	args := m.Called(ctx, endpoint)
	return args.Get(0).(*model.IntegrationMapping), args.Error(1)
}

func (m *MockDataSource) UpdateMapping(ctx context.Context, mapping *model.IntegrationMapping) error {
	args := m.Called(ctx, mapping)
	return args.Error(0)
}

func (m *MockDataSource) DeleteMapping(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDataSource) GetGlobalStatics(ctx context.Context) (map[string]string, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *MockDataSource) GetNamespaces(ctx context.Context) (map[string]string, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *MockDataSource) SetGlobal(ctx context.Context, kind, key, value string) error {
	args := m.Called(ctx, kind, key, value)
	return args.Error(0)
}

func (m *MockDataSource) GetAllMappingsWithFilterAndOptions(ctx context.Context, filters *filter.QueryFilterSet, opts *filter.QueryOptions, limit, offset int) ([]model.IntegrationMapping, *int64, error) {
	args := m.Called(ctx, filters, opts, limit, offset)
	return args.Get(0).([]model.IntegrationMapping), args.Get(1).(*int64), args.Error(2)
}

// Capture methods

func (m *MockDataSource) RecordCapture(ctx context.Context, capture *model.MessageCapture) (*model.MessageCapture, error) {
	args := m.Called(ctx, capture)
	return args.Get(0).(*model.MessageCapture), args.Error(1)
}

func (m *MockDataSource) GetCaptureByID(ctx context.Context, id string) (*model.MessageCapture, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*model.MessageCapture), args.Error(1)
}

func (m *MockDataSource) GetAllCaptures(ctx context.Context, limit, offset int) ([]model.MessageCapture, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]model.MessageCapture), args.Error(1)
}

func (m *MockDataSource) GetCapturesByMapping(ctx context.Context, mappingName string, limit, offset int) ([]model.MessageCapture, error) {
	args := m.Called(ctx, mappingName, limit, offset)
	return args.Get(0).([]model.MessageCapture), args.Error(1)
}

func (m *MockDataSource) GetAllCapturesWithFilterAndOptions(ctx context.Context, filters *filter.QueryFilterSet, opts *filter.QueryOptions, limit, offset int) ([]model.MessageCapture, *int64, error) {
	args := m.Called(ctx, filters, opts, limit, offset)
	return args.Get(0).([]model.MessageCapture), args.Get(1).(*int64), args.Error(2)
}

func (m *MockDataSource) DeleteCapturesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}
