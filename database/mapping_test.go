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
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/JerrettDavis/QuickApiMapper-sub001/internal/apierror"
	"github.com/JerrettDavis/QuickApiMapper-sub001/internal/filter"
	"github.com/JerrettDavis/QuickApiMapper-sub001/model"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func testMapping() *model.IntegrationMapping {
	return &model.IntegrationMapping{
		Name:            "crm-orders",
		Endpoint:        "crm-orders",
		SourceType:      model.PayloadJSON,
		DestinationType: model.PayloadXML,
		DestinationURL:  "https://erp.example.com/orders",
		StaticValues:    map[string]string{"channel": "web"},
		FieldMappings: []model.FieldMapping{
			{Source: "$.order.id", Destination: "/Order/Id"},
		},
		MetaData: map[string]interface{}{"team": "integrations"},
	}
}

func mappingJSONColumns(t *testing.T, mapping *model.IntegrationMapping) (staticJSON, fieldsJSON, soapJSON, authJSON, metaDataJSON []byte) {
	t.Helper()
	var err error
	staticJSON, err = json.Marshal(mapping.StaticValues)
	assert.NoError(t, err)
	fieldsJSON, err = json.Marshal(mapping.FieldMappings)
	assert.NoError(t, err)
	soapJSON, err = json.Marshal(mapping.SoapConfig)
	assert.NoError(t, err)
	authJSON, err = json.Marshal(mapping.Auth)
	assert.NoError(t, err)
	metaDataJSON, err = json.Marshal(mapping.MetaData)
	assert.NoError(t, err)
	return staticJSON, fieldsJSON, soapJSON, authJSON, metaDataJSON
}

func TestCreateMapping_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mapping := testMapping()
	staticJSON, fieldsJSON, soapJSON, authJSON, metaDataJSON := mappingJSONColumns(t, mapping)

	mock.ExpectExec("INSERT INTO qam.mappings").
		WithArgs(sqlmock.AnyArg(), mapping.Name, mapping.Endpoint, mapping.SourceType, mapping.DestinationType, mapping.DestinationURL, staticJSON, fieldsJSON, soapJSON, authJSON, metaDataJSON).
		WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := ds.CreateMapping(context.Background(), mapping)
	assert.NoError(t, err)
	assert.NotEmpty(t, created.MappingID)
	assert.WithinDuration(t, time.Now(), created.CreatedAt, time.Second)
}

func TestCreateMapping_UniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mapping := testMapping()
	staticJSON, fieldsJSON, soapJSON, authJSON, metaDataJSON := mappingJSONColumns(t, mapping)

	mock.ExpectExec("INSERT INTO qam.mappings").
		WithArgs(sqlmock.AnyArg(), mapping.Name, mapping.Endpoint, mapping.SourceType, mapping.DestinationType, mapping.DestinationURL, staticJSON, fieldsJSON, soapJSON, authJSON, metaDataJSON).
		WillReturnError(&pq.Error{Code: "23505", Message: "unique_violation"})

	_, err = ds.CreateMapping(context.Background(), mapping)
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrConflict, apiErr.Code)
}

func TestCreateMapping_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mapping := testMapping()
	staticJSON, fieldsJSON, soapJSON, authJSON, metaDataJSON := mappingJSONColumns(t, mapping)

	mock.ExpectExec("INSERT INTO qam.mappings").
		WithArgs(sqlmock.AnyArg(), mapping.Name, mapping.Endpoint, mapping.SourceType, mapping.DestinationType, mapping.DestinationURL, staticJSON, fieldsJSON, soapJSON, authJSON, metaDataJSON).
		WillReturnError(&pq.Error{Code: "42P01", Message: "relation does not exist"})

	_, err = ds.CreateMapping(context.Background(), mapping)
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrInternalServer, apiErr.Code)
}

func mappingRows(t *testing.T, mappings ...*model.IntegrationMapping) *sqlmock.Rows {
	t.Helper()
	rows := sqlmock.NewRows([]string{"mapping_id", "name", "endpoint", "source_type", "destination_type", "destination_url", "static_values", "field_mappings", "soap_config", "auth_config", "created_at", "meta_data"})
	for _, m := range mappings {
		staticJSON, fieldsJSON, soapJSON, authJSON, metaDataJSON := mappingJSONColumns(t, m)
		rows.AddRow(m.MappingID, m.Name, m.Endpoint, string(m.SourceType), string(m.DestinationType), m.DestinationURL, staticJSON, fieldsJSON, soapJSON, authJSON, time.Now(), metaDataJSON)
	}
	return rows
}

func TestGetAllMappings_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	first := testMapping()
	first.MappingID = "map1"
	second := testMapping()
	second.MappingID = "map2"
	second.Name = "inventory-sync"
	second.Endpoint = "inventory-sync"

	mock.ExpectQuery("SELECT mapping_id, name, endpoint, source_type, destination_type, destination_url, static_values, field_mappings, soap_config, auth_config, created_at, meta_data FROM qam.mappings ORDER BY created_at DESC LIMIT \\$1 OFFSET \\$2").
		WithArgs(2, 0).
		WillReturnRows(mappingRows(t, first, second))

	mappings, err := ds.GetAllMappings(context.Background(), 2, 0)
	assert.NoError(t, err)
	assert.Len(t, mappings, 2)
	assert.Equal(t, "crm-orders", mappings[0].Name)
	assert.Equal(t, model.PayloadXML, mappings[0].DestinationType)
	assert.Len(t, mappings[0].FieldMappings, 1)
}

func TestGetAllMappings_Empty(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT mapping_id, name, endpoint, source_type, destination_type, destination_url, static_values, field_mappings, soap_config, auth_config, created_at, meta_data FROM qam.mappings ORDER BY created_at DESC LIMIT \\$1 OFFSET \\$2").
		WithArgs(20, 0).
		WillReturnRows(mappingRows(t))

	mappings, err := ds.GetAllMappings(context.Background(), 20, 0)
	assert.NoError(t, err)
	assert.Len(t, mappings, 0)
}

func TestGetMappingByID_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	stored := testMapping()
	stored.MappingID = "map1"
	stored.SoapConfig = &model.SoapConfig{
		Body: []model.SoapFieldConfig{{XPath: "/ProcessOrder", Namespace: "urn:erp:orders", Prefix: "ord"}},
	}

	mock.ExpectQuery("SELECT mapping_id, name, endpoint, source_type, destination_type, destination_url, static_values, field_mappings, soap_config, auth_config, created_at, meta_data FROM qam.mappings WHERE mapping_id = ?").
		WithArgs("map1").
		WillReturnRows(mappingRows(t, stored))

	mapping, err := ds.GetMappingByID(context.Background(), "map1")
	assert.NoError(t, err)
	assert.Equal(t, "crm-orders", mapping.Name)
	assert.NotNil(t, mapping.SoapConfig)
	assert.Equal(t, "urn:erp:orders", mapping.SoapConfig.Body[0].Namespace)
	assert.Nil(t, mapping.Auth)
}

func TestGetMappingByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT mapping_id, name, endpoint, source_type, destination_type, destination_url, static_values, field_mappings, soap_config, auth_config, created_at, meta_data FROM qam.mappings WHERE mapping_id = ?").
		WithArgs("map_missing").
		WillReturnError(sql.ErrNoRows)

	_, err = ds.GetMappingByID(context.Background(), "map_missing")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}

func TestGetMappingByName_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	stored := testMapping()
	stored.MappingID = "map1"

	mock.ExpectQuery("SELECT mapping_id, name, endpoint, source_type, destination_type, destination_url, static_values, field_mappings, soap_config, auth_config, created_at, meta_data FROM qam.mappings WHERE name = ?").
		WithArgs("crm-orders").
		WillReturnRows(mappingRows(t, stored))

	mapping, err := ds.GetMappingByName(context.Background(), "crm-orders")
	assert.NoError(t, err)
	assert.Equal(t, "map1", mapping.MappingID)
}

func TestGetMappingByEndpoint_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	stored := testMapping()
	stored.MappingID = "map1"

	mock.ExpectQuery("SELECT mapping_id, name, endpoint, source_type, destination_type, destination_url, static_values, field_mappings, soap_config, auth_config, created_at, meta_data FROM qam.mappings WHERE endpoint = ?").
		WithArgs("crm-orders").
		WillReturnRows(mappingRows(t, stored))

	mapping, err := ds.GetMappingByEndpoint(context.Background(), "crm-orders")
	assert.NoError(t, err)
	assert.Equal(t, "web", mapping.StaticValues["channel"])
}

func TestGetMappingByEndpoint_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT mapping_id, name, endpoint, source_type, destination_type, destination_url, static_values, field_mappings, soap_config, auth_config, created_at, meta_data FROM qam.mappings WHERE endpoint = ?").
		WithArgs("unknown").
		WillReturnError(sql.ErrNoRows)

	_, err = ds.GetMappingByEndpoint(context.Background(), "unknown")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}

func TestUpdateMapping_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mapping := testMapping()
	mapping.MappingID = "map1"
	staticJSON, fieldsJSON, soapJSON, authJSON, metaDataJSON := mappingJSONColumns(t, mapping)

	mock.ExpectExec("UPDATE qam.mappings SET name").
		WithArgs(mapping.MappingID, mapping.Name, mapping.Endpoint, mapping.SourceType, mapping.DestinationType, mapping.DestinationURL, staticJSON, fieldsJSON, soapJSON, authJSON, metaDataJSON).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = ds.UpdateMapping(context.Background(), mapping)
	assert.NoError(t, err)

	err = mock.ExpectationsWereMet()
	assert.NoError(t, err)
}

func TestUpdateMapping_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mapping := testMapping()
	mapping.MappingID = "map_missing"
	staticJSON, fieldsJSON, soapJSON, authJSON, metaDataJSON := mappingJSONColumns(t, mapping)

	mock.ExpectExec("UPDATE qam.mappings SET name").
		WithArgs(mapping.MappingID, mapping.Name, mapping.Endpoint, mapping.SourceType, mapping.DestinationType, mapping.DestinationURL, staticJSON, fieldsJSON, soapJSON, authJSON, metaDataJSON).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = ds.UpdateMapping(context.Background(), mapping)
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}

func TestUpdateMapping_UniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mapping := testMapping()
	mapping.MappingID = "map1"
	staticJSON, fieldsJSON, soapJSON, authJSON, metaDataJSON := mappingJSONColumns(t, mapping)

	mock.ExpectExec("UPDATE qam.mappings SET name").
		WithArgs(mapping.MappingID, mapping.Name, mapping.Endpoint, mapping.SourceType, mapping.DestinationType, mapping.DestinationURL, staticJSON, fieldsJSON, soapJSON, authJSON, metaDataJSON).
		WillReturnError(&pq.Error{Code: "23505", Message: "unique_violation"})

	err = ds.UpdateMapping(context.Background(), mapping)
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrConflict, apiErr.Code)
}

func TestDeleteMapping_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("DELETE FROM qam.mappings WHERE mapping_id").
		WithArgs("map1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = ds.DeleteMapping(context.Background(), "map1")
	assert.NoError(t, err)
}

func TestDeleteMapping_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("DELETE FROM qam.mappings WHERE mapping_id").
		WithArgs("map_missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = ds.DeleteMapping(context.Background(), "map_missing")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}

func TestGetGlobalStatics_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	rows := sqlmock.NewRows([]string{"key", "value"}).
		AddRow("company", "Acme Corp").
		AddRow("channel", "api")

	mock.ExpectQuery("SELECT key, value FROM qam.globals WHERE kind = ?").
		WithArgs(GlobalKindStatic).
		WillReturnRows(rows)

	statics, err := ds.GetGlobalStatics(context.Background())
	assert.NoError(t, err)
	assert.Len(t, statics, 2)
	assert.Equal(t, "Acme Corp", statics["company"])
}

func TestGetNamespaces_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	rows := sqlmock.NewRows([]string{"key", "value"}).
		AddRow("ord", "urn:erp:orders")

	mock.ExpectQuery("SELECT key, value FROM qam.globals WHERE kind = ?").
		WithArgs(GlobalKindNamespace).
		WillReturnRows(rows)

	namespaces, err := ds.GetNamespaces(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "urn:erp:orders", namespaces["ord"])
}

func TestSetGlobal_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("INSERT INTO qam.globals").
		WithArgs(GlobalKindStatic, "company", "Acme Corp").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = ds.SetGlobal(context.Background(), GlobalKindStatic, "company", "Acme Corp")
	assert.NoError(t, err)
}

func TestSetGlobal_InvalidKind(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	err = ds.SetGlobal(context.Background(), "secrets", "company", "Acme Corp")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrInvalidInput, apiErr.Code)
}

func TestGetAllMappingsWithFilterAndOptions_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	stored := testMapping()
	stored.MappingID = "map1"

	mock.ExpectQuery("SELECT mapping_id, name, endpoint, source_type, destination_type, destination_url, static_values, field_mappings, soap_config, auth_config, created_at, meta_data FROM qam.mappings WHERE endpoint = \\$1 ORDER BY created_at DESC LIMIT \\$2 OFFSET \\$3").
		WithArgs("crm-orders", 10, 0).
		WillReturnRows(mappingRows(t, stored))

	filters := &filter.QueryFilterSet{Filters: []filter.QueryFilter{
		{Field: "endpoint", Operator: filter.OpEqual, Value: "crm-orders"},
	}}

	mappings, count, err := ds.GetAllMappingsWithFilterAndOptions(context.Background(), filters, nil, 10, 0)
	assert.NoError(t, err)
	assert.Nil(t, count)
	assert.Len(t, mappings, 1)
	assert.Equal(t, "map1", mappings[0].MappingID)
}

func TestGetAllMappingsWithFilterAndOptions_WithCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	stored := testMapping()
	stored.MappingID = "map1"
	staticJSON, fieldsJSON, soapJSON, authJSON, metaDataJSON := mappingJSONColumns(t, stored)

	rows := sqlmock.NewRows([]string{"mapping_id", "name", "endpoint", "source_type", "destination_type", "destination_url", "static_values", "field_mappings", "soap_config", "auth_config", "created_at", "meta_data", "total_count"}).
		AddRow(stored.MappingID, stored.Name, stored.Endpoint, string(stored.SourceType), string(stored.DestinationType), stored.DestinationURL, staticJSON, fieldsJSON, soapJSON, authJSON, time.Now(), metaDataJSON, int64(42))

	mock.ExpectQuery("SELECT mapping_id, name, endpoint, source_type, destination_type, destination_url, static_values, field_mappings, soap_config, auth_config, created_at, meta_data, COUNT\\(\\*\\) OVER\\(\\) AS total_count FROM qam.mappings WHERE source_type = \\$1 ORDER BY name ASC LIMIT \\$2 OFFSET \\$3").
		WithArgs("json", 10, 0).
		WillReturnRows(rows)

	filters := &filter.QueryFilterSet{Filters: []filter.QueryFilter{
		{Field: "source_type", Operator: filter.OpEqual, Value: "json"},
	}}
	opts := &filter.QueryOptions{SortBy: "name", SortOrder: filter.SortAsc, IncludeCount: true}

	mappings, count, err := ds.GetAllMappingsWithFilterAndOptions(context.Background(), filters, opts, 10, 0)
	assert.NoError(t, err)
	assert.Len(t, mappings, 1)
	assert.NotNil(t, count)
	assert.Equal(t, int64(42), *count)
}

func TestGetAllMappingsWithFilterAndOptions_InvalidSort(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	opts := &filter.QueryOptions{SortBy: "evil; DROP TABLE qam.mappings"}

	_, _, err = ds.GetAllMappingsWithFilterAndOptions(context.Background(), nil, opts, 10, 0)
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrBadRequest, apiErr.Code)
}
