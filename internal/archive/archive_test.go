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

package archive

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JerrettDavis/QuickApiMapper-sub001/config"
	"github.com/JerrettDavis/QuickApiMapper-sub001/model"
)

func TestManager_Struct(t *testing.T) {
	m := &Manager{
		Config:   nil,
		S3Client: nil,
	}

	assert.NotNil(t, m)
	assert.Nil(t, m.Config)
	assert.Nil(t, m.S3Client)
}

func TestNewManager_NoBucketConfigured(t *testing.T) {
	m, err := NewManager(&config.Configuration{})
	require.NoError(t, err)
	assert.Nil(t, m.S3Client)
}

func TestNewManager_WithBucket(t *testing.T) {
	m, err := NewManager(&config.Configuration{
		S3BucketName:       "qam-archive",
		S3Region:           "us-east-1",
		AwsAccessKeyId:     "test",
		AwsSecretAccessKey: "test",
	})
	require.NoError(t, err)
	assert.NotNil(t, m.S3Client)
}

func TestManager_SpoolDeadLetter(t *testing.T) {
	m := &Manager{Config: &config.Configuration{BackupDir: t.TempDir()}}

	delivery := &model.Delivery{
		DeliveryID:  "dlv_01",
		MappingName: "crm-orders",
		URL:         "https://crm.example.com/orders",
		Body:        []byte(`{"order":"1"}`),
		Status:      model.StatusDeadLetter,
		Attempts:    5,
		LastError:   "server returned 503",
		CreatedAt:   time.Now(),
	}

	filePath, err := m.SpoolDeadLetter(context.Background(), delivery)
	require.NoError(t, err)
	assert.FileExists(t, filePath)

	data, err := os.ReadFile(filePath)
	require.NoError(t, err)

	var got model.Delivery
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "dlv_01", got.DeliveryID)
	assert.Equal(t, model.StatusDeadLetter, got.Status)
	assert.Equal(t, "server returned 503", got.LastError)
}

func TestManager_ArchiveDeadLetter_DiskOnlyWithoutClient(t *testing.T) {
	m := &Manager{Config: &config.Configuration{BackupDir: t.TempDir()}}

	err := m.ArchiveDeadLetter(context.Background(), &model.Delivery{DeliveryID: "dlv_02"})
	assert.NoError(t, err)
}

func TestManager_BackupMappingsToDisk(t *testing.T) {
	m := &Manager{Config: &config.Configuration{BackupDir: t.TempDir()}}

	mappings := []model.IntegrationMapping{
		{MappingID: "mapping_01", Name: "crm-orders", Endpoint: "orders"},
		{MappingID: "mapping_02", Name: "erp-invoices", Endpoint: "invoices"},
	}

	filePath, err := m.BackupMappingsToDisk(context.Background(), mappings)
	require.NoError(t, err)
	assert.FileExists(t, filePath)

	data, err := os.ReadFile(filePath)
	require.NoError(t, err)

	var got []model.IntegrationMapping
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Len(t, got, 2)
	assert.Equal(t, "crm-orders", got[0].Name)
}

func TestManager_BackupMappingsToDisk_ContextCancellation(t *testing.T) {
	m := &Manager{Config: &config.Configuration{BackupDir: t.TempDir()}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	filePath, err := m.BackupMappingsToDisk(ctx, nil)
	assert.Error(t, err)
	assert.Empty(t, filePath)
}

func TestManager_BackupMappingsToS3_FailsWithoutClient(t *testing.T) {
	m := &Manager{Config: &config.Configuration{BackupDir: t.TempDir()}}

	err := m.BackupMappingsToS3(context.Background(), []model.IntegrationMapping{{MappingID: "mapping_01"}})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "s3 client not configured")
}

func TestManager_BackupMappingsToS3_FailsOnDisk(t *testing.T) {
	// A file path in place of the backup directory makes MkdirAll fail.
	tmp := t.TempDir()
	blocker := tmp + "/not-a-dir"
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	m := &Manager{Config: &config.Configuration{BackupDir: blocker}}

	err := m.BackupMappingsToS3(context.Background(), nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to backup to disk")
}
