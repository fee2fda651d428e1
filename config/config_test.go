package config

import (
	"encoding/json"
	"os"
	"testing"
	"time"
)

func TestValidateAndAddDefaults(t *testing.T) {
	// Postgres mapping source without a data source DNS must fail
	cnf := Configuration{
		Mappings: MappingsConfig{Source: "postgres"},
		Redis:    RedisConfig{Dns: "localhost:6379"},
	}

	err := cnf.validateAndAddDefaults()
	if err == nil || err.Error() != "data source DNS is required" {
		t.Errorf("Expected data source DNS required error, got %v", err)
	}

	cnf = Configuration{
		DataSource: DataSourceConfig{Dns: "postgres://localhost:5432"},
		Redis:      RedisConfig{Dns: ""},
	}

	err = cnf.validateAndAddDefaults()
	if err == nil || err.Error() != "redis DNS is required" {
		t.Errorf("Expected redis DNS required error, got %v", err)
	}

	cnf = Configuration{
		Mappings: MappingsConfig{Source: "csv"},
		Redis:    RedisConfig{Dns: "localhost:6379"},
	}
	err = cnf.validateAndAddDefaults()
	if err == nil || err.Error() != "mappings source must be file or postgres" {
		t.Errorf("Expected mappings source error, got %v", err)
	}

	// All required fields filled, expect no error and sane defaults
	cnf = Configuration{
		ProjectName: "Test Project",
		Redis:       RedisConfig{Dns: "localhost:6379"},
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if cnf.Mappings.Source != "file" {
		t.Errorf("Expected default mappings source file, got %s", cnf.Mappings.Source)
	}
	if cnf.Mappings.Dir != "./mappings" {
		t.Errorf("Expected default mappings dir, got %s", cnf.Mappings.Dir)
	}
	if cnf.Mappings.CacheTTLSec != 60 {
		t.Errorf("Expected default mapping cache TTL 60, got %d", cnf.Mappings.CacheTTLSec)
	}
	if cnf.Forward.TimeoutSec != 15 || cnf.Forward.MaxRetries != 5 || cnf.Forward.NumsOfQueue != 4 {
		t.Errorf("Expected forward defaults, got %+v", cnf.Forward)
	}
	if cnf.Token.RefreshSkewSec != 30 || cnf.Token.TimeoutSec != 10 {
		t.Errorf("Expected token defaults, got %+v", cnf.Token)
	}
	if cnf.Capture.Enabled == nil || !*cnf.Capture.Enabled {
		t.Errorf("Expected capture enabled by default, got %+v", cnf.Capture)
	}
	if cnf.Capture.DiskLimitPercent != 90 {
		t.Errorf("Expected default disk limit 90, got %f", cnf.Capture.DiskLimitPercent)
	}
	if cnf.DataSource.MaxOpenConns != 25 || cnf.DataSource.MaxIdleConns != 10 {
		t.Errorf("Expected pool defaults 25/10, got %+v", cnf.DataSource)
	}
	if cnf.DataSource.ConnMaxLifetime != 30*time.Minute || cnf.DataSource.ConnMaxIdleTime != 5*time.Minute {
		t.Errorf("Expected pool lifetime defaults, got %+v", cnf.DataSource)
	}

	// Test default port setting
	cnf.Server.Port = ""
	err = cnf.validateAndAddDefaults()
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if cnf.Server.Port != DEFAULT_PORT {
		t.Errorf("Expected default port %s, got %s", DEFAULT_PORT, cnf.Server.Port)
	}
}

func TestRateLimitDefaults(t *testing.T) {
	rps := 10.0
	cnf := Configuration{
		Redis:     RedisConfig{Dns: "localhost:6379"},
		RateLimit: RateLimitConfig{RequestsPerSecond: &rps},
	}

	if err := cnf.validateAndAddDefaults(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cnf.RateLimit.Burst == nil || *cnf.RateLimit.Burst != 20 {
		t.Errorf("Expected derived burst 20, got %v", cnf.RateLimit.Burst)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil || *cnf.RateLimit.CleanupIntervalSec != 10800 {
		t.Errorf("Expected default cleanup interval, got %v", cnf.RateLimit.CleanupIntervalSec)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	// Create a temporary file
	tmpFile, err := os.CreateTemp("", "qam.json")
	if err != nil {
		t.Fatalf("Unable to create temporary file: %v", err)
	}
	defer os.Remove(tmpFile.Name()) // Clean up after the test

	sampleConfig := Configuration{
		ProjectName: "Temp Project",
		Redis:       RedisConfig{Dns: "temp-redis"},
		Mappings:    MappingsConfig{Source: "file", Dir: "./testdata"},
	}
	if err := json.NewEncoder(tmpFile).Encode(sampleConfig); err != nil {
		t.Fatalf("Unable to write to temporary file: %v", err)
	}
	tmpFile.Close() // Close the file so loadConfigFromFile can open it

	// Set an environment variable to override the project name
	os.Setenv("QAM_PROJECT_NAME", "Env Project")
	defer os.Unsetenv("QAM_PROJECT_NAME") // Clean up after the test

	if err := loadConfigFromFile(tmpFile.Name()); err != nil {
		t.Fatalf("loadConfigFromFile failed: %v", err)
	}

	loadedConfig, err := Fetch()
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	// Check if the environment variable override worked
	if loadedConfig.ProjectName != "Env Project" {
		t.Errorf("Expected ProjectName to be 'Env Project', got '%s'", loadedConfig.ProjectName)
	}

	// Check if the mapping directory was loaded correctly from the file
	if loadedConfig.Mappings.Dir != "./testdata" {
		t.Errorf("Expected Mappings.Dir to be './testdata', got '%s'", loadedConfig.Mappings.Dir)
	}
}

func TestInitConfig(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "qam.json")
	if err != nil {
		t.Fatalf("Unable to create temporary file: %v", err)
	}
	defer os.Remove(tmpFile.Name()) // Clean up after the test

	sampleConfig := Configuration{
		ProjectName: "InitConfig Test",
		Redis:       RedisConfig{Dns: "localhost:6379"},
	}
	if err := json.NewEncoder(tmpFile).Encode(sampleConfig); err != nil {
		t.Fatalf("Unable to write to temporary file: %v", err)
	}
	tmpFile.Close() // Close the file so InitConfig can open it

	if err := InitConfig(tmpFile.Name()); err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	loadedConfig, err := Fetch()
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if loadedConfig.ProjectName != "InitConfig Test" {
		t.Errorf("Expected ProjectName to be 'InitConfig Test', got '%s'", loadedConfig.ProjectName)
	}
	if loadedConfig.Redis.Dns != "localhost:6379" {
		t.Errorf("Expected Redis.Dns to be 'localhost:6379', got '%s'", loadedConfig.Redis.Dns)
	}
}

func TestMockConfig(t *testing.T) {
	MockConfig(&Configuration{ProjectName: "mocked"})
	fetched, err := Fetch()
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if fetched.ProjectName != "mocked" {
		t.Errorf("Expected mocked config, got %s", fetched.ProjectName)
	}
}

func TestSetGrafanaExporterEnvs(t *testing.T) {
	// Load a mock configuration into ConfigStore
	mockConfig := Configuration{
		OtelGrafanaCloud: OtelGrafanaCloud{
			OtelExporterOtlpProtocol: "http/protobuf",
			OtelExporterOtlpEndpoint: "localhost:4317",
			OtelExporterOtlpHeaders:  "api-key=12345",
		},
	}
	ConfigStore.Store(&mockConfig)

	err := SetGrafanaExporterEnvs()
	if err != nil {
		t.Fatalf("SetGrafanaExporterEnvs failed: %v", err)
	}

	if os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL") != "http/protobuf" {
		t.Errorf("Expected OTEL_EXPORTER_OTLP_PROTOCOL to be 'http/protobuf', got '%s'", os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"))
	}
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "localhost:4317" {
		t.Errorf("Expected OTEL_EXPORTER_OTLP_ENDPOINT to be 'localhost:4317', got '%s'", os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	}
	if os.Getenv("OTEL_EXPORTER_OTLP_HEADERS") != "api-key=12345" {
		t.Errorf("Expected OTEL_EXPORTER_OTLP_HEADERS to be 'api-key=12345', got '%s'", os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	}
}
