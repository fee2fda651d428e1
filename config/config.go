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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5100"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"QAM_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"QAM_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"QAM_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"QAM_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"QAM_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"QAM_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns             string        `json:"dns" envconfig:"QAM_DATA_SOURCE_DNS"`
	MaxOpenConns    int           `json:"max_open_conns" envconfig:"QAM_DATA_SOURCE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `json:"max_idle_conns" envconfig:"QAM_DATA_SOURCE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" envconfig:"QAM_DATA_SOURCE_CONN_MAX_LIFETIME"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" envconfig:"QAM_DATA_SOURCE_CONN_MAX_IDLE_TIME"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"QAM_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"QAM_REDIS_SKIP_TLS_VERIFY"`
}

type TypeSenseConfig struct {
	Dns string `json:"dns" envconfig:"QAM_TYPESENSE_DNS"`
}

// MappingsConfig selects where integration mappings are loaded from. Source is
// "file" or "postgres"; Dir is the mapping directory for the file source.
// CacheTTLSec controls the read-through cache in front of the store.
type MappingsConfig struct {
	Source      string `json:"source" envconfig:"QAM_MAPPINGS_SOURCE"`
	Dir         string `json:"dir" envconfig:"QAM_MAPPINGS_DIR"`
	CacheTTLSec int    `json:"cache_ttl_sec" envconfig:"QAM_MAPPINGS_CACHE_TTL_SEC"`
}

// ForwardConfig tunes outbound delivery of mapped payloads.
type ForwardConfig struct {
	TimeoutSec     int    `json:"timeout_sec" envconfig:"QAM_FORWARD_TIMEOUT_SEC"`
	MaxRetries     int    `json:"max_retries" envconfig:"QAM_FORWARD_MAX_RETRIES"`
	NumsOfQueue    int    `json:"queues" envconfig:"QAM_FORWARD_QUEUES"`
	MonitoringPort string `json:"monitoring_port" envconfig:"QAM_FORWARD_MONITORING_PORT"`
}

// TokenConfig tunes the shared auth token cache. RefreshSkewSec is subtracted
// from a token's expiry so refresh happens before the downstream rejects it.
type TokenConfig struct {
	RefreshSkewSec int `json:"refresh_skew_sec" envconfig:"QAM_TOKEN_REFRESH_SKEW_SEC"`
	TimeoutSec     int `json:"timeout_sec" envconfig:"QAM_TOKEN_TIMEOUT_SEC"`
}

// CaptureConfig controls message capture. DiskLimitPercent stops capture
// spooling when local disk usage crosses the threshold. RedactFields lists
// "$."-prefixed JSON paths whose values are tokenized before a capture
// leaves the process.
type CaptureConfig struct {
	Enabled          *bool    `json:"enabled" envconfig:"QAM_CAPTURE_ENABLED"`
	SpoolDir         string   `json:"spool_dir" envconfig:"QAM_CAPTURE_SPOOL_DIR"`
	DiskLimitPercent float64  `json:"disk_limit_percent" envconfig:"QAM_CAPTURE_DISK_LIMIT_PERCENT"`
	RedactFields     []string `json:"redact_fields" envconfig:"QAM_CAPTURE_REDACT_FIELDS"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"QAM_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"QAM_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"QAM_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

// OtelGrafanaCloud carries OTLP exporter settings forwarded to the
// environment so the otel SDK picks them up.
type OtelGrafanaCloud struct {
	OtelExporterOtlpProtocol string `json:"otel_exporter_otlp_protocol" envconfig:"OTEL_EXPORTER_OTLP_PROTOCOL"`
	OtelExporterOtlpEndpoint string `json:"otel_exporter_otlp_endpoint" envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelExporterOtlpHeaders  string `json:"otel_exporter_otlp_headers" envconfig:"OTEL_EXPORTER_OTLP_HEADERS"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type Configuration struct {
	ProjectName        string           `json:"project_name" envconfig:"QAM_PROJECT_NAME"`
	EnableTelemetry    bool             `json:"enable_telemetry" envconfig:"QAM_ENABLE_TELEMETRY"`
	BackupDir          string           `json:"backup_dir" envconfig:"QAM_BACKUP_DIR"`
	AwsAccessKeyId     string           `json:"aws_access_key_id"`
	S3Endpoint         string           `json:"s3_endpoint"`
	AwsSecretAccessKey string           `json:"aws_secret_access_key"`
	S3BucketName       string           `json:"s3_bucket_name"`
	S3Region           string           `json:"s3_region"`
	Server             ServerConfig     `json:"server"`
	DataSource         DataSourceConfig `json:"data_source"`
	Redis              RedisConfig      `json:"redis"`
	TypeSense          TypeSenseConfig  `json:"typesense"`
	TypeSenseKey       string           `json:"type_sense_key"`
	Mappings           MappingsConfig   `json:"mappings"`
	Forward            ForwardConfig    `json:"forward"`
	Token              TokenConfig      `json:"token"`
	Capture            CaptureConfig    `json:"capture"`
	Notification       Notification     `json:"notification"`
	RateLimit          RateLimitConfig  `json:"rate_limit"`
	OtelGrafanaCloud   OtelGrafanaCloud `json:"otel_grafana_cloud"`
}

// SetGrafanaExporterEnvs copies the configured OTLP exporter settings into the
// process environment, where the otel SDK reads them.
func SetGrafanaExporterEnvs() error {
	cnf, err := Fetch()
	if err != nil {
		return err
	}
	envs := map[string]string{
		"OTEL_EXPORTER_OTLP_PROTOCOL": cnf.OtelGrafanaCloud.OtelExporterOtlpProtocol,
		"OTEL_EXPORTER_OTLP_ENDPOINT": cnf.OtelGrafanaCloud.OtelExporterOtlpEndpoint,
		"OTEL_EXPORTER_OTLP_HEADERS":  cnf.OtelGrafanaCloud.OtelExporterOtlpHeaders,
	}
	for key, value := range envs {
		if value == "" {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return err
		}
	}
	return nil
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("qam", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called qam.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "QuickApiMapper Server"
	}

	if cnf.TypeSense.Dns == "" {
		cnf.TypeSense.Dns = "http://typesense:8108"
	}

	if cnf.Mappings.Source == "" {
		cnf.Mappings.Source = "file"
	}
	switch cnf.Mappings.Source {
	case "file":
		if cnf.Mappings.Dir == "" {
			cnf.Mappings.Dir = "./mappings"
		}
	case "postgres":
		if cnf.DataSource.Dns == "" {
			log.Println("Error: Data source DNS is empty. It's a required field for the postgres mapping source.")
			return errors.New("data source DNS is required")
		}
	default:
		return errors.New("mappings source must be file or postgres")
	}
	if cnf.Mappings.CacheTTLSec <= 0 {
		cnf.Mappings.CacheTTLSec = 60
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Connection pool defaults for the postgres mapping store
	if cnf.DataSource.MaxOpenConns <= 0 {
		cnf.DataSource.MaxOpenConns = 25
	}
	if cnf.DataSource.MaxIdleConns <= 0 {
		cnf.DataSource.MaxIdleConns = 10
	}
	if cnf.DataSource.ConnMaxLifetime <= 0 {
		cnf.DataSource.ConnMaxLifetime = 30 * time.Minute
	}
	if cnf.DataSource.ConnMaxIdleTime <= 0 {
		cnf.DataSource.ConnMaxIdleTime = 5 * time.Minute
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.Mappings.Dir = strings.TrimSpace(cnf.Mappings.Dir)

	// Set default value for Port if it's empty
	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Forward.TimeoutSec <= 0 {
		cnf.Forward.TimeoutSec = 15
	}
	if cnf.Forward.MaxRetries <= 0 {
		cnf.Forward.MaxRetries = 5
	}
	if cnf.Forward.NumsOfQueue <= 0 {
		cnf.Forward.NumsOfQueue = 4
	}
	if cnf.Forward.MonitoringPort == "" {
		cnf.Forward.MonitoringPort = "5103"
	}

	if cnf.Token.RefreshSkewSec <= 0 {
		cnf.Token.RefreshSkewSec = 30
	}
	if cnf.Token.TimeoutSec <= 0 {
		cnf.Token.TimeoutSec = 10
	}

	if cnf.Capture.Enabled == nil {
		enabled := true
		cnf.Capture.Enabled = &enabled
	}
	if cnf.Capture.DiskLimitPercent <= 0 || cnf.Capture.DiskLimitPercent > 100 {
		cnf.Capture.DiskLimitPercent = 90
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}

	// Set default cleanup interval if not specified
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
		log.Printf("Warning: Rate limit cleanup interval not specified. Setting default value: %d seconds", defaultCleanup)
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
