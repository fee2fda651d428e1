package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/JerrettDavis/QuickApiMapper-sub001/config"
	"github.com/JerrettDavis/QuickApiMapper-sub001/model"
)

// Manager writes mapping snapshots and dead-lettered deliveries to local disk
// and, when a bucket is configured, mirrors them to S3.
type Manager struct {
	Config   *config.Configuration
	S3Client *s3.Client
}

// NewManager builds a Manager from the loaded configuration. The S3 client is
// only constructed when a bucket name is present; without one the Manager
// archives to disk only.
func NewManager(conf *config.Configuration) (*Manager, error) {
	m := &Manager{Config: conf}
	if conf.S3BucketName == "" {
		return m, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(conf.S3Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(conf.AwsAccessKeyId, conf.AwsSecretAccessKey, "")),
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	if conf.S3Endpoint != "" {
		m.S3Client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(conf.S3Endpoint)
			o.UsePathStyle = true
		})
	} else {
		m.S3Client = s3.NewFromConfig(awsCfg)
	}
	return m, nil
}

// SpoolDeadLetter persists a dead-lettered delivery as JSON under
// <backup_dir>/dead-letter/<date>/ and returns the file path.
func (m *Manager) SpoolDeadLetter(ctx context.Context, delivery *model.Delivery) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := filepath.Join(m.Config.BackupDir, "dead-letter", time.Now().Format("2006-01-02"))
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create dead-letter directory: %w", err)
	}

	data, err := json.MarshalIndent(delivery, "", "  ")
	if err != nil {
		return "", err
	}

	filePath := filepath.Join(dir, delivery.DeliveryID+".json")
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write dead-letter file: %w", err)
	}
	return filePath, nil
}

// ArchiveDeadLetter spools the delivery to disk and uploads it to S3 when a
// client is configured. The disk copy is kept either way so operators can
// replay deliveries without bucket access.
func (m *Manager) ArchiveDeadLetter(ctx context.Context, delivery *model.Delivery) error {
	filePath, err := m.SpoolDeadLetter(ctx, delivery)
	if err != nil {
		return fmt.Errorf("failed to spool dead letter: %w", err)
	}

	if m.S3Client == nil {
		return nil
	}

	key := fmt.Sprintf("dead-letter/%s/%s.json", time.Now().Format("2006-01-02"), delivery.DeliveryID)
	return m.uploadFile(ctx, filePath, key)
}

// BackupMappingsToDisk snapshots every integration mapping to a timestamped
// JSON file under <backup_dir>/<date>/ and returns the file path.
func (m *Manager) BackupMappingsToDisk(ctx context.Context, mappings []model.IntegrationMapping) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	today := time.Now().Format("2006-01-02")
	currentTime := time.Now().Format("150405")
	backupDir := filepath.Join(m.Config.BackupDir, today)

	if err := os.MkdirAll(backupDir, os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	data, err := json.MarshalIndent(mappings, "", "  ")
	if err != nil {
		return "", err
	}

	filePath := filepath.Join(backupDir, fmt.Sprintf("mappings-%s.json", currentTime))
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write backup file: %w", err)
	}

	fmt.Printf("Backup successful: %s\n", filePath)
	return filePath, nil
}

// BackupMappingsToS3 writes the snapshot to disk first, then uploads it to
// the configured bucket under mappings/<date>/.
func (m *Manager) BackupMappingsToS3(ctx context.Context, mappings []model.IntegrationMapping) error {
	filePath, err := m.BackupMappingsToDisk(ctx, mappings)
	if err != nil {
		return fmt.Errorf("failed to backup to disk: %w", err)
	}

	key := fmt.Sprintf("mappings/%s/%s", time.Now().Format("2006-01-02"), filepath.Base(filePath))
	if err := m.uploadFile(ctx, filePath, key); err != nil {
		return err
	}

	fmt.Println("Mappings backup", filePath, "uploaded to S3.")
	return nil
}

func (m *Manager) uploadFile(ctx context.Context, filePath, itemKey string) error {
	if m.S3Client == nil {
		return fmt.Errorf("s3 client not configured")
	}

	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = m.S3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.Config.S3BucketName),
		Key:    aws.String(itemKey),
		Body:   file,
	})
	return err
}
