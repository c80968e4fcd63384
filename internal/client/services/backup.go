package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/farebook/internal/client/models"
	"github.com/dmitrijs2005/farebook/internal/cryptox"
	"github.com/google/uuid"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}
)

// ErrBackupDisabled is returned when no bucket is configured.
var ErrBackupDisabled = errors.New("backup storage not configured")

type S3Settings struct {
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
	Bucket       string

	// Snapshots are sealed with cryptox when Passphrase is set.
	Passphrase string
}

// Snapshot is the document written by BackupService.
type Snapshot struct {
	ExportedAt time.Time              `json:"exportedAt"`
	Username   string                 `json:"username,omitempty"`
	Entries    []models.Entry         `json:"entries"`
	CashBook   []models.CashBookEntry `json:"cashBook"`
}

// DataSource supplies the data to back up. *FareService implements it.
type DataSource interface {
	Entries(ctx context.Context) []models.Entry
	CashBook(ctx context.Context) []models.CashBookEntry
}

type BackupService struct {
	settings S3Settings
	data     DataSource
	now      func() time.Time
}

func NewBackupService(settings S3Settings, data DataSource) *BackupService {
	return &BackupService{settings: settings, data: data, now: time.Now}
}

func (b *BackupService) Enabled() bool { return b.settings.Bucket != "" }

// ObjectKey returns backups/<user>/<yyyy>/<mm>/<dd>/<uuid>.json.
func ObjectKey(username string, at time.Time) string {
	if username == "" {
		username = "anonymous"
	}
	return fmt.Sprintf("backups/%s/%04d/%02d/%02d/%s.json", username, at.Year(), at.Month(), at.Day(), uuid.New())
}

func (b *BackupService) s3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(b.settings.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			b.settings.AccessKey,
			b.settings.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if b.settings.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(b.settings.BaseEndpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Upload writes a snapshot of the local data and returns its object key.
func (b *BackupService) Upload(ctx context.Context, username string) (string, error) {
	if !b.Enabled() {
		return "", ErrBackupDisabled
	}

	at := b.now().UTC()
	snap := Snapshot{
		ExportedAt: at,
		Username:   username,
		Entries:    b.data.Entries(ctx),
		CashBook:   b.data.CashBook(ctx),
	}
	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	key := ObjectKey(username, at)
	contentType := "application/json"
	if b.settings.Passphrase != "" {
		if body, err = cryptox.Seal(body, []byte(b.settings.Passphrase)); err != nil {
			return "", fmt.Errorf("seal snapshot: %w", err)
		}
		key += ".enc"
		contentType = "application/octet-stream"
	}

	c, err := b.s3Client(ctx)
	if err != nil {
		return "", fmt.Errorf("s3 config: %w", err)
	}

	_, err = putObject(c, ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.settings.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}
	return key, nil
}
