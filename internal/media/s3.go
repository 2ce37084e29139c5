// Package media uploads contact photos to an S3-compatible object store
// (MinIO or AWS) and hands back public URLs.
package media

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Config holds the object-store connection settings.
type Config struct {
	Region       string
	BaseEndpoint string // non-empty for MinIO / S3-compatible endpoints
	Bucket       string
	AccessKey    string
	SecretKey    string
	PublicURL    string // base URL under which uploaded objects are reachable
}

// S3Store uploads blobs with PutObject and returns their public URL.
type S3Store struct {
	client *s3.Client
	cfg    Config
}

// NewS3Store builds the S3 client with static credentials and an optional
// endpoint override.
func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: client, cfg: cfg}, nil
}

// Upload stores the blob under a fresh date-partitioned key and returns its URL.
func (s *S3Store) Upload(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	key := objectKey(filename)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}

	return s.ObjectURL(key), nil
}

// ObjectURL returns the public URL for a stored object key.
func (s *S3Store) ObjectURL(key string) string {
	base := strings.TrimSuffix(s.cfg.PublicURL, "/")
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", s.cfg.Bucket, s.cfg.Region)
	}
	return base + "/" + key
}

// objectKey builds a collision-free key, partitioned by date for easy pruning.
// The original filename only contributes its extension.
func objectKey(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	d := time.Now()
	return fmt.Sprintf("photos/%d/%02d/%02d/%s%s", d.Year(), d.Month(), d.Day(), uuid.New(), ext)
}
