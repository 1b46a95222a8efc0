package objectstore

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config holds object storage connection configuration
type Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	Region        string
	PresignExpiry time.Duration
}

// Client wraps a MinIO/S3 client scoped to a single bucket.
type Client struct {
	mc            *minio.Client
	bucket        string
	presignExpiry time.Duration
	logger        *slog.Logger
}

// NewClient connects to the object store and ensures the configured bucket
// exists.
func NewClient(ctx context.Context, config *Config, logger *slog.Logger) (*Client, error) {
	mc, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
		Region: config.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}

	exists, err := mc.BucketExists(ctx, config.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %q: %w", config.Bucket, err)
	}
	if !exists {
		if err := mc.MakeBucket(ctx, config.Bucket, minio.MakeBucketOptions{Region: config.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %q: %w", config.Bucket, err)
		}
		logger.Info("Created object storage bucket",
			slog.String("bucket", config.Bucket),
		)
	}

	presignExpiry := config.PresignExpiry
	if presignExpiry <= 0 {
		presignExpiry = time.Hour
	}

	logger.Info("Object store client initialized",
		slog.String("endpoint", config.Endpoint),
		slog.String("bucket", config.Bucket),
	)

	return &Client{
		mc:            mc,
		bucket:        config.Bucket,
		presignExpiry: presignExpiry,
		logger:        logger,
	}, nil
}

// Put uploads a local file under key with the given content disposition.
func (c *Client) Put(ctx context.Context, key, filePath, contentDisposition string) error {
	info, err := c.mc.FPutObject(ctx, c.bucket, key, filePath, minio.PutObjectOptions{
		ContentType:        "video/mp4",
		ContentDisposition: contentDisposition,
	})
	if err != nil {
		return fmt.Errorf("failed to put object %q: %w", key, err)
	}

	c.logger.Debug("Object stored",
		slog.String("key", key),
		slog.Int64("size", info.Size),
	)
	return nil
}

// PresignGet returns a time-limited download URL for key. The response
// carries the object's stored content disposition so the link downloads as
// an attachment.
func (c *Client) PresignGet(ctx context.Context, key string) (string, error) {
	u, err := c.mc.PresignedGetObject(ctx, c.bucket, key, c.presignExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign object %q: %w", key, err)
	}
	return u.String(), nil
}

// Remove deletes an object; used by the retention janitor.
func (c *Client) Remove(ctx context.Context, key string) error {
	if err := c.mc.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object %q: %w", key, err)
	}
	return nil
}
