package client

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/proteindock/api/internal/config"
)

// ArtifactClient defines the interface for storing completed-run artifacts
type ArtifactClient interface {
	UploadFile(ctx context.Context, key, localPath, contentType string) (string, error)
}

// MinIOClient implements ArtifactClient against a MinIO/S3-compatible bucket
type MinIOClient struct {
	client *minio.Client
	bucket string
}

// NewMinIOClient creates the artifact client, creating the bucket when absent
func NewMinIOClient(ctx context.Context, cfg *config.ArtifactsConfig) (*MinIOClient, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("artifact storage configuration incomplete")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	exists, err := mc.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := mc.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}

	return &MinIOClient{client: mc, bucket: cfg.Bucket}, nil
}

// UploadFile stores one local file under key and returns its artifact URI
func (c *MinIOClient) UploadFile(ctx context.Context, key, localPath, contentType string) (string, error) {
	if contentType == "" {
		contentType = contentTypeFor(localPath)
	}
	_, err := c.client.FPutObject(ctx, c.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload artifact: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", c.bucket, key), nil
}

func contentTypeFor(path string) string {
	switch filepath.Ext(path) {
	case ".pdb", ".fasc", ".log":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
