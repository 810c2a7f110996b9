// objectstore.go - Compressed product image persistence on MinIO / S3

package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ImageStore persists a compressed JPEG under its fingerprint and returns its path.
type ImageStore interface {
	PutImage(ctx context.Context, fingerprint string, jpeg []byte) (string, error)
}

// ObjectStoreConfig holds S3/MinIO client configuration.
type ObjectStoreConfig struct {
	Endpoint        string // "localhost:9000" for MinIO
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

// MinioImageStore implements ImageStore on a MinIO/S3 bucket.
type MinioImageStore struct {
	minioClient *minio.Client
	bucket      string
}

// NewMinioImageStore creates a new S3/MinIO client.
func NewMinioImageStore(config ObjectStoreConfig) (*MinioImageStore, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if config.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	minioClient, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioImageStore{minioClient: minioClient, bucket: config.Bucket}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (s *MinioImageStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.minioClient.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.minioClient.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// ImageObjectName is the object key for a fingerprint.
func ImageObjectName(fingerprint string) string {
	return path.Join("products", fingerprint+".jpg")
}

// PutImage uploads the JPEG and returns "bucket/products/<fingerprint>.jpg".
func (s *MinioImageStore) PutImage(ctx context.Context, fingerprint string, jpeg []byte) (string, error) {
	objectName := ImageObjectName(fingerprint)
	_, err := s.minioClient.PutObject(ctx, s.bucket, objectName, bytes.NewReader(jpeg), int64(len(jpeg)), minio.PutObjectOptions{
		ContentType:  "image/jpeg",
		CacheControl: "public, max-age=31536000, immutable",
	})
	if err != nil {
		return "", fmt.Errorf("failed to put image: %w", err)
	}
	return path.Join(s.bucket, objectName), nil
}

// Bucket returns the bucket name.
func (s *MinioImageStore) Bucket() string {
	return s.bucket
}
