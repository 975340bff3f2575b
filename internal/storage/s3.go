package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jerkytreats/cdnhealth/internal/logging"
	"github.com/jerkytreats/cdnhealth/pkg/validation"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config describes an S3-compatible bucket (AWS, MinIO, Aliyun OSS).
type S3Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	UseSSL        bool
	PublicBaseURL string
}

// S3Store uploads objects to an S3-compatible bucket.
type S3Store struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
}

// NewS3Store validates cfg and constructs the client. No network call is made.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 storage requires endpoint and bucket")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3 storage requires access and secret keys")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create s3 client: %w", err)
	}

	publicBase := cfg.PublicBaseURL
	if publicBase == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicBase = fmt.Sprintf("%s://%s.%s", scheme, cfg.Bucket, cfg.Endpoint)
	}

	logging.Info("Using S3 object storage bucket %s at %s", cfg.Bucket, cfg.Endpoint)
	return &S3Store{client: client, bucket: cfg.Bucket, publicBaseURL: publicBase}, nil
}

// Put uploads body with the given content type and cache-control header.
func (s *S3Store) Put(ctx context.Context, path string, body io.Reader, size int64, opts PutOptions) (string, error) {
	info, err := s.client.PutObject(ctx, s.bucket, path, body, size, minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
	})
	if err != nil {
		return "", fmt.Errorf("s3 put %s: %w", path, err)
	}

	logging.Debug("Uploaded %s to bucket %s (etag %s, %d bytes)", path, s.bucket, info.ETag, info.Size)
	return validation.JoinURL(s.publicBaseURL, path), nil
}

// Delete removes the object at path.
func (s *S3Store) Delete(ctx context.Context, path string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			return ErrObjectNotFound
		}
		return fmt.Errorf("s3 delete %s: %w", path, err)
	}
	return nil
}
