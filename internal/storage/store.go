// Package storage provides the object storage backends assets are uploaded to.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jerkytreats/cdnhealth/internal/config"
)

const (
	StorageBackendKey       = "storage.backend"
	StoragePublicBaseURLKey = "storage.public_base_url"
	StorageFSRootKey        = "storage.fs.root"
	StorageS3EndpointKey    = "storage.s3.endpoint"
	StorageS3AccessKeyKey   = "storage.s3.access_key"
	StorageS3SecretKeyKey   = "storage.s3.secret_key"
	StorageS3BucketKey      = "storage.s3.bucket"
	StorageS3UseSSLKey      = "storage.s3.use_ssl"
	StorageS3RegionKey      = "storage.s3.region"
)

// ErrObjectNotFound is returned by Delete when the object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// PutOptions carries the HTTP metadata stored alongside an object.
type PutOptions struct {
	ContentType  string
	CacheControl string
}

// ObjectStore is the narrow interface the uploader needs.
type ObjectStore interface {
	// Put stores body under path and returns the object's public URL.
	Put(ctx context.Context, path string, body io.Reader, size int64, opts PutOptions) (string, error)
	// Delete removes the object stored under path.
	Delete(ctx context.Context, path string) error
}

// NewFromConfig builds the configured backend. It returns (nil, nil) when no
// backend is configured; callers treat a nil store as "storage unavailable".
func NewFromConfig() (ObjectStore, error) {
	backend := config.GetString(StorageBackendKey)
	publicBase := config.GetString(StoragePublicBaseURLKey)

	switch backend {
	case "":
		return nil, nil
	case "fs":
		store, err := NewFSStore(config.GetString(StorageFSRootKey), publicBase)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "s3":
		store, err := NewS3Store(S3Config{
			Endpoint:      config.GetString(StorageS3EndpointKey),
			AccessKey:     config.GetString(StorageS3AccessKeyKey),
			SecretKey:     config.GetString(StorageS3SecretKeyKey),
			Bucket:        config.GetString(StorageS3BucketKey),
			Region:        config.GetString(StorageS3RegionKey),
			UseSSL:        config.GetBool(StorageS3UseSSLKey),
			PublicBaseURL: publicBase,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported %s value: %s", StorageBackendKey, backend)
	}
}
