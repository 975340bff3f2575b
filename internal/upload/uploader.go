// Package upload stores asset buffers in object storage under deterministic,
// content-addressed paths.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/jerkytreats/cdnhealth/internal/logging"
	"github.com/jerkytreats/cdnhealth/internal/storage"
)

// CacheControl is applied to every uploaded object: one year, shared caches allowed.
const CacheControl = "public, max-age=31536000"

// Request is one asset to upload.
type Request struct {
	Data         []byte
	OriginalName string
	MimeType     string
	Type         string
	Category     string
}

// Result is returned on a successful upload.
type Result struct {
	StoragePath string   `json:"storagePath"`
	PublicURL   string   `json:"publicUrl"`
	Hash        string   `json:"hash"`
	Metadata    Metadata `json:"metadata"`
	Size        int64    `json:"size"`
}

// Uploader performs a single upload attempt per call; retry policy belongs to the caller.
type Uploader struct {
	store storage.ObjectStore
	now   func() time.Time
}

// Option customizes an Uploader.
type Option func(*Uploader)

// WithClock overrides the time source used for storage paths.
func WithClock(now func() time.Time) Option {
	return func(u *Uploader) {
		u.now = now
	}
}

// NewUploader creates an uploader. store may be nil, in which case every
// upload fails with ErrStorageNotConfigured.
func NewUploader(store storage.ObjectStore, opts ...Option) *Uploader {
	u := &Uploader{store: store, now: time.Now}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Upload hashes, names and stores req.Data.
func (u *Uploader) Upload(ctx context.Context, req Request) (*Result, error) {
	if u.store == nil {
		return nil, &UploadError{Op: "upload", Err: ErrStorageNotConfigured}
	}
	if len(req.Data) == 0 {
		return nil, &UploadError{Op: "upload", Err: fmt.Errorf("empty payload for %q", req.OriginalName)}
	}

	hash := ContentHash(req.Data)
	path := StoragePath(req.Type, req.Category, req.OriginalName, req.MimeType, hash, u.now())
	meta := ProbeImage(req.Data, req.MimeType)

	logging.Info("Uploading %s (%d bytes) to %s", req.OriginalName, len(req.Data), path)

	url, err := u.store.Put(ctx, path, bytes.NewReader(req.Data), int64(len(req.Data)), storage.PutOptions{
		ContentType:  req.MimeType,
		CacheControl: CacheControl,
	})
	if err != nil {
		logging.Error("Upload of %s failed: %v", path, err)
		return nil, &UploadError{Op: "upload", Path: path, Err: err}
	}

	logging.Info("Uploaded %s -> %s", req.OriginalName, url)
	return &Result{
		StoragePath: path,
		PublicURL:   url,
		Hash:        hash,
		Metadata:    meta,
		Size:        int64(len(req.Data)),
	}, nil
}

// Delete removes a previously uploaded object.
func (u *Uploader) Delete(ctx context.Context, path string) error {
	if u.store == nil {
		return &UploadError{Op: "delete", Path: path, Err: ErrStorageNotConfigured}
	}
	if err := u.store.Delete(ctx, path); err != nil {
		return &UploadError{Op: "delete", Path: path, Err: err}
	}
	logging.Info("Deleted object %s", path)
	return nil
}
