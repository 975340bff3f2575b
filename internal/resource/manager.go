// Package resource runs the store pipeline: upload, register, refresh the CDN.
package resource

import (
	"context"
	"errors"
	"fmt"

	"github.com/jerkytreats/cdnhealth/internal/cdn"
	"github.com/jerkytreats/cdnhealth/internal/logging"
	"github.com/jerkytreats/cdnhealth/internal/metrics"
	"github.com/jerkytreats/cdnhealth/internal/registry"
	"github.com/jerkytreats/cdnhealth/internal/storage"
	"github.com/jerkytreats/cdnhealth/internal/upload"
)

// Uploader stores and removes objects.
type Uploader interface {
	Upload(ctx context.Context, req upload.Request) (*upload.Result, error)
	Delete(ctx context.Context, storagePath string) error
}

// Store persists resource records.
type Store interface {
	Create(ctx context.Context, rec *registry.ResourceRecord) error
	Get(ctx context.Context, id int64) (*registry.ResourceRecord, error)
	Delete(ctx context.Context, id int64) error
}

// StoreResult is the outcome of a successful Store. CDN carries the refresh
// outcome, which never fails the store itself.
type StoreResult struct {
	Record *registry.ResourceRecord `json:"record"`
	CDN    cdn.RefreshResult        `json:"cdn"`
}

// DeleteResult is the outcome of a successful Delete.
type DeleteResult struct {
	Record *registry.ResourceRecord `json:"record"`
	CDN    cdn.RefreshResult        `json:"cdn"`
}

// Manager wires the uploader, registry and CDN invalidator together.
type Manager struct {
	uploader    Uploader
	store       Store
	invalidator cdn.Invalidator
	metrics     *metrics.Metrics
}

// NewManager creates a manager. A nil invalidator disables CDN refresh; m may be nil.
func NewManager(uploader Uploader, store Store, invalidator cdn.Invalidator, m *metrics.Metrics) *Manager {
	if invalidator == nil {
		invalidator = cdn.NoopInvalidator{}
	}
	return &Manager{
		uploader:    uploader,
		store:       store,
		invalidator: invalidator,
		metrics:     m,
	}
}

// Store uploads req, registers the record and refreshes its public URL.
func (m *Manager) Store(ctx context.Context, req upload.Request, uploaderID string) (*StoreResult, error) {
	res, err := m.uploader.Upload(ctx, req)
	m.metrics.RecordUpload(err == nil)
	if err != nil {
		return nil, err
	}

	rec := &registry.ResourceRecord{
		OriginalName: req.OriginalName,
		StoragePath:  res.StoragePath,
		PublicURL:    res.PublicURL,
		Hash:         res.Hash,
		Size:         res.Size,
		Width:        res.Metadata.Width,
		Height:       res.Metadata.Height,
		Format:       res.Metadata.Format,
		MimeType:     req.MimeType,
		Type:         req.Type,
		Category:     req.Category,
		UploaderID:   uploaderID,
	}
	if err := m.store.Create(ctx, rec); err != nil {
		// Do not leave an unregistered object behind.
		if delErr := m.uploader.Delete(ctx, res.StoragePath); delErr != nil {
			logging.Error("Failed to remove orphaned object %s: %v", res.StoragePath, delErr)
		}
		return nil, fmt.Errorf("failed to register resource %s: %w", res.StoragePath, err)
	}

	refresh := m.refresh(ctx, rec.PublicURL)
	logging.Info("Stored resource %d at %s", rec.ID, rec.PublicURL)
	return &StoreResult{Record: rec, CDN: refresh}, nil
}

// Delete removes the stored object and the record, then refreshes the URL.
// An object already missing from storage does not block removing the record.
func (m *Manager) Delete(ctx context.Context, id int64) (*DeleteResult, error) {
	rec, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := m.uploader.Delete(ctx, rec.StoragePath); err != nil {
		if !errors.Is(err, storage.ErrObjectNotFound) {
			return nil, err
		}
		logging.Warn("Object %s already missing from storage, removing record %d", rec.StoragePath, id)
	}

	if err := m.store.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to delete resource record %d: %w", id, err)
	}

	refresh := m.refresh(ctx, rec.PublicURL)
	logging.Info("Deleted resource %d (%s)", id, rec.StoragePath)
	return &DeleteResult{Record: rec, CDN: refresh}, nil
}

// Refresh asks the CDN to refresh urls.
func (m *Manager) Refresh(ctx context.Context, urls []string) cdn.RefreshResult {
	return m.refresh(ctx, urls...)
}

func (m *Manager) refresh(ctx context.Context, urls ...string) cdn.RefreshResult {
	result := m.invalidator.Refresh(ctx, urls)
	m.metrics.RecordCDNRefresh(result.Provider, result.Success, result.Skipped)
	if !result.Success {
		logging.Warn("CDN refresh did not succeed: %s", result.Error())
	}
	return result
}
