package resource

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jerkytreats/cdnhealth/internal/cdn"
	"github.com/jerkytreats/cdnhealth/internal/logging"
	"github.com/jerkytreats/cdnhealth/internal/metrics"
	"github.com/jerkytreats/cdnhealth/internal/registry"
	"github.com/jerkytreats/cdnhealth/internal/storage"
	"github.com/jerkytreats/cdnhealth/internal/upload"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logging.UseTestMode()
	os.Exit(m.Run())
}

type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) Upload(ctx context.Context, req upload.Request) (*upload.Result, error) {
	args := m.Called(req)
	res, _ := args.Get(0).(*upload.Result)
	return res, args.Error(1)
}

func (m *MockUploader) Delete(ctx context.Context, storagePath string) error {
	return m.Called(storagePath).Error(0)
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Create(ctx context.Context, rec *registry.ResourceRecord) error {
	args := m.Called(rec)
	if args.Error(0) == nil {
		rec.ID = 42
	}
	return args.Error(0)
}

func (m *MockStore) Get(ctx context.Context, id int64) (*registry.ResourceRecord, error) {
	args := m.Called(id)
	rec, _ := args.Get(0).(*registry.ResourceRecord)
	return rec, args.Error(1)
}

func (m *MockStore) Delete(ctx context.Context, id int64) error {
	return m.Called(id).Error(0)
}

type MockInvalidator struct {
	mock.Mock
}

func (m *MockInvalidator) Refresh(ctx context.Context, urls []string) cdn.RefreshResult {
	return m.Called(urls).Get(0).(cdn.RefreshResult)
}

func sampleResult() *upload.Result {
	w, h := 100, 50
	return &upload.Result{
		StoragePath: "images/banners/2026/10/photo-1a2b3c4d-1.png",
		PublicURL:   "https://static.example.com/images/banners/2026/10/photo-1a2b3c4d-1.png",
		Hash:        "1a2b3c4d",
		Size:        2048,
		Metadata:    upload.Metadata{Width: &w, Height: &h, Format: "png"},
	}
}

func TestManager_Store(t *testing.T) {
	req := upload.Request{Data: []byte("png"), OriginalName: "photo.png", MimeType: "image/png", Type: "images", Category: "banners"}
	res := sampleResult()

	up := &MockUploader{}
	up.On("Upload", req).Return(res, nil)

	store := &MockStore{}
	store.On("Create", mock.MatchedBy(func(rec *registry.ResourceRecord) bool {
		return rec.StoragePath == res.StoragePath && rec.UploaderID == "admin" && *rec.Width == 100 && rec.MimeType == "image/png"
	})).Return(nil)

	inv := &MockInvalidator{}
	inv.On("Refresh", []string{res.PublicURL}).Return(cdn.RefreshResult{Success: true, Provider: cdn.ProviderHTTP})

	m := metrics.NewMetrics()
	mgr := NewManager(up, store, inv, m)

	out, err := mgr.Store(context.Background(), req, "admin")
	require.NoError(t, err)
	assert.Equal(t, int64(42), out.Record.ID)
	assert.True(t, out.CDN.Success)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.UploadsTotal.WithLabelValues(metrics.OutcomeSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CDNRefreshTotal.WithLabelValues(cdn.ProviderHTTP, metrics.OutcomeSuccess)))

	up.AssertExpectations(t)
	store.AssertExpectations(t)
	inv.AssertExpectations(t)
}

func TestManager_Store_CDNFailureDoesNotFail(t *testing.T) {
	req := upload.Request{Data: []byte("png"), OriginalName: "photo.png"}
	res := sampleResult()

	up := &MockUploader{}
	up.On("Upload", req).Return(res, nil)
	store := &MockStore{}
	store.On("Create", mock.Anything).Return(nil)
	inv := &MockInvalidator{}
	inv.On("Refresh", mock.Anything).Return(cdn.RefreshResult{
		Provider: cdn.ProviderHTTP,
		Err:      &cdn.RefreshFailedError{Provider: cdn.ProviderHTTP, Err: errors.New("timeout")},
	})

	out, err := NewManager(up, store, inv, nil).Store(context.Background(), req, "")
	require.NoError(t, err)
	assert.False(t, out.CDN.Success)
	assert.Contains(t, out.CDN.Error(), "timeout")
}

func TestManager_Store_UploadFailure(t *testing.T) {
	req := upload.Request{OriginalName: "photo.png"}
	up := &MockUploader{}
	up.On("Upload", req).Return(nil, &upload.UploadError{Op: "upload", Err: upload.ErrStorageNotConfigured})
	store := &MockStore{}

	_, err := NewManager(up, store, nil, nil).Store(context.Background(), req, "")
	assert.ErrorIs(t, err, upload.ErrStorageNotConfigured)
	store.AssertNotCalled(t, "Create", mock.Anything)
}

func TestManager_Store_RegistryFailureRemovesObject(t *testing.T) {
	req := upload.Request{Data: []byte("png"), OriginalName: "photo.png"}
	res := sampleResult()

	up := &MockUploader{}
	up.On("Upload", req).Return(res, nil)
	up.On("Delete", res.StoragePath).Return(nil)
	store := &MockStore{}
	store.On("Create", mock.Anything).Return(errors.New("disk full"))
	inv := &MockInvalidator{}

	_, err := NewManager(up, store, inv, nil).Store(context.Background(), req, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	up.AssertCalled(t, "Delete", res.StoragePath)
	inv.AssertNotCalled(t, "Refresh", mock.Anything)
}

func TestManager_Delete(t *testing.T) {
	rec := &registry.ResourceRecord{ID: 7, StoragePath: "images/a.png", PublicURL: "https://static.example.com/images/a.png"}

	up := &MockUploader{}
	up.On("Delete", "images/a.png").Return(nil)
	store := &MockStore{}
	store.On("Get", int64(7)).Return(rec, nil)
	store.On("Delete", int64(7)).Return(nil)
	inv := &MockInvalidator{}
	inv.On("Refresh", []string{rec.PublicURL}).Return(cdn.RefreshResult{Success: true, Skipped: true, Provider: cdn.ProviderNone})

	out, err := NewManager(up, store, inv, nil).Delete(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, rec, out.Record)
	assert.True(t, out.CDN.Skipped)
	up.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestManager_Delete_MissingObjectStillRemovesRecord(t *testing.T) {
	rec := &registry.ResourceRecord{ID: 7, StoragePath: "images/a.png", PublicURL: "https://x/a.png"}

	up := &MockUploader{}
	up.On("Delete", "images/a.png").Return(&upload.UploadError{Op: "delete", Path: "images/a.png", Err: storage.ErrObjectNotFound})
	store := &MockStore{}
	store.On("Get", int64(7)).Return(rec, nil)
	store.On("Delete", int64(7)).Return(nil)

	_, err := NewManager(up, store, nil, nil).Delete(context.Background(), 7)
	require.NoError(t, err)
	store.AssertCalled(t, "Delete", int64(7))
}

func TestManager_Delete_NotFound(t *testing.T) {
	store := &MockStore{}
	store.On("Get", int64(9)).Return(nil, registry.ErrResourceNotFound)

	_, err := NewManager(&MockUploader{}, store, nil, nil).Delete(context.Background(), 9)
	assert.ErrorIs(t, err, registry.ErrResourceNotFound)
}

func TestManager_Delete_StorageFailureKeepsRecord(t *testing.T) {
	rec := &registry.ResourceRecord{ID: 7, StoragePath: "images/a.png"}

	up := &MockUploader{}
	up.On("Delete", "images/a.png").Return(errors.New("access denied"))
	store := &MockStore{}
	store.On("Get", int64(7)).Return(rec, nil)

	_, err := NewManager(up, store, nil, nil).Delete(context.Background(), 7)
	require.Error(t, err)
	store.AssertNotCalled(t, "Delete", mock.Anything)
}
