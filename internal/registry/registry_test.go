package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jerkytreats/cdnhealth/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logging.UseTestMode()
	os.Exit(m.Run())
}

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := Open(filepath.Join(t.TempDir(), "nested", "resources.db"))
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })
	return reg
}

func intp(i int) *int { return &i }

func TestRegistry_CreateAndGet(t *testing.T) {
	reg := openTestRegistry(t)
	ctx := context.Background()

	rec := &ResourceRecord{
		OriginalName: "photo.png",
		StoragePath:  "images/banners/2026/10/photo-1a2b3c4d-1.png",
		PublicURL:    "https://static.example.com/images/banners/2026/10/photo-1a2b3c4d-1.png",
		Hash:         "1a2b3c4d",
		Size:         2048,
		Width:        intp(100),
		Height:       intp(50),
		Format:       "png",
		MimeType:     "image/png",
		Type:         "images",
		Category:     "banners",
		UploaderID:   "admin",
	}
	require.NoError(t, reg.Create(ctx, rec))
	assert.NotZero(t, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())

	got, err := reg.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.StoragePath, got.StoragePath)
	assert.Equal(t, rec.PublicURL, got.PublicURL)
	require.NotNil(t, got.Width)
	assert.Equal(t, 100, *got.Width)
	assert.Equal(t, 50, *got.Height)
	assert.Equal(t, rec.CreatedAt.UnixMilli(), got.CreatedAt.UnixMilli())

	byPath, err := reg.GetByPath(ctx, rec.StoragePath)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, byPath.ID)
}

func TestRegistry_NullDimensions(t *testing.T) {
	reg := openTestRegistry(t)
	ctx := context.Background()

	rec := &ResourceRecord{OriginalName: "notes.txt", StoragePath: "docs/misc/notes.txt", PublicURL: "https://x/notes.txt", Hash: "deadbeef"}
	require.NoError(t, reg.Create(ctx, rec))

	got, err := reg.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Width)
	assert.Nil(t, got.Height)
}

func TestRegistry_UniqueStoragePath(t *testing.T) {
	reg := openTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Create(ctx, &ResourceRecord{StoragePath: "a/b.png", PublicURL: "https://x/a/b.png", Hash: "1"}))
	assert.Error(t, reg.Create(ctx, &ResourceRecord{StoragePath: "a/b.png", PublicURL: "https://x/a/b.png", Hash: "2"}))
}

func TestRegistry_ListFilterAndURLs(t *testing.T) {
	reg := openTestRegistry(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	records := []*ResourceRecord{
		{StoragePath: "images/banners/a.png", PublicURL: "https://x/a.png", Type: "images", Category: "banners", CreatedAt: base},
		{StoragePath: "images/icons/b.png", PublicURL: "https://x/b.png", Type: "images", Category: "icons", CreatedAt: base.Add(time.Hour)},
		{StoragePath: "videos/promo/c.mp4", PublicURL: "https://x/c.mp4", Type: "videos", Category: "promo", CreatedAt: base.Add(2 * time.Hour)},
	}
	for _, r := range records {
		r.Hash = "h"
		require.NoError(t, reg.Create(ctx, r))
	}

	all, err := reg.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "videos/promo/c.mp4", all[0].StoragePath)

	images, err := reg.List(ctx, Filter{Type: "images"})
	require.NoError(t, err)
	assert.Len(t, images, 2)

	icons, err := reg.List(ctx, Filter{Type: "images", Category: "icons"})
	require.NoError(t, err)
	require.Len(t, icons, 1)
	assert.Equal(t, "https://x/b.png", icons[0].PublicURL)

	limited, err := reg.List(ctx, Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := reg.List(ctx, Filter{Type: "fonts"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	urls, err := reg.ListURLs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://x/a.png", "https://x/b.png", "https://x/c.mp4"}, urls)
}

func TestRegistry_Delete(t *testing.T) {
	reg := openTestRegistry(t)
	ctx := context.Background()

	rec := &ResourceRecord{StoragePath: "a/b.png", PublicURL: "https://x/a/b.png", Hash: "1"}
	require.NoError(t, reg.Create(ctx, rec))

	require.NoError(t, reg.Delete(ctx, rec.ID))
	assert.ErrorIs(t, reg.Delete(ctx, rec.ID), ErrResourceNotFound)

	_, err := reg.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrResourceNotFound)
	_, err = reg.GetByPath(ctx, "a/b.png")
	assert.ErrorIs(t, err, ErrResourceNotFound)
}

func TestRegistry_Ping(t *testing.T) {
	reg := openTestRegistry(t)
	assert.NoError(t, reg.Ping(context.Background()))
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestNew_NilDB(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}
