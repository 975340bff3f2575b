package persistence

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jerkytreats/cdnhealth/internal/config"
	"github.com/jerkytreats/cdnhealth/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logging.UseTestMode()
	os.Exit(m.Run())
}

// steppingClock returns a clock that advances one second per call.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func TestNewFileStorage_FromConfig(t *testing.T) {
	config.ResetForTest()
	defer config.ResetForTest()
	config.SetForTest(ReportDirKey, "out/reports")
	config.SetForTest(ReportBackupCountKey, 7)

	fs := NewFileStorage()
	assert.Equal(t, filepath.Join("out/reports", LatestReportFile), fs.GetPath())
	assert.Equal(t, 7, fs.backupCount)
}

func TestFileStorage_WriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "latest.json")
	fs := NewFileStorageWithPath(path, 3)

	assert.False(t, fs.Exists())
	data, err := fs.Read()
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, fs.Write([]byte(`{"overallScore":90}`)))
	assert.True(t, fs.Exists())

	data, err = fs.Read()
	require.NoError(t, err)
	assert.JSONEq(t, `{"overallScore":90}`, string(data))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file must not remain")
}

func TestFileStorage_BackupsAndCleanup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latest.json")
	fs := NewFileStorageWithPath(path, 2)
	fs.now = steppingClock()

	for _, body := range []string{`{"v":1}`, `{"v":2}`, `{"v":3}`, `{"v":4}`} {
		require.NoError(t, fs.Write([]byte(body)))
	}

	backups, err := fs.ListBackups()
	require.NoError(t, err)
	require.Len(t, backups, 2)

	// Newest backup holds the previous version
	newest, err := os.ReadFile(filepath.Join(filepath.Dir(path), backups[0]))
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":3}`, string(newest))
}

func TestFileStorage_RecoveryFromBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "latest.json")
	fs := NewFileStorageWithPath(path, 5)
	fs.now = steppingClock()

	require.NoError(t, fs.Write([]byte(`{"v":1}`)))
	require.NoError(t, fs.Write([]byte(`{"v":2}`)))

	// Make the main file unreadable by replacing it with a directory.
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.Mkdir(path, 0755))

	data, err := fs.Read()
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(data))
}

func TestFileStorage_RecoveryWithoutBackups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "latest.json")
	require.NoError(t, os.Mkdir(path, 0755))

	_, err := NewFileStorageWithPath(path, 5).Read()
	assert.Error(t, err)
}

func TestFileStorage_ConcurrentAccess(t *testing.T) {
	fs := NewFileStorageWithPath(filepath.Join(t.TempDir(), "latest.json"), 0)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, fs.Write([]byte(`{"ok":true}`)))
		}()
		go func() {
			defer wg.Done()
			_, err := fs.Read()
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	data, err := fs.Read()
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))
}

func TestExtractTimestamp(t *testing.T) {
	assert.Equal(t, "20261016-080001.000", extractTimestamp("latest.json.backup.20261016-080001.000"))
	assert.Equal(t, "", extractTimestamp("latest.json"))
}
