// Package persistence provides file-based storage with atomic writes and
// rolling backups. It holds the latest saved health report.
package persistence

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jerkytreats/cdnhealth/internal/config"
	"github.com/jerkytreats/cdnhealth/internal/logging"
)

const (
	ReportDirKey         = "report.dir"
	ReportBackupCountKey = "report.backup_count"
	LatestReportFile     = "latest.json"

	backupTimestampFormat = "20060102-150405.000"
)

// FileStorage provides thread-safe file-based storage with atomic operations
type FileStorage struct {
	filePath    string
	backupCount int
	mutex       sync.RWMutex
	now         func() time.Time
}

// NewFileStorage stores the latest report under the configured report directory.
func NewFileStorage() *FileStorage {
	return NewFileStorageWithPath(
		filepath.Join(config.GetString(ReportDirKey), LatestReportFile),
		config.GetInt(ReportBackupCountKey),
	)
}

// NewFileStorageWithPath creates a new file storage instance with custom path
func NewFileStorageWithPath(filePath string, backupCount int) *FileStorage {
	return &FileStorage{
		filePath:    filePath,
		backupCount: backupCount,
		now:         time.Now,
	}
}

// Read returns the stored bytes, nil if nothing was written yet. An unreadable
// file falls back to the most recent backup.
func (fs *FileStorage) Read() ([]byte, error) {
	fs.mutex.RLock()
	defer fs.mutex.RUnlock()

	data, err := os.ReadFile(fs.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Debug("Storage file %s does not exist yet", fs.filePath)
			return nil, nil
		}

		logging.Warn("Failed to read %s, attempting recovery from backup: %v", fs.filePath, err)
		return fs.recoverFromBackup()
	}

	logging.Debug("Read %d bytes from %s", len(data), fs.filePath)
	return data, nil
}

// Write atomically replaces the file, keeping the previous version as a backup.
func (fs *FileStorage) Write(data []byte) error {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()

	if err := os.MkdirAll(filepath.Dir(fs.filePath), 0755); err != nil {
		return fmt.Errorf("failed to ensure storage directory: %w", err)
	}

	if err := fs.createBackup(); err != nil {
		logging.Warn("Failed to create backup before write: %v", err)
	}

	tempFile := fs.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := os.Rename(tempFile, fs.filePath); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to move temporary file to target: %w", err)
	}

	if err := fs.cleanupOldBackups(); err != nil {
		logging.Warn("Failed to cleanup old backups: %v", err)
	}

	logging.Debug("Wrote %d bytes to %s", len(data), fs.filePath)
	return nil
}

// Exists checks if the storage file exists
func (fs *FileStorage) Exists() bool {
	fs.mutex.RLock()
	defer fs.mutex.RUnlock()
	return fileExists(fs.filePath)
}

// GetPath returns the storage file path
func (fs *FileStorage) GetPath() string {
	return fs.filePath
}

func (fs *FileStorage) createBackup() error {
	if !fileExists(fs.filePath) {
		return nil
	}

	backupPath := fmt.Sprintf("%s.backup.%s", fs.filePath, fs.now().Format(backupTimestampFormat))

	data, err := os.ReadFile(fs.filePath)
	if err != nil {
		return fmt.Errorf("failed to read current file for backup: %w", err)
	}
	if err := os.WriteFile(backupPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write backup file: %w", err)
	}

	logging.Debug("Created backup: %s", backupPath)
	return nil
}

// backups returns backup file names, newest first. Timestamps in the names
// sort lexically.
func (fs *FileStorage) backups() ([]string, error) {
	dir := filepath.Dir(fs.filePath)
	pattern := filepath.Base(fs.filePath) + ".backup.*"

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if matched, _ := filepath.Match(pattern, entry.Name()); matched {
			names = append(names, entry.Name())
		}
	}

	sort.Slice(names, func(i, j int) bool {
		return extractTimestamp(names[i]) > extractTimestamp(names[j])
	})
	return names, nil
}

func (fs *FileStorage) cleanupOldBackups() error {
	if fs.backupCount <= 0 {
		return nil
	}

	names, err := fs.backups()
	if err != nil {
		return err
	}

	dir := filepath.Dir(fs.filePath)
	for _, name := range names[min(fs.backupCount, len(names)):] {
		backupPath := filepath.Join(dir, name)
		if err := os.Remove(backupPath); err != nil {
			logging.Warn("Failed to remove old backup %s: %v", backupPath, err)
		} else {
			logging.Debug("Removed old backup: %s", backupPath)
		}
	}
	return nil
}

func (fs *FileStorage) recoverFromBackup() ([]byte, error) {
	names, err := fs.backups()
	if err != nil {
		return nil, fmt.Errorf("backup recovery: %w", err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no backup files found for recovery")
	}

	mostRecent := filepath.Join(filepath.Dir(fs.filePath), names[0])
	data, err := os.ReadFile(mostRecent)
	if err != nil {
		return nil, fmt.Errorf("failed to read most recent backup %s: %w", mostRecent, err)
	}

	logging.Info("Recovered data from backup: %s", mostRecent)
	return data, nil
}

// ListBackups returns available backup file names, newest first.
func (fs *FileStorage) ListBackups() ([]string, error) {
	fs.mutex.RLock()
	defer fs.mutex.RUnlock()
	return fs.backups()
}

func extractTimestamp(filename string) string {
	parts := strings.Split(filename, ".backup.")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-1]
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
