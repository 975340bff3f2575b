package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jerkytreats/cdnhealth/internal/logging"
	"github.com/jerkytreats/cdnhealth/pkg/validation"
)

// FSStore keeps objects under a local directory that is served (by nginx or
// an origin-pull CDN) from publicBaseURL.
type FSStore struct {
	root          string
	publicBaseURL string
}

// NewFSStore creates the root directory if needed.
func NewFSStore(root, publicBaseURL string) (*FSStore, error) {
	if root == "" {
		return nil, fmt.Errorf("fs storage root is required")
	}
	if publicBaseURL == "" {
		return nil, fmt.Errorf("fs storage requires a public base url")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &FSStore{root: root, publicBaseURL: publicBaseURL}, nil
}

// Put writes body atomically: temp file in the target directory, then rename.
// Cache headers are not representable on disk; the serving layer owns them.
func (s *FSStore) Put(ctx context.Context, path string, body io.Reader, size int64, opts PutOptions) (string, error) {
	target, err := s.resolve(path)
	if err != nil {
		return "", err
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("failed to ensure object directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	written, err := io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write object: %w", err)
	}
	if size >= 0 && written != size {
		os.Remove(tmpName)
		return "", fmt.Errorf("short write: wrote %d of %d bytes", written, size)
	}

	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to move object into place: %w", err)
	}

	logging.Debug("Stored %d bytes at %s (%s)", written, target, opts.ContentType)
	return validation.JoinURL(s.publicBaseURL, path), nil
}

// Delete removes the object; missing objects report ErrObjectNotFound.
func (s *FSStore) Delete(ctx context.Context, path string) error {
	target, err := s.resolve(path)
	if err != nil {
		return err
	}

	if err := os.Remove(target); err != nil {
		if os.IsNotExist(err) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}

	logging.Debug("Deleted object %s", target)
	return nil
}

// resolve maps a storage key onto the filesystem, refusing keys that escape root.
func (s *FSStore) resolve(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimLeft(path, "/")))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object path %q", path)
	}
	return filepath.Join(s.root, clean), nil
}
