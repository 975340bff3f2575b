package upload

import (
	"errors"
	"fmt"
)

// ErrStorageNotConfigured means no object store was wired into the uploader.
var ErrStorageNotConfigured = errors.New("object storage is not configured")

// UploadError wraps every failure returned by the uploader. Op is "upload" or
// "delete"; Path is the storage key involved, empty when it was never derived.
type UploadError struct {
	Op   string
	Path string
	Err  error
}

func (e *UploadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Op, e.Path, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}
