package upload

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/jerkytreats/cdnhealth/pkg/validation"
)

const (
	hashLength      = 8
	defaultType     = "misc"
	defaultCategory = "general"
	defaultName     = "file"
	defaultExt      = "bin"
)

// preferredExt pins the extension for MIME types that mime.ExtensionsByType
// answers with several candidates.
var preferredExt = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/gif":       "gif",
	"image/webp":      "webp",
	"image/svg+xml":   "svg",
	"image/bmp":       "bmp",
	"image/tiff":      "tiff",
	"video/mp4":       "mp4",
	"application/pdf": "pdf",
}

// ContentHash returns the first eight hex characters of the MD5 of data.
func ContentHash(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])[:hashLength]
}

// StoragePath builds type/category/YYYY/MM/name-hash-epochms.ext.
func StoragePath(resourceType, category, originalName, mimeType, hash string, now time.Time) string {
	resourceType = orDefault(validation.NormalizePathSegment(resourceType), defaultType)
	category = orDefault(validation.NormalizePathSegment(category), defaultCategory)

	base := filepath.Base(strings.ReplaceAll(originalName, "\\", "/"))
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(base), "."))
	name := orDefault(validation.NormalizePathSegment(strings.TrimSuffix(base, filepath.Ext(base))), defaultName)
	if ext == "" {
		ext = extensionForMIME(mimeType)
	}

	return fmt.Sprintf("%s/%s/%04d/%02d/%s-%s-%d.%s",
		resourceType, category, now.Year(), int(now.Month()), name, hash, now.UnixMilli(), ext)
}

func extensionForMIME(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return defaultExt
	}
	if ext, ok := preferredExt[mediaType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return strings.TrimPrefix(exts[0], ".")
	}
	return defaultExt
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
