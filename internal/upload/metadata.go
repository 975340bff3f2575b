package upload

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/jerkytreats/cdnhealth/internal/logging"
)

// Metadata describes an image payload. Width and Height are nil and Format is
// empty when the payload is not a decodable image.
type Metadata struct {
	Width  *int   `json:"width"`
	Height *int   `json:"height"`
	Format string `json:"format,omitempty"`
}

// ProbeImage reads only the image header. Any failure degrades to empty
// metadata; it never returns an error.
func ProbeImage(data []byte, mimeType string) Metadata {
	if mimeType != "" && !strings.HasPrefix(mimeType, "image/") {
		return Metadata{}
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		logging.Debug("Image metadata unavailable (%s): %v", mimeType, err)
		return Metadata{}
	}

	width, height := cfg.Width, cfg.Height
	return Metadata{Width: &width, Height: &height, Format: format}
}
