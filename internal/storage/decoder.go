package storage

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	apperrors "github.com/anime-shed/ingrediscan-go/internal/errors"
)

// DefaultMaxPixels bounds width*height of a decoded image. Decoders allocate
// the full bitmap from the header, so the check runs before decoding.
const DefaultMaxPixels int64 = 40_000_000

var base64Encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// DecodeBase64 decodes an image payload. A data URL prefix such as
// "data:image/png;base64," is stripped first.
func DecodeBase64(payload string) ([]byte, error) {
	data := strings.TrimSpace(payload)
	if strings.HasPrefix(data, "data:") {
		if idx := strings.Index(data, ","); idx >= 0 {
			data = data[idx+1:]
		}
	}
	data = strings.Join(strings.Fields(data), "")
	if data == "" {
		return nil, apperrors.NewInvalidImageError("image payload is empty", nil)
	}

	var lastErr error
	for _, enc := range base64Encodings {
		raw, err := enc.DecodeString(data)
		if err == nil {
			return raw, nil
		}
		lastErr = err
	}
	return nil, apperrors.NewInvalidImageError("image payload is not valid base64", lastErr)
}

// DecodeImage decodes raw bytes into a bitmap. JPEG, PNG, GIF, WebP, BMP
// and TIFF are recognised. Images whose header declares more than maxPixels
// are rejected; maxPixels <= 0 means DefaultMaxPixels.
func DecodeImage(raw []byte, maxPixels int64) (image.Image, string, error) {
	if len(raw) == 0 {
		return nil, "", apperrors.NewInvalidImageError("image data is empty", nil)
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, "", apperrors.NewInvalidImageError("failed to decode image", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", apperrors.NewInvalidImageError(fmt.Sprintf("image has no pixels (%dx%d)", cfg.Width, cfg.Height), nil)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, "", apperrors.NewInvalidImageError(
			fmt.Sprintf("image is too large (%dx%d, limit %d pixels)", cfg.Width, cfg.Height, maxPixels), nil)
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", apperrors.NewInvalidImageError("failed to decode image", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, "", apperrors.NewInvalidImageError(fmt.Sprintf("image has no pixels (%dx%d)", bounds.Dx(), bounds.Dy()), nil)
	}
	return img, format, nil
}

// DecodePayload runs DecodeBase64 and DecodeImage
func DecodePayload(payload string, maxPixels int64) (image.Image, string, error) {
	raw, err := DecodeBase64(payload)
	if err != nil {
		return nil, "", err
	}
	return DecodeImage(raw, maxPixels)
}
