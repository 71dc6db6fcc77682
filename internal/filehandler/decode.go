package filehandler

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// ErrTooManyPixels is returned by Decode when the header declares more than
// MaxImagePixels.
var ErrTooManyPixels = errors.New("image exceeds the pixel limit")

// Decode decodes any accepted upload format and returns the format name.
// Remote results never pass through ValidateUpload, so the pixel limit is
// checked here against the header before any pixel buffer is allocated.
func Decode(data []byte) (image.Image, string, error) {
	cfg, _, err := DecodeConfig(data)
	if err != nil {
		return nil, "", err
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return nil, "", fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// DecodeConfig returns dimensions without decoding pixel data.
func DecodeConfig(data []byte) (image.Config, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", fmt.Errorf("failed to read image header: %w", err)
	}
	return cfg, format, nil
}
