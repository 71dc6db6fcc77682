// Package filehandler validates uploaded images, decodes them, extracts
// EXIF metadata and renders the bounded display surface.
package filehandler

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// DefaultMaxUploadBytes is the upload size limit (10 MB).
const DefaultMaxUploadBytes int64 = 10 << 20

// MaxImagePixels caps width*height of an accepted upload. Compressed
// formats can declare dimensions far larger than the file size suggests.
const MaxImagePixels = 50_000_000

// Validation messages shown to the user.
const (
	MsgInvalidType   = "Please upload a valid image file (JPEG, PNG, WebP, or GIF)"
	msgTooLarge      = "File size must be less than %dMB"
	msgTooManyPixels = "Image dimensions must not exceed %d megapixels"
)

// SupportedImageTypes lists the accepted upload MIME types.
var SupportedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// SupportedImageExtensions maps accepted file extensions to MIME types.
var SupportedImageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// Upload is a file received from the user.
type Upload struct {
	Name     string
	MIMEType string
	Data     []byte
}

// ValidationError is a user-facing rejection of an upload.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ValidateUpload checks type, size and pixel dimensions and returns the upload with its MIME
// type normalized to the sniffed content type. A non-positive maxBytes uses
// DefaultMaxUploadBytes.
func ValidateUpload(u Upload, maxBytes int64) (Upload, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}

	declared := strings.ToLower(strings.TrimSpace(u.MIMEType))
	if i := strings.Index(declared, ";"); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if declared != "" && declared != "application/octet-stream" && !SupportedImageTypes[declared] {
		log.Debug().Str("name", u.Name).Str("declared", declared).Msg("Upload rejected: unsupported declared type")
		return u, &ValidationError{Message: MsgInvalidType}
	}

	if int64(len(u.Data)) > maxBytes {
		log.Debug().Str("name", u.Name).Int("size", len(u.Data)).Int64("max", maxBytes).Msg("Upload rejected: too large")
		return u, &ValidationError{Message: fmt.Sprintf(msgTooLarge, maxBytes>>20)}
	}

	if len(u.Data) == 0 {
		return u, &ValidationError{Message: MsgInvalidType}
	}
	sniffed := http.DetectContentType(u.Data)
	if !SupportedImageTypes[sniffed] {
		log.Debug().Str("name", u.Name).Str("sniffed", sniffed).Msg("Upload rejected: content is not a supported image")
		return u, &ValidationError{Message: MsgInvalidType}
	}

	cfg, _, err := DecodeConfig(u.Data)
	if err != nil {
		log.Debug().Err(err).Str("name", u.Name).Msg("Upload rejected: unreadable image header")
		return u, &ValidationError{Message: MsgInvalidType}
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		log.Debug().Str("name", u.Name).Int("width", cfg.Width).Int("height", cfg.Height).Msg("Upload rejected: too many pixels")
		return u, &ValidationError{Message: fmt.Sprintf(msgTooManyPixels, MaxImagePixels/1_000_000)}
	}

	u.MIMEType = sniffed
	return u, nil
}

// LoadFile reads an image from disk into an Upload, using the extension for
// the declared type.
func LoadFile(path string) (Upload, error) {
	ext := strings.ToLower(filepath.Ext(path))
	mimeType, ok := SupportedImageExtensions[ext]
	if !ok {
		return Upload{}, &ValidationError{Message: MsgInvalidType}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Upload{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	log.Debug().Str("path", path).Str("mime_type", mimeType).Int("size", len(data)).Msg("Loaded image file")
	return Upload{Name: filepath.Base(path), MIMEType: mimeType, Data: data}, nil
}

// IsImage reports whether ext is an accepted image extension.
func IsImage(ext string) bool {
	_, ok := SupportedImageExtensions[strings.ToLower(ext)]
	return ok
}
