package filehandler

import (
	"bytes"
	"strings"
	"time"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
)

// ImageMetadata describes an uploaded image. Dimensions come from the image
// header; camera, date and GPS fields from EXIF when present.
type ImageMetadata struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
	Size   int    `json:"size"`

	CameraMake  string    `json:"cameraMake,omitempty"`
	CameraModel string    `json:"cameraModel,omitempty"`
	DateTaken   time.Time `json:"dateTaken,omitempty"`
	HasDate     bool      `json:"hasDate"`

	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	HasGPS    bool    `json:"hasGps"`
}

// ExtractImageMetadata reads dimensions and EXIF fields from image bytes.
// Missing EXIF is not an error; an unreadable header is.
func ExtractImageMetadata(data []byte) (*ImageMetadata, error) {
	cfg, format, err := DecodeConfig(data)
	if err != nil {
		return nil, err
	}

	metadata := &ImageMetadata{
		Width:  cfg.Width,
		Height: cfg.Height,
		Format: format,
		Size:   len(data),
	}

	exifData, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		log.Debug().Err(err).Str("format", format).Msg("No EXIF metadata in image")
		return metadata, nil
	}

	// Priority: DateTimeOriginal > CreateDate > ModifyDate
	switch {
	case !exifData.DateTimeOriginal().IsZero():
		metadata.DateTaken = exifData.DateTimeOriginal()
		metadata.HasDate = true
	case !exifData.CreateDate().IsZero():
		metadata.DateTaken = exifData.CreateDate()
		metadata.HasDate = true
	case !exifData.ModifyDate().IsZero():
		metadata.DateTaken = exifData.ModifyDate()
		metadata.HasDate = true
	}

	if gps := exifData.GPS; gps.Latitude() != 0 || gps.Longitude() != 0 {
		metadata.Latitude = gps.Latitude()
		metadata.Longitude = gps.Longitude()
		metadata.HasGPS = true
	}

	metadata.CameraMake = strings.TrimSpace(exifData.Make)
	metadata.CameraModel = strings.TrimSpace(exifData.Model)

	log.Debug().
		Int("width", metadata.Width).
		Int("height", metadata.Height).
		Bool("has_gps", metadata.HasGPS).
		Bool("has_date", metadata.HasDate).
		Msg("Image metadata extraction complete")

	return metadata, nil
}
