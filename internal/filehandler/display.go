package filehandler

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
)

// Display defaults.
const (
	DefaultDisplayMaxWidth  = 800
	DefaultDisplayMaxHeight = 600
	DefaultZoom             = 100
	MinZoom                 = 10
	MaxZoom                 = 400

	// MaxDisplayDimension bounds both the requested box and the rendered
	// edge after zoom.
	MaxDisplayDimension = 4096
)

// DisplayOptions bound the preview surface. Zoom is a percentage applied
// after fitting.
type DisplayOptions struct {
	MaxWidth  int
	MaxHeight int
	Zoom      int
}

func (o DisplayOptions) normalized() DisplayOptions {
	if o.MaxWidth <= 0 {
		o.MaxWidth = DefaultDisplayMaxWidth
	}
	if o.MaxHeight <= 0 {
		o.MaxHeight = DefaultDisplayMaxHeight
	}
	o.MaxWidth = min(o.MaxWidth, MaxDisplayDimension)
	o.MaxHeight = min(o.MaxHeight, MaxDisplayDimension)
	switch {
	case o.Zoom == 0:
		o.Zoom = DefaultZoom
	case o.Zoom < MinZoom:
		o.Zoom = MinZoom
	case o.Zoom > MaxZoom:
		o.Zoom = MaxZoom
	}
	return o
}

// DisplaySize fits width x height into the bounds without upscaling and
// then applies zoom. Neither edge of the result exceeds MaxDisplayDimension.
func DisplaySize(width, height int, opts DisplayOptions) (int, int) {
	opts = opts.normalized()
	if width <= 0 || height <= 0 {
		return 0, 0
	}

	scale := 1.0
	if width > opts.MaxWidth || height > opts.MaxHeight {
		sx := float64(opts.MaxWidth) / float64(width)
		sy := float64(opts.MaxHeight) / float64(height)
		scale = min(sx, sy)
	}
	scale *= float64(opts.Zoom) / 100
	if float64(width)*scale > MaxDisplayDimension || float64(height)*scale > MaxDisplayDimension {
		scale = min(float64(MaxDisplayDimension)/float64(width), float64(MaxDisplayDimension)/float64(height))
	}

	w := max(1, int(float64(width)*scale+0.5))
	h := max(1, int(float64(height)*scale+0.5))
	return w, h
}

// RenderDisplay scales img for display and encodes it as PNG.
func RenderDisplay(img image.Image, opts DisplayOptions) ([]byte, error) {
	bounds := img.Bounds()
	w, h := DisplaySize(bounds.Dx(), bounds.Dy(), opts)
	if w == 0 {
		return nil, fmt.Errorf("image has no pixels")
	}

	var out image.Image = img
	if w != bounds.Dx() || h != bounds.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		out = dst
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("failed to encode display image: %w", err)
	}

	log.Debug().
		Int("orig_width", bounds.Dx()).
		Int("orig_height", bounds.Dy()).
		Int("width", w).
		Int("height", h).
		Int("output_size", buf.Len()).
		Msg("Display image rendered")

	return buf.Bytes(), nil
}

// Within limits o to bounds: a requested box larger than the configured one
// is shrunk to it and zoom is clamped to [MinZoom, MaxZoom].
func (o DisplayOptions) Within(bounds DisplayOptions) DisplayOptions {
	o = o.normalized()
	bounds = bounds.normalized()
	o.MaxWidth = min(o.MaxWidth, bounds.MaxWidth)
	o.MaxHeight = min(o.MaxHeight, bounds.MaxHeight)
	return o
}
