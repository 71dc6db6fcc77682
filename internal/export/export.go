// Package export re-encodes the current image for download.
package export

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/fpang/ai-image-editor/internal/filehandler"
	"github.com/fpang/ai-image-editor/internal/imageref"
	"github.com/rs/zerolog/log"
)

// Format is an export file format.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPG  Format = "jpg"
	FormatWebP Format = "webp"
)

// Quality bounds for lossy formats.
const (
	DefaultQuality = 90
	MinQuality     = 10
	MaxQuality     = 100
)

// Formats lists the export formats in display order.
func Formats() []Format {
	return []Format{FormatPNG, FormatJPG, FormatWebP}
}

// ParseFormat accepts png, jpg, jpeg and webp in any case. Empty means png.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPG, nil
	case "webp":
		return FormatWebP, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (use png, jpg or webp)", s)
	}
}

// Extension returns the file extension without the dot.
func (f Format) Extension() string {
	return string(f)
}

// MIMEType returns the content type of the encoded output.
func (f Format) MIMEType() string {
	switch f {
	case FormatJPG:
		return "image/jpeg"
	case FormatWebP:
		return "image/webp"
	default:
		return "image/png"
	}
}

// Lossy reports whether quality affects the output.
func (f Format) Lossy() bool {
	return f == FormatJPG || f == FormatWebP
}

// ClampQuality maps 0 to the default and clamps everything else into range.
func ClampQuality(q int) int {
	switch {
	case q == 0:
		return DefaultQuality
	case q < MinQuality:
		return MinQuality
	case q > MaxQuality:
		return MaxQuality
	default:
		return q
	}
}

// Options control one export.
type Options struct {
	Format  Format
	Quality int
	// Name is a user-supplied file name; empty derives one from OriginalName.
	Name         string
	OriginalName string
	// Now stamps generated names; zero uses the current time.
	Now time.Time
}

// Blob is a downloadable encoded image.
type Blob struct {
	Data     []byte
	MIMEType string
	FileName string
	Width    int
	Height   int
}

// Encode decodes ref at its natural resolution and re-encodes it. Alpha is
// flattened onto white for jpg; quality is ignored for png.
func Encode(ref imageref.Ref, opts Options) (Blob, error) {
	if !ref.HasData() {
		return Blob{}, fmt.Errorf("image data is not available for export")
	}
	if opts.Format == "" {
		opts.Format = FormatPNG
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	img, _, err := filehandler.Decode(ref.Data)
	if err != nil {
		return Blob{}, err
	}

	data, err := encodeImage(img, opts.Format, ClampQuality(opts.Quality))
	if err != nil {
		return Blob{}, err
	}

	blob := Blob{
		Data:     data,
		MIMEType: opts.Format.MIMEType(),
		FileName: FileName(opts.Name, opts.OriginalName, opts.Format, opts.Now),
		Width:    img.Bounds().Dx(),
		Height:   img.Bounds().Dy(),
	}

	log.Debug().
		Str("format", string(opts.Format)).
		Int("quality", ClampQuality(opts.Quality)).
		Int("input_bytes", len(ref.Data)).
		Int("output_bytes", len(data)).
		Str("file", blob.FileName).
		Msg("Image exported")

	return blob, nil
}

func encodeImage(img image.Image, format Format, quality int) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("failed to encode png: %w", err)
		}
	case FormatJPG:
		if err := jpeg.Encode(&buf, flatten(img), &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("failed to encode jpg: %w", err)
		}
	case FormatWebP:
		if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
			return nil, fmt.Errorf("failed to encode webp: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
	return buf.Bytes(), nil
}

// flatten composites img over an opaque white background.
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}
