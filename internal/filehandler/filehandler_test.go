package filehandler

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func solid(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 10, G: 120, B: 200, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}
	return buf.Bytes()
}

func encodeGIF(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, nil); err != nil {
		t.Fatalf("gif.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestValidateUpload(t *testing.T) {
	jpg := encodeJPEG(t, solid(8, 8))
	bigJPEG := append(append([]byte(nil), jpg...), make([]byte, 2<<20)...)
	tooBig := append(append([]byte(nil), jpg...), make([]byte, 10<<20)...)

	tests := []struct {
		name     string
		upload   Upload
		wantMIME string
		wantMsg  string
	}{
		{"jpeg 2MB", Upload{Name: "photo.jpg", MIMEType: "image/jpeg", Data: bigJPEG}, "image/jpeg", ""},
		{"png no declared type", Upload{Name: "a.png", Data: encodePNG(t, solid(4, 4))}, "image/png", ""},
		{"gif octet-stream", Upload{Name: "a.gif", MIMEType: "application/octet-stream", Data: encodeGIF(t, solid(4, 4))}, "image/gif", ""},
		{"declared pdf", Upload{Name: "doc.pdf", MIMEType: "application/pdf", Data: jpg}, "", MsgInvalidType},
		{"text content", Upload{Name: "a.png", MIMEType: "image/png", Data: []byte("hello world")}, "", MsgInvalidType},
		{"empty", Upload{Name: "a.png", MIMEType: "image/png"}, "", MsgInvalidType},
		{"too large", Upload{Name: "big.jpg", MIMEType: "image/jpeg", Data: tooBig}, "", "File size must be less than 10MB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateUpload(tt.upload, 0)
			if tt.wantMsg != "" {
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("expected *ValidationError, got %v", err)
				}
				if ve.Message != tt.wantMsg {
					t.Errorf("message = %q, want %q", ve.Message, tt.wantMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.MIMEType != tt.wantMIME {
				t.Errorf("MIMEType = %q, want %q", got.MIMEType, tt.wantMIME)
			}
		})
	}
}

// pngHeader is a PNG signature plus an IHDR chunk declaring w x h RGBA
// pixels, with no image data behind it.
func pngHeader(w, h uint32) []byte {
	chunk := make([]byte, 17)
	copy(chunk, "IHDR")
	binary.BigEndian.PutUint32(chunk[4:], w)
	binary.BigEndian.PutUint32(chunk[8:], h)
	chunk[12] = 8 // bit depth
	chunk[13] = 6 // truecolor with alpha

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	binary.Write(&buf, binary.BigEndian, uint32(13))
	buf.Write(chunk)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestValidateUpload_PixelLimit(t *testing.T) {
	huge := pngHeader(60000, 60000)
	if cfg, _, err := DecodeConfig(huge); err != nil || cfg.Width != 60000 {
		t.Fatalf("crafted header not readable: %+v, %v", cfg, err)
	}

	_, err := ValidateUpload(Upload{Name: "huge.png", MIMEType: "image/png", Data: huge}, 0)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if ve.Message != "Image dimensions must not exceed 50 megapixels" {
		t.Errorf("message = %q", ve.Message)
	}

	if _, err := ValidateUpload(Upload{Name: "ok.png", Data: encodePNG(t, solid(64, 64))}, 0); err != nil {
		t.Errorf("small image rejected: %v", err)
	}
}

func TestDecode_RefusesOversizedHeader(t *testing.T) {
	if _, _, err := Decode(pngHeader(60000, 60000)); !errors.Is(err, ErrTooManyPixels) {
		t.Errorf("err = %v, want ErrTooManyPixels", err)
	}
}

func TestValidateUpload_CustomLimit(t *testing.T) {
	jpg := encodeJPEG(t, solid(64, 64))
	_, err := ValidateUpload(Upload{Name: "a.jpg", Data: jpg}, int64(len(jpg)-1))
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected size rejection, got %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.PNG")
	if err := os.WriteFile(path, encodePNG(t, solid(3, 3)), 0o600); err != nil {
		t.Fatal(err)
	}

	u, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if u.Name != "photo.PNG" || u.MIMEType != "image/png" || len(u.Data) == 0 {
		t.Errorf("upload = %q %q %d bytes", u.Name, u.MIMEType, len(u.Data))
	}

	if _, err := LoadFile(filepath.Join(dir, "notes.txt")); err == nil {
		t.Error("expected rejection for .txt")
	}
	if !IsImage(".WEBP") || IsImage(".mp4") {
		t.Error("IsImage misreports extensions")
	}
}

func TestExtractImageMetadata(t *testing.T) {
	md, err := ExtractImageMetadata(encodePNG(t, solid(30, 20)))
	if err != nil {
		t.Fatalf("ExtractImageMetadata: %v", err)
	}
	if md.Width != 30 || md.Height != 20 || md.Format != "png" {
		t.Errorf("metadata = %+v", md)
	}
	if md.HasDate || md.HasGPS {
		t.Error("PNG without EXIF should not report date or GPS")
	}

	if _, err := ExtractImageMetadata([]byte("not an image")); err == nil {
		t.Error("expected error for unreadable header")
	}
}

func TestDisplaySize(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		opts         DisplayOptions
		wantW, wantH int
	}{
		{"small image not upscaled", 200, 100, DisplayOptions{}, 200, 100},
		{"wide image fits width", 1600, 600, DisplayOptions{}, 800, 300},
		{"tall image fits height", 600, 1200, DisplayOptions{}, 300, 600},
		{"zoom doubles", 200, 100, DisplayOptions{Zoom: 200}, 400, 200},
		{"zoom clamped low", 1000, 1000, DisplayOptions{MaxWidth: 100, MaxHeight: 100, Zoom: 1}, 10, 10},
		{"zoom clamped high", 10, 10, DisplayOptions{Zoom: 1000}, 40, 40},
		{"custom bounds", 400, 400, DisplayOptions{MaxWidth: 100, MaxHeight: 200}, 100, 100},
		{"huge bounds capped", 20000, 20000, DisplayOptions{MaxWidth: 1 << 20, MaxHeight: 1 << 20, Zoom: 400}, MaxDisplayDimension, MaxDisplayDimension},
		{"zoom capped at max edge", 2000, 1000, DisplayOptions{MaxWidth: 4000, MaxHeight: 4000, Zoom: 400}, MaxDisplayDimension, MaxDisplayDimension / 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := DisplaySize(tt.w, tt.h, tt.opts)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("DisplaySize = %dx%d, want %dx%d", w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestDisplayOptionsWithin(t *testing.T) {
	bounds := DisplayOptions{MaxWidth: 800, MaxHeight: 600}
	got := DisplayOptions{MaxWidth: 100000, MaxHeight: 50, Zoom: 9999}.Within(bounds)
	if got.MaxWidth != 800 || got.MaxHeight != 50 || got.Zoom != MaxZoom {
		t.Errorf("Within = %+v, want 800x50 at %d%%", got, MaxZoom)
	}
	if got := (DisplayOptions{}).Within(DisplayOptions{}); got.MaxWidth != DefaultDisplayMaxWidth || got.MaxHeight != DefaultDisplayMaxHeight {
		t.Errorf("zero options = %+v, want defaults", got)
	}
}

func TestRenderDisplay(t *testing.T) {
	out, err := RenderDisplay(solid(1600, 800), DisplayOptions{Zoom: 50})
	if err != nil {
		t.Fatalf("RenderDisplay: %v", err)
	}
	img, format, err := Decode(out)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if format != "png" {
		t.Errorf("format = %q, want png", format)
	}
	if b := img.Bounds(); b.Dx() != 400 || b.Dy() != 200 {
		t.Errorf("rendered %dx%d, want 400x200", b.Dx(), b.Dy())
	}
}
