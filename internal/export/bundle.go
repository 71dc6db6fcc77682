package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"time"

	"github.com/fpang/ai-image-editor/internal/history"
	"github.com/fpang/ai-image-editor/internal/imageref"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

// ZipMethodZstd is the ZIP compression method ID for Zstandard (APPNOTE 6.3.7).
const ZipMethodZstd uint16 = zstd.ZipMethodWinZip

// Bundle packs the original and every history state, re-encoded with opts,
// into a zstd-compressed ZIP.
func Bundle(original imageref.Ref, entries []history.Entry, opts Options) (Blob, error) {
	if opts.Format == "" {
		opts.Format = FormatPNG
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(ZipMethodZstd, zstd.ZipCompressor(zstd.WithEncoderLevel(zstd.SpeedBetterCompression)))

	add := func(name string, ref imageref.Ref, modified time.Time) error {
		blob, err := Encode(ref, Options{Format: opts.Format, Quality: opts.Quality, Name: name})
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		header := &zip.FileHeader{
			Name:     blob.FileName,
			Method:   ZipMethodZstd,
			Modified: modified,
		}
		w, err := zw.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("failed to create zip entry %s: %w", blob.FileName, err)
		}
		if _, err := w.Write(blob.Data); err != nil {
			return fmt.Errorf("failed to write zip entry %s: %w", blob.FileName, err)
		}
		return nil
	}

	if err := add("00-original", original, opts.Now); err != nil {
		return Blob{}, err
	}
	for i, e := range entries {
		if err := add(fmt.Sprintf("%02d-%s", i+1, e.Operation), e.Image, e.Timestamp); err != nil {
			return Blob{}, err
		}
	}
	if err := zw.Close(); err != nil {
		return Blob{}, fmt.Errorf("failed to finalize zip: %w", err)
	}

	name := baseName(opts.OriginalName) + "-history-" + opts.Now.UTC().Format(timestampLayout) + ".zip"
	log.Info().
		Int("entries", len(entries)+1).
		Str("format", string(opts.Format)).
		Int("zip_bytes", buf.Len()).
		Msg("History bundle created")

	return Blob{Data: buf.Bytes(), MIMEType: "application/zip", FileName: name}, nil
}
