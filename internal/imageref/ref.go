// Package imageref holds the image reference passed between the session,
// the remote editor and the export surface. A reference carries embedded
// bytes, a remote URL, or both once a remote result has been fetched.
package imageref

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrEmpty is returned when a reference carries neither bytes nor a URL.
var ErrEmpty = errors.New("image reference is empty")

// Ref is an immutable image reference.
type Ref struct {
	Data     []byte
	MIMEType string
	URL      string
}

// FromBytes builds an embedded reference, sniffing the MIME type when the
// caller does not supply one.
func FromBytes(data []byte, mimeType string) Ref {
	if mimeType == "" {
		mimeType = SniffMIME(data)
	}
	return Ref{Data: data, MIMEType: mimeType}
}

// IsZero reports whether the reference is empty.
func (r Ref) IsZero() bool {
	return len(r.Data) == 0 && r.URL == ""
}

// HasData reports whether the bytes are available locally.
func (r Ref) HasData() bool {
	return len(r.Data) > 0
}

// DataURI renders the embedded bytes as a base64 data URI.
func (r Ref) DataURI() string {
	if len(r.Data) == 0 {
		return ""
	}
	mimeType := r.MIMEType
	if mimeType == "" {
		mimeType = SniffMIME(r.Data)
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(r.Data)
}

// String returns the most useful addressable form: the remote URL when set,
// otherwise a data URI.
func (r Ref) String() string {
	if r.URL != "" {
		return r.URL
	}
	return r.DataURI()
}

// SniffMIME detects an image MIME type from the leading bytes.
func SniffMIME(data []byte) string {
	return http.DetectContentType(data)
}

// IsDataURI reports whether s looks like a data URI.
func IsDataURI(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "data:")
}

// ParseDataURI decodes a base64 data URI into bytes and MIME type.
func ParseDataURI(uri string) ([]byte, string, error) {
	uri = strings.TrimSpace(uri)
	if !strings.HasPrefix(uri, "data:") {
		return nil, "", fmt.Errorf("not a data URI")
	}
	header, payload, ok := strings.Cut(uri[len("data:"):], ",")
	if !ok {
		return nil, "", fmt.Errorf("data URI has no payload separator")
	}
	mediaType, params, _ := strings.Cut(header, ";")
	if !strings.Contains(params, "base64") {
		return nil, "", fmt.Errorf("data URI is not base64 encoded")
	}
	data, err := DecodeBase64(payload)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode data URI: %w", err)
	}
	if mediaType == "" {
		mediaType = SniffMIME(data)
	}
	return data, mediaType, nil
}

// DecodeBase64 accepts standard or URL-safe base64, padded or not, and
// ignores embedded whitespace.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return nil, fmt.Errorf("empty base64 payload")
	}
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		data, err := enc.DecodeString(s)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// Parse accepts either a data URI or raw base64 and returns an embedded
// reference. This is the wire form used by the processing API.
func Parse(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ref{}, ErrEmpty
	}
	if IsDataURI(s) {
		data, mimeType, err := ParseDataURI(s)
		if err != nil {
			return Ref{}, err
		}
		return Ref{Data: data, MIMEType: mimeType}, nil
	}
	data, err := DecodeBase64(s)
	if err != nil {
		return Ref{}, fmt.Errorf("image is not valid base64: %w", err)
	}
	return FromBytes(data, ""), nil
}

// Extension maps an image MIME type to a file extension without the dot.
func Extension(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "bin"
	}
}
