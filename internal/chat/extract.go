package chat

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/fpang/ai-image-editor/internal/imageref"
	"github.com/fpang/ai-image-editor/internal/jsonutil"
	"github.com/rs/zerolog/log"
)

// ErrNoImageInResponse is returned when no image could be located in a reply.
var ErrNoImageInResponse = errors.New("no image found in response")

var (
	markdownImageRe = regexp.MustCompile(`!\[[^\]]*\]\(\s*<?([^)\s>]+)>?(?:\s+"[^"]*")?\s*\)`)
	dataURIRe       = regexp.MustCompile(`data:image/[a-zA-Z0-9.+-]+;base64,[A-Za-z0-9+/=_-]+`)
	httpURLRe       = regexp.MustCompile(`https?://[^\s<>"'()\[\]{}` + "`" + `]+`)
	imageExts       = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".webp": true, ".gif": true}
)

// Extraction is an image located in free-form reply text.
type Extraction struct {
	Ref    imageref.Ref
	Source PayloadSource
}

// ExtractImage locates an image reference in a model reply. It tries, in
// order: a JSON object with imageUrl/image_url/url/b64_json, a markdown image
// link, an embedded data URI, and the first http(s) URL whose path carries an
// image extension. Links without one are ignored. As a last resort the whole reply is decoded as base64 and accepted
// only if the bytes sniff as an image; strict disables that step.
func ExtractImage(text string, strict bool) (Extraction, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Extraction{}, fmt.Errorf("%w: empty reply", ErrNoImageInResponse)
	}

	if ext, ok := fromJSON(text); ok {
		return ext, nil
	}
	if m := markdownImageRe.FindStringSubmatch(text); m != nil {
		if ext, ok := fromReference(m[1]); ok {
			return ext, nil
		}
	}
	if m := dataURIRe.FindString(text); m != "" {
		if ext, ok := fromReference(m); ok {
			return ext, nil
		}
	}
	if u := firstURL(text); u != "" {
		return Extraction{Ref: imageref.Ref{URL: u}, Source: SourceURL}, nil
	}

	if strict {
		return Extraction{}, fmt.Errorf("%w (text: %s)", ErrNoImageInResponse, truncateString(text, 200))
	}
	return rawFallback(text)
}

// fromJSON looks for the structured reply shape.
func fromJSON(text string) (Extraction, bool) {
	obj, err := jsonutil.ParseObject[map[string]any](text)
	if err != nil {
		return Extraction{}, false
	}

	if b64, ok := obj["b64_json"].(string); ok && b64 != "" {
		data, err := imageref.DecodeBase64(b64)
		if err == nil {
			return Extraction{Ref: imageref.FromBytes(data, ""), Source: SourceInline}, true
		}
	}
	for _, key := range []string{"imageUrl", "image_url", "url"} {
		switch v := obj[key].(type) {
		case string:
			if ext, ok := fromReference(v); ok {
				return ext, true
			}
		case map[string]any:
			if s, ok := v["url"].(string); ok {
				if ext, ok := fromReference(s); ok {
					return ext, true
				}
			}
		}
	}
	return Extraction{}, false
}

// fromReference accepts a data URI or an absolute http(s) URL.
func fromReference(ref string) (Extraction, bool) {
	ref = strings.TrimSpace(ref)
	if imageref.IsDataURI(ref) {
		data, mimeType, err := imageref.ParseDataURI(ref)
		if err != nil {
			return Extraction{}, false
		}
		return Extraction{Ref: imageref.Ref{Data: data, MIMEType: mimeType}, Source: SourceDataURI}, true
	}
	u, err := url.Parse(ref)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Extraction{}, false
	}
	return Extraction{Ref: imageref.Ref{URL: ref}, Source: SourceURL}, true
}

// firstURL returns the first URL whose path has an image extension.
func firstURL(text string) string {
	for _, m := range httpURLRe.FindAllString(text, -1) {
		m = strings.TrimRight(m, ".,;:!?")
		if u, err := url.Parse(m); err == nil && imageExts[strings.ToLower(path.Ext(u.Path))] {
			return m
		}
	}
	return ""
}

func rawFallback(text string) (Extraction, error) {
	data, err := imageref.DecodeBase64(jsonutil.StripMarkdownFences(text))
	if err != nil {
		return Extraction{}, fmt.Errorf("%w (text: %s)", ErrNoImageInResponse, truncateString(text, 200))
	}
	mimeType := imageref.SniffMIME(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return Extraction{}, fmt.Errorf("%w: reply decoded as %s", ErrNoImageInResponse, mimeType)
	}
	log.Warn().
		Int("bytes", len(data)).
		Str("mime", mimeType).
		Msg("No image reference in reply; treating whole reply as base64 image")
	return Extraction{Ref: imageref.Ref{Data: data, MIMEType: mimeType}, Source: SourceRawFallback}, nil
}
