package operation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fpang/ai-image-editor/internal/imageref"
)

var (
	ErrMissingOperation = errors.New("operation is required")
	ErrInvalidIntensity = errors.New("intensity must be between 0 and 100")
	ErrInvalidMask      = errors.New("mask must be a base64 image or data URI")
)

// Params are the optional wire parameters of a request.
type Params struct {
	Style     string `json:"style,omitempty"`
	Prompt    string `json:"prompt,omitempty"`
	Intensity *int   `json:"intensity,omitempty"`
	Mask      string `json:"mask,omitempty"`
}

// Parse builds the operation for a wire name. Names outside the supported
// set become a generic Enhance request carrying the prompt, or the name
// itself when no prompt was given.
func Parse(name string, p Params) (Operation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrMissingOperation
	}

	intensity := DefaultIntensity
	if p.Intensity != nil {
		if *p.Intensity < 0 || *p.Intensity > 100 {
			return nil, fmt.Errorf("%w: got %d", ErrInvalidIntensity, *p.Intensity)
		}
		intensity = *p.Intensity
	}
	style := strings.TrimSpace(p.Style)
	prompt := strings.TrimSpace(p.Prompt)

	switch Name(strings.ToLower(name)) {
	case NameBackgroundRemoval:
		return BackgroundRemoval{}, nil

	case NameStyleTransfer:
		return StyleTransfer{Style: orDefault(style, DefaultStyle)}, nil

	case NameEnhance:
		return Enhance{Prompt: orDefault(prompt, DefaultEnhancePrompt), Intensity: intensity}, nil

	case NameObjectRemoval:
		op := ObjectRemoval{Prompt: orDefault(prompt, DefaultRemovalTarget)}
		if strings.TrimSpace(p.Mask) != "" {
			mask, err := imageref.Parse(p.Mask)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidMask, err)
			}
			op.Mask = mask.Data
			op.MaskMIME = mask.MIMEType
		}
		return op, nil

	case NameArtisticFilter:
		return ArtisticFilter{Style: orDefault(style, DefaultFilterStyle), Intensity: intensity}, nil

	default:
		return Enhance{Prompt: orDefault(prompt, name), Intensity: intensity}, nil
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
