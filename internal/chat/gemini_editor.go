package chat

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fpang/ai-image-editor/internal/config"
	"github.com/fpang/ai-image-editor/internal/imageref"
	"github.com/fpang/ai-image-editor/internal/operation"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// GeminiEditor calls a Gemini image model through the genai SDK. The model
// returns the edited image as structured inline data, so text extraction is
// only a fallback.
type GeminiEditor struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	strict  bool
}

// NewGeminiEditor creates a Gemini-backed editor.
func NewGeminiEditor(ctx context.Context, opts Options) (*GeminiEditor, error) {
	cc := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{},
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = config.DefaultGeminiModel
	}
	return &GeminiEditor{client: client, model: model, timeout: opts.Timeout, strict: opts.Strict}, nil
}

// Client exposes the underlying SDK client for key validation.
func (e *GeminiEditor) Client() *genai.Client {
	return e.client
}

// Edit sends the image with the operation's instruction and returns the
// first inline image of the reply.
func (e *GeminiEditor) Edit(ctx context.Context, image imageref.Ref, op operation.Operation) Result {
	start := time.Now()
	if !image.HasData() {
		return failure(start, "image is required")
	}

	ctx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()

	log.Info().
		Str("model", e.model).
		Str("operation", string(op.Name())).
		Int("image_bytes", len(image.Data)).
		Str("image_mime", image.MIMEType).
		Msg("Sending image to Gemini for editing")

	parts := []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: image.MIMEType, Data: image.Data}},
	}
	if removal, ok := op.(operation.ObjectRemoval); ok && len(removal.Mask) > 0 {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: removal.MaskMIME, Data: removal.Mask}})
	}
	parts = append(parts, &genai.Part{Text: op.Instruction()})

	resp, err := e.client.Models.GenerateContent(ctx, e.model,
		[]*genai.Content{{Role: "user", Parts: parts}},
		&genai.GenerateContentConfig{ResponseModalities: []string{"TEXT", "IMAGE"}},
	)
	if err != nil {
		res := remoteFailure(start, err)
		log.Debug().Err(err).Msg("GenerateContent failed")
		record(config.ProviderGemini, e.model, op, res)
		return res
	}

	var text strings.Builder
	var inline *genai.Blob
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate == nil || candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part == nil {
					continue
				}
				if part.InlineData != nil && len(part.InlineData.Data) > 0 && inline == nil {
					inline = part.InlineData
				}
				if part.Text != "" {
					text.WriteString(part.Text)
				}
			}
		}
	}

	res := Result{Text: text.String()}
	switch {
	case inline != nil:
		res.Success = true
		res.Payload = imageref.FromBytes(inline.Data, inline.MIMEType)
		res.Source = SourceInline
	default:
		ext, err := ExtractImage(res.Text, e.strict)
		if err != nil {
			log.Debug().Err(err).Str("text", truncateString(res.Text, 200)).Msg("No image returned in response")
			res.Error = "Could not find an edited image in the response"
		} else {
			res.Success = true
			res.Payload = ext.Ref
			res.Source = ext.Source
		}
	}
	res.Elapsed = time.Since(start)
	record(config.ProviderGemini, e.model, op, res)
	return res
}
