package chat

import (
	"context"
	"net/http"
	"time"

	"github.com/fpang/ai-image-editor/internal/config"
	"github.com/fpang/ai-image-editor/internal/imageref"
	"github.com/fpang/ai-image-editor/internal/operation"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

// OpenAIEditor sends edits to an OpenAI-compatible chat-completions endpoint,
// such as an OpenRouter gateway fronting an image-capable model.
type OpenAIEditor struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	strict  bool
}

// NewOpenAIEditor creates an editor. Empty BaseURL and Model fall back to
// the gateway defaults.
func NewOpenAIEditor(opts Options) *OpenAIEditor {
	cfg := openai.DefaultConfig(opts.APIKey)
	cfg.BaseURL = opts.BaseURL
	if cfg.BaseURL == "" {
		cfg.BaseURL = config.DefaultOpenAIBaseURL
	}
	cfg.HTTPClient = &http.Client{}

	model := opts.Model
	if model == "" {
		model = config.DefaultOpenAIModel
	}

	return &OpenAIEditor{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: opts.Timeout,
		strict:  opts.Strict,
	}
}

// Edit sends the image and the operation's instruction in a single user
// message and extracts the edited image from the reply text.
func (e *OpenAIEditor) Edit(ctx context.Context, image imageref.Ref, op operation.Operation) Result {
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
		Msg("Sending image for remote editing")

	parts := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: op.Instruction()},
		{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: image.DataURI(), Detail: openai.ImageURLDetailAuto},
		},
	}
	if removal, ok := op.(operation.ObjectRemoval); ok && len(removal.Mask) > 0 {
		mask := imageref.Ref{Data: removal.Mask, MIMEType: removal.MaskMIME}
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: mask.DataURI(), Detail: openai.ImageURLDetailAuto},
		})
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{{
			Role:         openai.ChatMessageRoleUser,
			MultiContent: parts,
		}},
	})
	if err != nil {
		res := remoteFailure(start, err)
		log.Debug().Err(err).Msg("Chat completion request failed")
		record(config.ProviderOpenAI, e.model, op, res)
		return res
	}

	if len(resp.Choices) == 0 {
		res := failure(start, "Remote service returned no choices")
		record(config.ProviderOpenAI, e.model, op, res)
		return res
	}

	text := resp.Choices[0].Message.Content
	ext, err := ExtractImage(text, e.strict)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to extract image from reply")
		res := failure(start, "Could not find an edited image in the response")
		res.Text = text
		record(config.ProviderOpenAI, e.model, op, res)
		return res
	}

	res := Result{
		Success: true,
		Payload: ext.Ref,
		Source:  ext.Source,
		Elapsed: time.Since(start),
		Text:    text,
	}
	record(config.ProviderOpenAI, e.model, op, res)
	return res
}
