package llmservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"docpipe/internal/config"
	"docpipe/internal/models"
)

const captionPrompt = "Describe the image in one short sentence for search retrieval. Answer only with the description and nothing else."

// Captioner describes images with a multimodal chat model. It backs the PDF
// loader's image augmentation.
type Captioner struct {
	cfg *config.LLMConfig
}

// NewCaptioner requires a configured model and credential; a blank key is a
// configuration error, surfaced before any file is processed.
func NewCaptioner(cfg *config.LLMConfig) (*Captioner, error) {
	if cfg == nil || cfg.Model == "" {
		return nil, &models.ConfigurationError{Field: "captioning.model", Reason: "must not be empty"}
	}
	if cfg.Key == "" {
		return nil, &models.ConfigurationError{Field: "captioning.key", Reason: "must not be empty"}
	}
	return &Captioner{cfg: cfg}, nil
}

// Caption returns a one-line description of the image.
func (c *Captioner) Caption(ctx context.Context, mimeType string, data []byte) (string, error) {
	messages := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.BinaryPart(mimeType, data),
				llms.TextPart(captionPrompt),
			},
		},
	}
	res, err := GenerateContent(ctx, c.cfg, nil, messages)
	if err != nil {
		return "", &models.ExternalServiceError{Service: "image captioning", Err: err}
	}
	if len(res.Choices) == 0 {
		return "", &models.ExternalServiceError{Service: "image captioning", Err: fmt.Errorf("empty response")}
	}
	return strings.TrimSpace(res.Choices[0].Content), nil
}
