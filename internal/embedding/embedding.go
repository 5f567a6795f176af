package embedding

import (
	"context"
	"math"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"docpipe/internal/models"
)

// Embedder is the opaque text-to-vector dependency. langchaingo embedders
// satisfy it; tests inject deterministic stubs.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Config selects and configures the embedding backend. Device is recognized
// for backends with local placement; it never changes vector dimensionality.
// Normalize rescales every returned vector to unit length.
type Config struct {
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	Key       string `yaml:"key"`
	Device    string `yaml:"device"`
	Normalize bool   `yaml:"normalize"`
}

// Provider wraps a backend embedder, adding batch embedding and optional
// output normalization. It adds no nondeterminism of its own.
type Provider struct {
	embedder  Embedder
	normalize bool
}

// NewProvider wraps an already constructed backend embedder.
func NewProvider(embedder Embedder, normalize bool) *Provider {
	return &Provider{embedder: embedder, normalize: normalize}
}

// NewOpenAIProvider builds a provider over an OpenAI-compatible endpoint.
func NewOpenAIProvider(cfg *Config) (*Provider, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, &models.ExternalServiceError{Service: "embedding", Err: err}
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, &models.ExternalServiceError{Service: "embedding", Err: err}
	}
	return NewProvider(embedder, cfg.Normalize), nil
}

// NewOllamaProvider builds a provider over a local ollama server. Device
// placement is the server's concern; the setting is logged for visibility.
func NewOllamaProvider(cfg *Config) (*Provider, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	log.Debug().Interface("config", map[string]string{
		"base_url":        cfg.BaseURL,
		"embedding_model": cfg.Model,
		"device":          cfg.Device,
	}).Msg("Loaded embedding config")
	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, &models.ExternalServiceError{Service: "embedding", Err: err}
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, &models.ExternalServiceError{Service: "embedding", Err: err}
	}
	return NewProvider(embedder, cfg.Normalize), nil
}

func validate(cfg *Config) error {
	if cfg == nil || cfg.Model == "" {
		return &models.ConfigurationError{Field: "embedding.model", Reason: "must not be empty"}
	}
	if cfg.BaseURL == "" {
		return &models.ConfigurationError{Field: "embedding.base_url", Reason: "must not be empty"}
	}
	return nil
}

// EmbedQuery embeds a single text.
func (p *Provider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vector, err := p.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, &models.ExternalServiceError{Service: "embedding", Err: err}
	}
	if p.normalize {
		normalizeVector(vector)
	}
	return vector, nil
}

// EmbedBatch embeds texts in order; the result is index-aligned with the input.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, &models.ExternalServiceError{Service: "embedding", Err: err}
	}
	if p.normalize {
		for _, v := range vectors {
			normalizeVector(v)
		}
	}
	return vectors, nil
}

// normalizeVector rescales v to unit length in place. Zero vectors are left
// untouched.
func normalizeVector(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}
