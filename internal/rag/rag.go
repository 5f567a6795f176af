package rag

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docpipe/internal/config"
	"docpipe/internal/models"
	"docpipe/internal/vectordb"
)

const defaultTopK = 4

// RAG composes the retrieval half with an external generation endpoint: it
// only wires collection search results into the model prompt.
type RAG struct {
	collection *vectordb.Collection
	cfg        *config.Config
	topK       int
}

func NewRAG(collection *vectordb.Collection, cfg *config.Config, topK int) *RAG {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &RAG{collection: collection, cfg: cfg, topK: topK}
}

// Retrieve returns the chunks the generation step conditions on, closest
// first.
func (r *RAG) Retrieve(ctx context.Context, query string) ([]models.Chunk, error) {
	return r.collection.Search(ctx, query, r.topK)
}

// Retriever exposes retrieval as a plain function for callers assembling
// their own generation chain.
func (r *RAG) Retriever() func(ctx context.Context, query string) ([]models.Chunk, error) {
	return r.Retrieve
}

// Answer retrieves context for the query and streams a chat completion from
// the configured OpenAI-compatible endpoint.
func (r *RAG) Answer(ctx context.Context, query string) (string, error) {
	chunks, err := r.Retrieve(ctx, query)
	if err != nil {
		return "", err
	}

	var contextText strings.Builder
	for _, chunk := range chunks {
		contextText.WriteString(chunk.Text + "\n\n")
	}

	payload := struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		Stream bool `json:"stream"`
	}{
		Model: r.cfg.Inference.Model,
		Messages: []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		}{
			{Role: "system", Content: "You are a helpful assistant. Use the provided context to answer the query."},
			{Role: "user", Content: fmt.Sprintf("Context:\n%s\nQuery: %s", contextText.String(), query)},
		},
		Stream: true,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.cfg.Inference.BaseURL+"/v1/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}

	req.Header.Set("Authorization", r.cfg.Inference.Key)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", &models.ExternalServiceError{Service: "generation", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &models.ExternalServiceError{
			Service: "generation",
			Err:     fmt.Errorf("request failed: %d, %s", resp.StatusCode, string(body)),
		}
	}

	var response strings.Builder
	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return "", err
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}

		if line == "data: [DONE]" {
			break
		}

		if strings.HasPrefix(line, "data: ") {
			data := strings.TrimPrefix(line, "data: ")
			var chunk struct {
				Choices []struct {
					Delta struct {
						Content string `json:"content"`
					} `json:"delta"`
				} `json:"choices"`
			}
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				response.WriteString(chunk.Choices[0].Delta.Content)
			}
		}
	}

	return response.String(), nil
}
