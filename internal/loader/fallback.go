package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"docpipe/internal/models"
)

// ExtractionClient is the format-agnostic fallback for inputs the dispatch
// table does not cover: it posts the file to a generic document extraction
// service and maps the returned elements to RawDocuments.
type ExtractionClient struct {
	Endpoint string
	APIKey   string
	client   *http.Client
}

// NewExtractionClient validates the credential up front: a missing key is a
// configuration error, never a silent skip.
func NewExtractionClient(endpoint, apiKey string) (*ExtractionClient, error) {
	if endpoint == "" {
		return nil, &models.ConfigurationError{Field: "extraction.endpoint", Reason: "must not be empty"}
	}
	if apiKey == "" {
		return nil, &models.ConfigurationError{Field: "extraction.api_key", Reason: "must not be empty"}
	}
	return &ExtractionClient{
		Endpoint: endpoint,
		APIKey:   apiKey,
		client:   &http.Client{Timeout: 60 * time.Second},
	}, nil
}

type extractedElement struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// Load uploads one file and returns its extracted elements.
func (c *ExtractionClient) Load(path string) ([]models.RawDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, c.Endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("unstructured-api-key", c.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &models.ExternalServiceError{Service: "extraction", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, &models.ExternalServiceError{
			Service: "extraction",
			Err:     fmt.Errorf("request failed: %d, %s", resp.StatusCode, string(data)),
		}
	}

	var elements []extractedElement
	if err := json.NewDecoder(resp.Body).Decode(&elements); err != nil {
		return nil, &models.ExternalServiceError{Service: "extraction", Err: err}
	}

	docs := make([]models.RawDocument, 0, len(elements))
	for _, el := range elements {
		metadata := map[string]string{models.MetaSource: path}
		for k, v := range el.Metadata {
			metadata[k] = fmt.Sprint(v)
		}
		docs = append(docs, models.RawDocument{Text: el.Text, Metadata: metadata})
	}
	return docs, nil
}

// LoadDir uploads every file directly under dir. A file that fails yields an
// empty result for that file and the batch continues.
func (c *ExtractionClient) LoadDir(dir string) ([]models.RawDocument, []FileFailure, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}
	var docs []models.RawDocument
	var failures []FileFailure
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		loaded, err := c.Load(path)
		if err != nil {
			log.Warn().Err(err).Str("file", path).Msg("Skipping file that failed extraction")
			failures = append(failures, FileFailure{Path: path, Err: err})
			continue
		}
		docs = append(docs, loaded...)
	}
	return docs, failures, nil
}
