package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"docpipe/internal/embedding"
)

// LLMConfig points at one OpenAI-compatible or ollama endpoint.
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	Key     string `yaml:"key"`
	Model   string `yaml:"model"`
}

// LoaderConfig carries the per-format loader settings.
type LoaderConfig struct {
	TextEncoding   string `yaml:"text_encoding"`
	CSVSource      string `yaml:"csv_source_column"`
	JSONQuery      string `yaml:"json_query"`
	JSONContentKey string `yaml:"json_content_key"`
	PDFMode        string `yaml:"pdf_mode"`
	PDFDelimiter   string `yaml:"pdf_delimiter"`
	PDFPassword    string `yaml:"pdf_password"`
	PDFImages      bool   `yaml:"pdf_images"`
	PDFImageFormat string `yaml:"pdf_image_format"`
	Mode           string `yaml:"mode"` // docx/excel/markdown: "single" or "elements"
}

// SplitterConfig carries the chunking settings.
type SplitterConfig struct {
	ChunkSize     int    `yaml:"chunk_size"`
	ChunkOverlap  int    `yaml:"chunk_overlap"`
	BoundaryModel string `yaml:"boundary_model"`
}

// StoreConfig selects and configures the vector store backend.
type StoreConfig struct {
	Backend     string `yaml:"backend"` // "chromem" (default) or "postgres"
	Directory   string `yaml:"directory"`
	Collection  string `yaml:"collection"`
	PostgresDSN string `yaml:"postgres_dsn"`
	PostgresKey string `yaml:"postgres_key"`
	Debug       bool   `yaml:"debug"`
}

// ExtractionConfig configures the generic extraction fallback service.
type ExtractionConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
}

type Config struct {
	Loader     LoaderConfig     `yaml:"loader"`
	Splitter   SplitterConfig   `yaml:"splitter"`
	EmbedLLM   embedding.Config `yaml:"embedding"`
	Inference  LLMConfig        `yaml:"inference"`
	Captioning LLMConfig        `yaml:"captioning"`
	Store      StoreConfig      `yaml:"store"`
	Extraction ExtractionConfig `yaml:"extraction"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
