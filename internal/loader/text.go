package loader

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"docpipe/internal/models"
)

// TextOptions configures the plain-text loader.
type TextOptions struct {
	// Encoding is an IANA charset name ("utf-8", "gbk", "latin1", ...).
	// Empty means utf-8.
	Encoding string
}

// TextLoader loads a whole .txt file as one RawDocument, decoding it from the
// configured character encoding.
type TextLoader struct {
	Encoding string
}

func (l *TextLoader) Load(path string) ([]models.RawDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	name := l.Encoding
	if name == "" {
		name = "utf-8"
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, &models.ConfigurationError{Field: "text.encoding", Reason: fmt.Sprintf("unknown charset %q", name)}
	}
	r = transform.NewReader(r, enc.NewDecoder())

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return []models.RawDocument{{
		Text:     string(data),
		Metadata: map[string]string{models.MetaSource: path},
	}}, nil
}
