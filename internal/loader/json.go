package loader

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/itchyny/gojq"

	"docpipe/internal/models"
)

const (
	defaultJSONQuery      = ".[]"
	defaultJSONLinesQuery = "."
)

// JSONOptions configures the structured JSON/JSONL loader.
type JSONOptions struct {
	// Query is a jq expression selecting the records to emit, run against
	// each top-level value. Default ".[]" (each array element), or "." in
	// JSON-Lines mode (each line is already one record).
	Query string
	// ContentKey extracts the text field from each selected record. Empty
	// means the whole record is stringified as text.
	ContentKey string
	// ContentKeyIsQuery treats ContentKey as a jq expression instead of a
	// plain object key, allowing nested extraction.
	ContentKeyIsQuery bool
	// MetadataKeys are object keys copied from each record into metadata.
	MetadataKeys []string
}

// JSONLoader emits one RawDocument per record selected by a jq query,
// supporting both single-JSON-array files and newline-delimited JSON.
type JSONLoader struct {
	Query             string
	ContentKey        string
	ContentKeyIsQuery bool
	MetadataKeys      []string
	JSONLines         bool
}

func (l *JSONLoader) Load(path string) ([]models.RawDocument, error) {
	query := l.Query
	if query == "" {
		if l.JSONLines {
			query = defaultJSONLinesQuery
		} else {
			query = defaultJSONQuery
		}
	}
	q, err := gojq.Parse(query)
	if err != nil {
		return nil, &models.ConfigurationError{Field: "json.query", Reason: fmt.Sprintf("invalid jq expression %q: %v", query, err)}
	}
	var contentQuery *gojq.Query
	if l.ContentKey != "" && l.ContentKeyIsQuery {
		contentQuery, err = gojq.Parse(l.ContentKey)
		if err != nil {
			return nil, &models.ConfigurationError{Field: "json.content_key", Reason: fmt.Sprintf("invalid jq expression %q: %v", l.ContentKey, err)}
		}
	}

	values, err := l.readValues(path)
	if err != nil {
		return nil, err
	}

	var docs []models.RawDocument
	seq := 0
	for _, v := range values {
		iter := q.Run(v)
		for {
			record, ok := iter.Next()
			if !ok {
				break
			}
			if err, isErr := record.(error); isErr {
				return nil, fmt.Errorf("failed to run jq query on %s: %w", path, err)
			}
			seq++
			doc, err := l.toDocument(path, seq, record, contentQuery)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// readValues parses the file into top-level JSON values: one per line in
// JSON-Lines mode, a single value otherwise.
func (l *JSONLoader) readValues(path string) ([]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !l.JSONLines {
		var v any
		if err := json.NewDecoder(f).Decode(&v); err != nil {
			return nil, fmt.Errorf("failed to parse JSON file %s: %w", path, err)
		}
		return []any{v}, nil
	}

	var values []any
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var v any
		if err := json.Unmarshal([]byte(text), &v); err != nil {
			return nil, fmt.Errorf("failed to parse JSON line %d of %s: %w", line, path, err)
		}
		values = append(values, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return values, nil
}

func (l *JSONLoader) toDocument(path string, seq int, record any, contentQuery *gojq.Query) (models.RawDocument, error) {
	metadata := map[string]string{
		models.MetaSource: path,
		"seq_num":         strconv.Itoa(seq),
	}
	obj, _ := record.(map[string]any)
	for _, key := range l.MetadataKeys {
		if obj == nil {
			continue
		}
		if v, ok := obj[key]; ok {
			metadata[key] = stringifyJSON(v)
		}
	}

	content := record
	switch {
	case contentQuery != nil:
		iter := contentQuery.Run(record)
		v, ok := iter.Next()
		if !ok {
			return models.RawDocument{}, fmt.Errorf("content query produced no value for record %d of %s", seq, path)
		}
		if err, isErr := v.(error); isErr {
			return models.RawDocument{}, fmt.Errorf("failed to extract content from record %d of %s: %w", seq, path, err)
		}
		content = v
	case l.ContentKey != "":
		if obj == nil {
			return models.RawDocument{}, fmt.Errorf("record %d of %s is not an object, cannot extract key %q", seq, path, l.ContentKey)
		}
		v, ok := obj[l.ContentKey]
		if !ok {
			return models.RawDocument{}, fmt.Errorf("record %d of %s has no key %q", seq, path, l.ContentKey)
		}
		content = v
	}

	return models.RawDocument{Text: stringifyJSON(content), Metadata: metadata}, nil
}

func stringifyJSON(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
