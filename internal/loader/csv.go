package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"docpipe/internal/models"
)

// CSVOptions configures the row-oriented CSV loader.
type CSVOptions struct {
	// SourceColumn, when set, names the column whose value replaces the file
	// path as each row's source metadata.
	SourceColumn string
}

// CSVLoader emits one RawDocument per data row. The row's text is a
// "column: value" line per column; column values are also kept in metadata.
type CSVLoader struct {
	SourceColumn string
}

func (l *CSVLoader) Load(path string) ([]models.RawDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header of %s: %w", path, err)
	}

	var docs []models.RawDocument
	row := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d of %s: %w", row+1, path, err)
		}
		row++

		var text strings.Builder
		metadata := map[string]string{
			models.MetaSource: path,
			models.MetaRow:    strconv.Itoa(row),
		}
		for i, value := range record {
			col := fmt.Sprintf("column%d", i+1)
			if i < len(header) {
				col = header[i]
			}
			fmt.Fprintf(&text, "%s: %s\n", col, value)
			metadata[col] = value
			if l.SourceColumn != "" && col == l.SourceColumn {
				metadata[models.MetaSource] = value
			}
		}
		docs = append(docs, models.RawDocument{
			Text:     strings.TrimRight(text.String(), "\n"),
			Metadata: metadata,
		})
	}
	return docs, nil
}
