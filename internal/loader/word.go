package loader

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nguyenthenguyen/docx"

	"docpipe/internal/models"
)

const (
	// ModeSingle emits the whole file as one RawDocument.
	ModeSingle = "single"
	// ModeElements emits one RawDocument per structural element.
	ModeElements = "elements"
)

// WordOptions configures the .docx loader.
type WordOptions struct {
	Mode string // "single" (default) or "elements" (per paragraph)
}

// WordLoader extracts paragraph text from the document body XML.
type WordLoader struct {
	Mode string
}

var (
	wParagraph = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>|<w:p/>`)
	wText      = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
)

func (l *WordLoader) Load(path string) ([]models.RawDocument, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open DOCX %s: %w", path, err)
	}
	defer r.Close()

	content := r.Editable().GetContent()
	paragraphs := extractParagraphs(content)

	if l.Mode == ModeElements {
		var docs []models.RawDocument
		for i, p := range paragraphs {
			docs = append(docs, models.RawDocument{
				Text: p,
				Metadata: map[string]string{
					models.MetaSource:  path,
					models.MetaElement: strconv.Itoa(i + 1),
				},
			})
		}
		return docs, nil
	}

	return []models.RawDocument{{
		Text:     strings.Join(paragraphs, "\n"),
		Metadata: map[string]string{models.MetaSource: path},
	}}, nil
}

// extractParagraphs pulls the <w:t> runs out of each <w:p> paragraph,
// dropping paragraphs with no text.
func extractParagraphs(documentXML string) []string {
	var paragraphs []string
	for _, p := range wParagraph.FindAllString(documentXML, -1) {
		var text strings.Builder
		for _, m := range wText.FindAllStringSubmatch(p, -1) {
			text.WriteString(m[1])
		}
		if t := strings.TrimSpace(text.String()); t != "" {
			paragraphs = append(paragraphs, t)
		}
	}
	return paragraphs
}
