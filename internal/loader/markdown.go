package loader

import (
	"os"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	gmtext "github.com/yuin/goldmark/text"

	"docpipe/internal/models"
)

// MarkdownOptions configures the .md/.markdown loader.
type MarkdownOptions struct {
	Mode string // "single" (default) or "elements" (per top-level block)
}

// MarkdownLoader parses the file with goldmark. Single mode keeps the whole
// file as one RawDocument; elements mode emits one RawDocument per top-level
// block (heading, paragraph, list, code fence) with its kind in metadata.
type MarkdownLoader struct {
	Mode string
}

func (l *MarkdownLoader) Load(path string) ([]models.RawDocument, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if l.Mode != ModeElements {
		return []models.RawDocument{{
			Text:     string(source),
			Metadata: map[string]string{models.MetaSource: path},
		}}, nil
	}

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	root := md.Parser().Parse(gmtext.NewReader(source))

	var docs []models.RawDocument
	index := 0
	for node := root.FirstChild(); node != nil; node = node.NextSibling() {
		text := strings.TrimSpace(blockText(node, source))
		if text == "" {
			continue
		}
		index++
		docs = append(docs, models.RawDocument{
			Text: text,
			Metadata: map[string]string{
				models.MetaSource:  path,
				models.MetaElement: strconv.Itoa(index),
				"category":         node.Kind().String(),
			},
		})
	}
	return docs, nil
}

// blockText collects the source lines of a block node and all its block
// descendants (lists and quotes keep their text on leaf children).
func blockText(node ast.Node, source []byte) string {
	var text strings.Builder
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Type() != ast.TypeBlock {
			return ast.WalkContinue, nil
		}
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			text.Write(seg.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return text.String()
}
