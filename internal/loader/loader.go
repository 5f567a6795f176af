package loader

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"docpipe/internal/models"
)

// Loader turns one source file into normalized RawDocuments.
type Loader interface {
	Load(path string) ([]models.RawDocument, error)
}

// FileFailure records one file a batch load skipped and why.
type FileFailure struct {
	Path string
	Err  error
}

// Options configures the per-format loaders behind a Router.
type Options struct {
	Text     TextOptions
	CSV      CSVOptions
	JSON     JSONOptions
	PDF      PDFOptions
	Word     WordOptions
	Excel    ExcelOptions
	Markdown MarkdownOptions
	// Fallback handles files whose extension has no registered loader,
	// typically an ExtractionClient. Nil means unsupported extensions fail.
	Fallback Loader
}

// Router dispatches a file to the loader registered for its extension.
type Router struct {
	loaders  map[string]Loader
	fallback Loader
}

// NewRouter builds the extension dispatch table. Adding a format means
// registering another Loader here, not growing a switch.
func NewRouter(opts Options) *Router {
	text := &TextLoader{Encoding: opts.Text.Encoding}
	csv := &CSVLoader{SourceColumn: opts.CSV.SourceColumn}
	jsonl := &JSONLoader{
		Query:             opts.JSON.Query,
		ContentKey:        opts.JSON.ContentKey,
		ContentKeyIsQuery: opts.JSON.ContentKeyIsQuery,
		MetadataKeys:      opts.JSON.MetadataKeys,
	}
	ndjson := &JSONLoader{
		Query:             opts.JSON.Query,
		ContentKey:        opts.JSON.ContentKey,
		ContentKeyIsQuery: opts.JSON.ContentKeyIsQuery,
		MetadataKeys:      opts.JSON.MetadataKeys,
		JSONLines:         true,
	}
	pdf := &PDFLoader{
		Mode:           opts.PDF.Mode,
		PagesDelimiter: opts.PDF.PagesDelimiter,
		Password:       opts.PDF.Password,
		ExtractImages:  opts.PDF.ExtractImages,
		Captioner:      opts.PDF.Captioner,
		ImageFormat:    opts.PDF.ImageFormat,
	}
	word := &WordLoader{Mode: opts.Word.Mode}
	excel := &ExcelLoader{Mode: opts.Excel.Mode}
	md := &MarkdownLoader{Mode: opts.Markdown.Mode}

	return &Router{fallback: opts.Fallback, loaders: map[string]Loader{
		".txt":      text,
		".csv":      csv,
		".json":     jsonl,
		".jsonl":    ndjson,
		".pdf":      pdf,
		".docx":     word,
		".xlsx":     excel,
		".xls":      excel,
		".ods":      excel,
		".md":       md,
		".markdown": md,
	}}
}

// LoadFile loads a single file. An extension with no registered loader is
// delegated to the fallback when one is configured and fails with
// UnsupportedFormatError otherwise.
func (r *Router) LoadFile(path string) ([]models.RawDocument, error) {
	ext := strings.ToLower(filepath.Ext(path))
	l, ok := r.loaders[ext]
	if !ok {
		if r.fallback != nil {
			return r.fallback.Load(path)
		}
		return nil, &models.UnsupportedFormatError{Path: path, Ext: ext}
	}
	return l.Load(path)
}

// LoadDir loads every matching file directly under dir (non-recursive). One
// file's failure never aborts the batch: unsupported extensions are skipped
// with a warning and loader errors are collected into the returned failures.
func (r *Router) LoadDir(dir string) ([]models.RawDocument, []FileFailure, error) {
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
		loaded, err := r.LoadFile(path)
		if err != nil {
			if _, unsupported := err.(*models.UnsupportedFormatError); unsupported {
				log.Warn().Str("file", path).Msg("Skipping file with unsupported extension")
				continue
			}
			log.Warn().Err(err).Str("file", path).Msg("Skipping file that failed to load")
			failures = append(failures, FileFailure{Path: path, Err: err})
			continue
		}
		docs = append(docs, loaded...)
	}
	return docs, failures, nil
}
