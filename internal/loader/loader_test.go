package loader

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"docpipe/internal/models"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile_unsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.xyz", "whatever")
	router := NewRouter(Options{})
	_, err := router.LoadFile(path)
	var unsupported *models.UnsupportedFormatError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedFormatError, got %v", err)
	}
	if unsupported.Ext != ".xyz" {
		t.Errorf("unexpected extension in error: %q", unsupported.Ext)
	}
}

func TestLoadDir_partialFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "Plain text content.")
	writeFile(t, dir, "b.csv", "name,age\nalice,30\nbob,31\n")
	writeFile(t, dir, "c.xyz", "unsupported")
	writeFile(t, dir, "broken.json", "{not json")

	router := NewRouter(Options{})
	docs, failures, err := router.LoadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	// a.txt yields 1 document, b.csv yields 2 (one per row).
	if len(docs) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(docs))
	}
	// The unsupported extension is skipped silently; only the broken JSON
	// counts as a failure.
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure, got %d: %v", len(failures), failures)
	}
	if filepath.Base(failures[0].Path) != "broken.json" {
		t.Errorf("unexpected failed file: %s", failures[0].Path)
	}
}

func TestTextLoader_decodesCharset(t *testing.T) {
	dir := t.TempDir()
	// "café" in latin1: é is a single 0xE9 byte.
	path := filepath.Join(dir, "latin.txt")
	if err := os.WriteFile(path, []byte{'c', 'a', 'f', 0xE9}, 0o600); err != nil {
		t.Fatal(err)
	}
	l := &TextLoader{Encoding: "latin1"}
	docs, err := l.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Text != "café" {
		t.Errorf("expected decoded text %q, got %q", "café", docs[0].Text)
	}
	if docs[0].Metadata[models.MetaSource] != path {
		t.Errorf("source metadata missing: %v", docs[0].Metadata)
	}
}

func TestTextLoader_unknownCharset(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "hi")
	l := &TextLoader{Encoding: "no-such-charset"}
	var cfgErr *models.ConfigurationError
	if _, err := l.Load(path); !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestCSVLoader_rowPerDocument(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "people.csv", "name,city\nalice,berlin\nbob,paris\n")
	l := &CSVLoader{}
	docs, err := l.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].Text != "name: alice\ncity: berlin" {
		t.Errorf("unexpected row text: %q", docs[0].Text)
	}
	if docs[1].Metadata[models.MetaRow] != "2" || docs[1].Metadata["city"] != "paris" {
		t.Errorf("unexpected row metadata: %v", docs[1].Metadata)
	}
}

func TestCSVLoader_sourceColumn(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "docs.csv", "url,text\nhttp://a,hello\n")
	l := &CSVLoader{SourceColumn: "url"}
	docs, err := l.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if docs[0].Metadata[models.MetaSource] != "http://a" {
		t.Errorf("source column not applied: %v", docs[0].Metadata)
	}
}

func TestJSONLoader_arrayElements(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "data.json", `[{"content":"first","tag":"a"},{"content":"second","tag":"b"}]`)
	l := &JSONLoader{ContentKey: "content", MetadataKeys: []string{"tag"}}
	docs, err := l.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].Text != "first" || docs[1].Text != "second" {
		t.Errorf("unexpected texts: %q %q", docs[0].Text, docs[1].Text)
	}
	if docs[1].Metadata["tag"] != "b" || docs[1].Metadata["seq_num"] != "2" {
		t.Errorf("unexpected metadata: %v", docs[1].Metadata)
	}
}

func TestJSONLoader_nestedContentQuery(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "data.json", `[{"body":{"text":"nested value"}}]`)
	l := &JSONLoader{ContentKey: ".body.text", ContentKeyIsQuery: true}
	docs, err := l.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Text != "nested value" {
		t.Errorf("unexpected documents: %v", docs)
	}
}

func TestJSONLoader_jsonLines(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "data.jsonl", "{\"content\":\"one\"}\n{\"content\":\"two\"}\n")
	l := &JSONLoader{Query: ".", ContentKey: "content", JSONLines: true}
	docs, err := l.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 || docs[0].Text != "one" || docs[1].Text != "two" {
		t.Errorf("unexpected documents: %v", docs)
	}
}

func TestJSONLoader_jsonLinesDefaultQuery(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "data.jsonl", "{\"content\":\"one\",\"extra\":\"x\"}\n{\"content\":\"two\",\"extra\":\"y\"}\n")
	l := &JSONLoader{ContentKey: "content", JSONLines: true}
	docs, err := l.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	// One document per line, not one per field value.
	if len(docs) != 2 || docs[0].Text != "one" || docs[1].Text != "two" {
		t.Errorf("unexpected documents: %v", docs)
	}
}

func TestJSONLoader_invalidQuery(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "data.json", `[]`)
	l := &JSONLoader{Query: ".[("}
	var cfgErr *models.ConfigurationError
	if _, err := l.Load(path); !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestMarkdownLoader_elements(t *testing.T) {
	dir := t.TempDir()
	content := "# Title\n\nFirst paragraph here.\n\n- item one\n- item two\n"
	path := writeFile(t, dir, "doc.md", content)
	l := &MarkdownLoader{Mode: ModeElements}
	docs, err := l.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 elements, got %d: %v", len(docs), docs)
	}
	if docs[0].Text != "Title" {
		t.Errorf("unexpected heading text: %q", docs[0].Text)
	}
	if docs[1].Text != "First paragraph here." {
		t.Errorf("unexpected paragraph text: %q", docs[1].Text)
	}
	if docs[2].Metadata[models.MetaElement] != "3" {
		t.Errorf("unexpected element metadata: %v", docs[2].Metadata)
	}
}

func TestMarkdownLoader_single(t *testing.T) {
	dir := t.TempDir()
	content := "# Title\n\nBody.\n"
	path := writeFile(t, dir, "doc.md", content)
	l := &MarkdownLoader{}
	docs, err := l.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Text != content {
		t.Errorf("unexpected documents: %v", docs)
	}
}

func TestPDFLoader_imagesRequireCaptioner(t *testing.T) {
	l := &PDFLoader{ExtractImages: true}
	var cfgErr *models.ConfigurationError
	if _, err := l.Load("missing.pdf"); !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestPDFLoader_captionFormats(t *testing.T) {
	cases := []struct {
		format string
		want   string
	}{
		{ImageFormatText, "a red square"},
		{ImageFormatMarkdown, "![a red square](#)"},
		{ImageFormatHTML, `<img alt="a red square" />`},
	}
	for _, tc := range cases {
		l := &PDFLoader{ImageFormat: tc.format}
		if got := l.formatCaption("a red square"); got != tc.want {
			t.Errorf("format %q: got %q, want %q", tc.format, got, tc.want)
		}
	}
}

func TestExtractParagraphs(t *testing.T) {
	xml := `<w:p><w:r><w:t>Hello </w:t></w:r><w:r><w:t xml:space="preserve">world</w:t></w:r></w:p>` +
		`<w:p></w:p>` +
		`<w:p><w:r><w:t>Second</w:t></w:r></w:p>`
	got := extractParagraphs(xml)
	if len(got) != 2 || got[0] != "Hello world" || got[1] != "Second" {
		t.Errorf("unexpected paragraphs: %q", got)
	}
}

func TestNewExtractionClient_missingKey(t *testing.T) {
	var cfgErr *models.ConfigurationError
	if _, err := NewExtractionClient("http://localhost", ""); !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

type stubFallback struct {
	calls []string
}

func (s *stubFallback) Load(path string) ([]models.RawDocument, error) {
	s.calls = append(s.calls, path)
	return []models.RawDocument{{
		Text:     "extracted text",
		Metadata: map[string]string{models.MetaSource: path},
	}}, nil
}

func TestLoadFile_unknownExtensionUsesFallback(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "scan.tiff", "binary")
	fallback := &stubFallback{}
	router := NewRouter(Options{Fallback: fallback})
	docs, err := router.LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Text != "extracted text" {
		t.Errorf("unexpected documents: %v", docs)
	}
	if len(fallback.calls) != 1 || fallback.calls[0] != path {
		t.Errorf("fallback not invoked for %s: %v", path, fallback.calls)
	}
}

func TestLoadDir_unknownExtensionUsesFallback(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "Plain text content.")
	writeFile(t, dir, "scan.tiff", "binary")
	router := NewRouter(Options{Fallback: &stubFallback{}})
	docs, failures, err := router.LoadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	if len(docs) != 2 {
		t.Errorf("expected the fallback to cover the unknown extension, got %d documents", len(docs))
	}
}

func TestExtractionClient_Load(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("unstructured-api-key") != "key123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if len(r.MultipartForm.File["files"]) != 1 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `[{"text":"first element","metadata":{"page_number":1}}]`)
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := writeFile(t, dir, "scan.tiff", "binary")
	c, err := NewExtractionClient(srv.URL, "key123")
	if err != nil {
		t.Fatal(err)
	}
	docs, err := c.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Text != "first element" {
		t.Fatalf("unexpected documents: %v", docs)
	}
	if docs[0].Metadata[models.MetaSource] != path || docs[0].Metadata["page_number"] != "1" {
		t.Errorf("unexpected metadata: %v", docs[0].Metadata)
	}
}

func TestExtractionClient_serverError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := writeFile(t, dir, "scan.tiff", "binary")
	c, err := NewExtractionClient(srv.URL, "wrong")
	if err != nil {
		t.Fatal(err)
	}
	var svcErr *models.ExternalServiceError
	if _, err := c.Load(path); !errors.As(err, &svcErr) {
		t.Fatalf("expected ExternalServiceError, got %v", err)
	}
}
