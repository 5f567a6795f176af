package splitter

import (
	"errors"
	"strings"
	"testing"

	"docpipe/internal/models"
)

func mustNew(t *testing.T, opts Options) *Splitter {
	t.Helper()
	s, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSplitText_shortInputIsSingleChunk(t *testing.T) {
	s := mustNew(t, Options{ChunkSize: 100, ChunkOverlap: 10})
	text := "A single short sentence. And another one."
	chunks, err := s.SplitText(text)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d: %q", len(chunks), chunks)
	}
	if chunks[0] != text {
		t.Errorf("chunk should equal the input text, got %q", chunks[0])
	}
}

func TestSplitText_whitespaceStripped(t *testing.T) {
	s := mustNew(t, Options{ChunkSize: 100, ChunkOverlap: 10})
	chunks, err := s.SplitText("  Padded sentence.  ")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 || chunks[0] != "Padded sentence." {
		t.Errorf("expected stripped single chunk, got %q", chunks)
	}
}

func TestSplitText_respectsChunkSize(t *testing.T) {
	s := mustNew(t, Options{ChunkSize: 40, ChunkOverlap: 10})
	text := strings.Repeat("This is a sentence. ", 10)
	chunks, err := s.SplitText(text)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 40 {
			t.Errorf("chunk %d exceeds size budget: %d chars", i, len(c))
		}
	}
}

func TestSplitText_adjacentChunksOverlap(t *testing.T) {
	s := mustNew(t, Options{ChunkSize: 12, ChunkOverlap: 6})
	chunks, err := s.SplitText("A b. C d. E f. G h.")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %q", chunks)
	}
	for i := 0; i < len(chunks)-1; i++ {
		// The next chunk re-includes the trailing sentence of this one.
		words := strings.Split(chunks[i], " ")
		tail := strings.Join(words[len(words)-2:], " ")
		if !strings.HasPrefix(chunks[i+1], tail) {
			t.Errorf("chunk %d %q does not start with trailing text of chunk %d %q", i+1, chunks[i+1], i, chunks[i])
		}
	}
}

func TestSplitText_overlapCarryKeepsBudget(t *testing.T) {
	s := mustNew(t, Options{ChunkSize: 100, ChunkOverlap: 40})
	// No sentence is oversized, yet the carried overlap plus the third
	// sentence would exceed the budget unless the carry is shed.
	sentences := []string{
		strings.Repeat("a", 58) + ".",
		strings.Repeat("b", 38) + ".",
		strings.Repeat("c", 78) + ".",
	}
	chunks, err := s.SplitText(strings.Join(sentences, " "))
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %q", chunks)
	}
	for i, c := range chunks {
		if len(c) > 100 {
			t.Errorf("chunk %d has %d chars, budget is 100: %q", i, len(c), c)
		}
	}
}

func TestSplitText_oversizedSentenceKeptWhole(t *testing.T) {
	s := mustNew(t, Options{ChunkSize: 20, ChunkOverlap: 5})
	long := "This single sentence is much longer than the chunk size budget allows."
	chunks, err := s.SplitText("Short one. " + long + " Tail.")
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, c := range chunks {
		if c == long {
			found = true
		}
		if strings.Contains(c, "longer than") && c != long {
			t.Errorf("oversized sentence was cut: %q", c)
		}
	}
	if !found {
		t.Errorf("oversized sentence missing from chunks %q", chunks)
	}
}

func TestSplitText_refusesOverlongInput(t *testing.T) {
	s := mustNew(t, Options{ChunkSize: 100, ChunkOverlap: 10, MaxInputLength: 50})
	if _, err := s.SplitText(strings.Repeat("w", 51)); err == nil {
		t.Fatal("expected error for input beyond the maximum length")
	}
}

func TestSplitDocument_metadataAndSequence(t *testing.T) {
	s := mustNew(t, Options{ChunkSize: 25, ChunkOverlap: 5})
	doc := models.RawDocument{
		Text:     "First sentence here. Second sentence here. Third sentence here.",
		Metadata: map[string]string{models.MetaSource: "a.txt", models.MetaPage: "3"},
	}
	chunks, err := s.SplitDocument(doc)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.SequenceIndex != i {
			t.Errorf("chunk %d has sequence index %d", i, c.SequenceIndex)
		}
		if c.Metadata[models.MetaSource] != "a.txt" || c.Metadata[models.MetaPage] != "3" {
			t.Errorf("chunk %d metadata not inherited: %v", i, c.Metadata)
		}
	}
	chunks[0].Metadata["mutated"] = "yes"
	if _, ok := doc.Metadata["mutated"]; ok {
		t.Error("chunk metadata must not alias the document metadata")
	}
}

func TestSplitDocuments_stableOrdering(t *testing.T) {
	s := mustNew(t, Options{ChunkSize: 100, ChunkOverlap: 10})
	docs := []models.RawDocument{
		{Text: "Doc one.", Metadata: map[string]string{models.MetaSource: "1"}},
		{Text: "Doc two.", Metadata: map[string]string{models.MetaSource: "2"}},
	}
	chunks, err := s.SplitDocuments(docs)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Metadata[models.MetaSource] != "1" || chunks[1].Metadata[models.MetaSource] != "2" {
		t.Errorf("chunk order does not follow document order: %v", chunks)
	}
}

func TestNew_overlapNotBelowSize(t *testing.T) {
	var cfgErr *models.ConfigurationError
	if _, err := New(Options{ChunkSize: 100, ChunkOverlap: 100}); !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError for overlap == size, got %v", err)
	}
	if _, err := New(Options{ChunkSize: 100, ChunkOverlap: 150}); !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError for overlap > size, got %v", err)
	}
}

func TestNew_unknownBoundaryModel(t *testing.T) {
	if _, err := New(Options{BoundaryModel: "klingon"}); err == nil {
		t.Fatal("expected error for unknown boundary model")
	}
}

func TestBoundaryModel_chineseTerminators(t *testing.T) {
	bm, err := lookupBoundaryModel("zh")
	if err != nil {
		t.Fatal(err)
	}
	sentences := bm.segment("你好。今天天气不错！走吧？")
	if len(sentences) != 3 {
		t.Fatalf("expected 3 sentences, got %d: %q", len(sentences), sentences)
	}
}

func TestSplitText_emptyInput(t *testing.T) {
	s := mustNew(t, Options{})
	chunks, err := s.SplitText("   ")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks for blank input, got %q", chunks)
	}
}
