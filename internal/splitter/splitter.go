package splitter

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"docpipe/internal/models"
)

const (
	defaultChunkSize      = 4000
	defaultChunkOverlap   = 200
	defaultMaxInputLength = 1_000_000
)

// Options configures a Splitter. Zero values fall back to the defaults above.
// Sizes and the overlap are measured in characters (runes).
type Options struct {
	ChunkSize       int
	ChunkOverlap    int
	MaxInputLength  int
	BoundaryModel   string
	StripWhitespace *bool // nil means true
}

// Splitter splits document text into bounded, overlapping chunks along
// sentence boundaries detected by the configured boundary model.
//
// Structured formats (e.g. JSON) must not be routed through here; the
// boundary models only make sense for natural language text.
type Splitter struct {
	chunkSize       int
	chunkOverlap    int
	maxInputLength  int
	boundary        *boundaryModel
	stripWhitespace bool
}

func New(opts Options) (*Splitter, error) {
	if opts.ChunkSize == 0 {
		opts.ChunkSize = defaultChunkSize
	}
	if opts.ChunkSize < 0 {
		return nil, &models.ConfigurationError{Field: "chunk_size", Reason: "must be positive"}
	}
	if opts.ChunkOverlap < 0 {
		return nil, &models.ConfigurationError{Field: "chunk_overlap", Reason: "must not be negative"}
	}
	if opts.ChunkOverlap >= opts.ChunkSize {
		return nil, &models.ConfigurationError{Field: "chunk_overlap", Reason: "must be smaller than chunk_size"}
	}
	if opts.ChunkOverlap == 0 {
		opts.ChunkOverlap = defaultChunkOverlap
		// The stock overlap can exceed a small chunk size.
		if opts.ChunkOverlap >= opts.ChunkSize {
			opts.ChunkOverlap = opts.ChunkSize / 2
		}
	}
	if opts.MaxInputLength == 0 {
		opts.MaxInputLength = defaultMaxInputLength
	}
	bm, err := lookupBoundaryModel(opts.BoundaryModel)
	if err != nil {
		return nil, err
	}
	strip := true
	if opts.StripWhitespace != nil {
		strip = *opts.StripWhitespace
	}
	return &Splitter{
		chunkSize:       opts.ChunkSize,
		chunkOverlap:    opts.ChunkOverlap,
		maxInputLength:  opts.MaxInputLength,
		boundary:        bm,
		stripWhitespace: strip,
	}, nil
}

// SplitText splits raw text into chunk strings.
func (s *Splitter) SplitText(text string) ([]string, error) {
	if n := utf8.RuneCountInString(text); n > s.maxInputLength {
		return nil, fmt.Errorf("input length %d exceeds maximum %d, pre-split the input", n, s.maxInputLength)
	}
	sentences := s.boundary.segment(text)
	if len(sentences) == 0 {
		return nil, nil
	}
	return s.assemble(sentences), nil
}

// SplitDocument splits one RawDocument into chunks. Metadata is copied
// verbatim onto every chunk; SequenceIndex records chunk order within the
// document.
func (s *Splitter) SplitDocument(doc models.RawDocument) ([]models.Chunk, error) {
	texts, err := s.SplitText(doc.Text)
	if err != nil {
		return nil, err
	}
	chunks := make([]models.Chunk, 0, len(texts))
	for i, t := range texts {
		chunks = append(chunks, models.Chunk{
			Text:          t,
			Metadata:      models.CloneMetadata(doc.Metadata),
			SequenceIndex: i,
		})
	}
	return chunks, nil
}

// SplitDocuments splits documents in order. Output ordering is stable:
// document order first, then chunk order within each document.
func (s *Splitter) SplitDocuments(docs []models.RawDocument) ([]models.Chunk, error) {
	var chunks []models.Chunk
	for _, doc := range docs {
		cs, err := s.SplitDocument(doc)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, cs...)
	}
	return chunks, nil
}

// assemble greedily packs sentences into chunks of at most chunkSize runes.
// Closing a chunk carries the trailing whole sentences totalling at most
// chunkOverlap runes into the next chunk; carried sentences are dropped from
// the front when keeping them would overflow the next chunk. A single sentence
// longer than chunkSize is emitted as its own oversized chunk rather than cut
// mid-sentence.
func (s *Splitter) assemble(sentences []string) []string {
	var out []string
	var current []string
	currentLen := 0
	// hasNew guards against emitting a chunk made only of carried overlap,
	// which would duplicate the previous chunk's tail.
	hasNew := false

	flush := func() {
		if len(current) == 0 || !hasNew {
			return
		}
		text := strings.Join(current, " ")
		if s.stripWhitespace {
			text = strings.TrimSpace(text)
		}
		if text != "" {
			out = append(out, text)
		}
		// Carry trailing sentences into the next chunk for overlap.
		var carry []string
		carryLen := 0
		for i := len(current) - 1; i >= 0; i-- {
			l := utf8.RuneCountInString(current[i])
			if carryLen+l > s.chunkOverlap {
				break
			}
			carry = append([]string{current[i]}, carry...)
			carryLen += l + 1
		}
		current = carry
		currentLen = carryLen
		hasNew = false
	}

	for _, sent := range sentences {
		l := utf8.RuneCountInString(sent)
		if l > s.chunkSize {
			// Oversized sentence: close whatever is pending, then emit it
			// whole. The overlap carry does not apply around it.
			if len(current) > 0 {
				flush()
				current = nil
				currentLen = 0
				hasNew = false
			}
			text := sent
			if s.stripWhitespace {
				text = strings.TrimSpace(text)
			}
			out = append(out, text)
			continue
		}
		if currentLen+l > s.chunkSize && len(current) > 0 {
			flush()
			// The remaining sentences are overlap carry only; drop from the
			// front until the next sentence fits within the budget.
			for currentLen+l > s.chunkSize && len(current) > 0 {
				currentLen -= utf8.RuneCountInString(current[0]) + 1
				current = current[1:]
			}
		}
		current = append(current, sent)
		currentLen += l + 1
		hasNew = true
	}
	if len(current) > 0 && hasNew {
		tail := strings.Join(current, " ")
		if s.stripWhitespace {
			tail = strings.TrimSpace(tail)
		}
		if tail != "" {
			out = append(out, tail)
		}
	}
	return out
}
