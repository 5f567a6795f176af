package models

// Metadata keys set by loaders. Every RawDocument carries MetaSource; the
// locator keys are format dependent.
const (
	MetaSource  = "source"
	MetaPage    = "page"
	MetaRow     = "row"
	MetaSheet   = "sheet"
	MetaElement = "element"
)

// RawDocument is the normalized output of a loader: the extracted text of one
// source file or one structural element of it (a page, a row, a paragraph).
type RawDocument struct {
	Text     string
	Metadata map[string]string
}

// Chunk is a bounded, sentence-aligned slice of a RawDocument prepared for
// embedding. ID may be set by the caller before Add; otherwise the collection
// assigns one. SequenceIndex records chunk order within its source document.
type Chunk struct {
	ID            string
	Text          string
	Metadata      map[string]string
	SequenceIndex int
}

// CloneMetadata returns a copy of m so chunks never share a metadata map with
// their source document.
func CloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
