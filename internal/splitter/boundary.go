package splitter

import (
	"regexp"
	"strings"

	"docpipe/internal/models"
)

// boundaryModel is a language-specific sentence segmenter. Models are looked
// up by name, mirroring how segmentation pipelines are selected per language.
type boundaryModel struct {
	name       string
	terminator *regexp.Regexp
}

var boundaryModels = map[string]*boundaryModel{
	"en": {
		name:       "en",
		terminator: regexp.MustCompile(`[.!?]+["')\]]?(\s+|$)`),
	},
	"zh": {
		name:       "zh",
		terminator: regexp.MustCompile("[。！？；…]+[”’）】]?"),
	},
}

func lookupBoundaryModel(name string) (*boundaryModel, error) {
	if name == "" {
		name = "en"
	}
	bm, ok := boundaryModels[strings.ToLower(name)]
	if !ok {
		return nil, &models.ConfigurationError{Field: "boundary_model", Reason: "unknown model " + name}
	}
	return bm, nil
}

// segment cuts text into sentences at the model's terminators. Text after the
// last terminator is kept as a final ragged sentence. Blank sentences are
// dropped.
func (bm *boundaryModel) segment(text string) []string {
	var sentences []string
	start := 0
	for _, loc := range bm.terminator.FindAllStringIndex(text, -1) {
		s := strings.TrimSpace(text[start:loc[1]])
		if s != "" {
			sentences = append(sentences, s)
		}
		start = loc[1]
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}
