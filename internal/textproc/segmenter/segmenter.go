// Package segmenter splits document text into passages and sentences. Passages
// are the non-blank lines of a document; sentences come from a Punkt model
// trained on English text.
package segmenter

import (
	"fmt"
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

type Segmenter struct {
	tokenizer *sentences.DefaultSentenceTokenizer
}

// New loads the English Punkt parameters. Loading is not free, so build one
// Segmenter and share it; Sentences does not mutate it.
func New() (*Segmenter, error) {
	tok, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("loading english sentence model: %w", err)
	}
	return &Segmenter{tokenizer: tok}, nil
}

// Passages returns the non-blank lines of text, trimmed.
func Passages(text string) []string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

// Sentences splits one passage into sentences.
func (s *Segmenter) Sentences(passage string) []string {
	found := s.tokenizer.Tokenize(passage)
	out := make([]string, 0, len(found))
	for _, sent := range found {
		text := strings.TrimSpace(sent.Text)
		if text == "" {
			continue
		}
		out = append(out, text)
	}
	return out
}

// Split returns every sentence of text in order, passage by passage.
func (s *Segmenter) Split(text string) []string {
	var out []string
	for _, p := range Passages(text) {
		out = append(out, s.Sentences(p)...)
	}
	return out
}
