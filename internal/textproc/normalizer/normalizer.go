// Package normalizer turns raw text into the token sequences the ranking
// pipeline scores. It applies Unicode NFKC folding, lower-cases, splits on
// non-alphanumeric boundaries and removes English stop-words. There is no
// stemming: "running" and "run" are different tokens.
//
// The stop-word list is prepared by an explicit Setup call, never at import
// time. Setup is idempotent and must run before New.
package normalizer

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/unicode/norm"

	qaerrors "github.com/Adithya-Monish-Kumar-K/corpus-qa/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/pkg/logger"
)

var (
	setupOnce sync.Once
	setupErr  error
	stopWords map[string]struct{}
)

// Setup loads the stop-word list. An empty path selects the built-in English
// list. Only the first call does any work; later calls return its result.
func Setup(stopwordsFile string) error {
	setupOnce.Do(func() {
		words := englishStopWords
		if stopwordsFile != "" {
			loaded, err := readWordList(stopwordsFile)
			if err != nil {
				setupErr = fmt.Errorf("loading stopwords: %w", err)
				return
			}
			words = loaded
		}
		set := make(map[string]struct{}, len(words))
		for _, w := range words {
			set[w] = struct{}{}
		}
		stopWords = set
		logger.WithComponent("normalizer").Debug("stopwords ready",
			"count", len(set),
			"file", stopwordsFile,
		)
	})
	return setupErr
}

func readWordList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var words []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// Entries are split like text so "can't" stops "can" and "t".
		words = append(words, splitWords(strings.ToLower(norm.NFKC.String(line)))...)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return words, nil
}

// Normalizer is safe for concurrent use.
type Normalizer struct {
	stopWords map[string]struct{}
}

func New() (*Normalizer, error) {
	if stopWords == nil {
		return nil, fmt.Errorf("normalizer: call Setup first: %w", qaerrors.ErrNotInitialised)
	}
	return &Normalizer{stopWords: stopWords}, nil
}

// Normalize returns the ordered tokens of text. The same text always yields
// the same tokens.
func (n *Normalizer) Normalize(text string) []string {
	words := splitWords(strings.ToLower(norm.NFKC.String(text)))
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		if _, isStop := n.stopWords[word]; isStop {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// IsStopWord reports whether word is filtered by Normalize.
func (n *Normalizer) IsStopWord(word string) bool {
	_, ok := n.stopWords[strings.ToLower(word)]
	return ok
}
