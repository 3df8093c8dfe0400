// Package corpus loads raw documents from a Source and holds them, together
// with their normalised tokens, as an immutable snapshot for the retrieval
// pipeline.
package corpus

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/corpus-qa/internal/qa/importance"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/pkg/logger"
)

// Normalizer maps text to ordered tokens.
type Normalizer interface {
	Normalize(text string) []string
}

// Corpus must not be modified after Build returns.
type Corpus struct {
	texts       map[string]string
	tokens      importance.Units
	fingerprint string
}

// Build loads every document from src and normalises it once.
func Build(ctx context.Context, src Source, n Normalizer) (*Corpus, error) {
	texts, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	return FromTexts(texts, n), nil
}

// FromTexts builds a Corpus from already loaded documents. The map is copied.
func FromTexts(texts map[string]string, n Normalizer) *Corpus {
	c := &Corpus{
		texts:  make(map[string]string, len(texts)),
		tokens: make(importance.Units, len(texts)),
	}
	h := sha256.New()
	for _, id := range sortedKeys(texts) {
		text := texts[id]
		c.texts[id] = text
		c.tokens[id] = n.Normalize(text)
		fmt.Fprintf(h, "%d:%s%d:%s", len(id), id, len(text), text)
	}
	c.fingerprint = hex.EncodeToString(h.Sum(nil))[:16]
	logger.WithComponent("corpus").Info("corpus ready",
		"documents", len(c.texts),
		"fingerprint", c.fingerprint,
	)
	return c
}

func (c *Corpus) Len() int { return len(c.texts) }

// Tokens returns the per-document token sequences. Callers must not mutate it.
func (c *Corpus) Tokens() importance.Units { return c.tokens }

func (c *Corpus) Text(id string) (string, bool) {
	t, ok := c.texts[id]
	return t, ok
}

// IDs returns document ids in sorted order.
func (c *Corpus) IDs() []string { return sortedKeys(c.texts) }

// Fingerprint identifies the exact content of the corpus.
func (c *Corpus) Fingerprint() string { return c.fingerprint }

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
