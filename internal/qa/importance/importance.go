// Package importance computes inverse document frequency tables over any
// collection of tokenised units. The same calculator serves whole documents
// and the sentences extracted from them; every call builds a fresh table.
package importance

import (
	"fmt"
	"math"

	qaerrors "github.com/Adithya-Monish-Kumar-K/corpus-qa/pkg/errors"
)

// Units maps a unit identifier (document name or sentence text) to its
// ordered, normalised tokens.
type Units map[string][]string

// Table maps a token to ln(N/df) for the collection it was computed from.
type Table map[string]float64

// Compute builds the IDF table for units. Document frequency counts units
// containing a token at least once, not total occurrences. An empty
// collection has no defined ratio and is rejected.
func Compute(units Units) (Table, error) {
	total := len(units)
	if total == 0 {
		return nil, fmt.Errorf("computing idf: %w", qaerrors.ErrEmptyCollection)
	}
	docFreq := make(map[string]int)
	for _, tokens := range units {
		seen := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			docFreq[tok]++
		}
	}
	table := make(Table, len(docFreq))
	n := float64(total)
	for tok, df := range docFreq {
		table[tok] = math.Log(n / float64(df))
	}
	return table, nil
}

// Lookup returns the idf of token. Callers check presence in the unit first,
// so a miss means the table was built from a different collection.
func (t Table) Lookup(token string) (float64, error) {
	v, ok := t[token]
	if !ok {
		return 0, fmt.Errorf("looking up %q: %w", token, qaerrors.ErrMissingTerm)
	}
	return v, nil
}
