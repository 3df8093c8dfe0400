package ranker

import (
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/corpus-qa/internal/qa/importance"
	qaerrors "github.com/Adithya-Monish-Kumar-K/corpus-qa/pkg/errors"
)

// Query is a set of normalised tokens. Order and duplicates are irrelevant.
type Query map[string]struct{}

func NewQuery(tokens []string) Query {
	q := make(Query, len(tokens))
	for _, tok := range tokens {
		q[tok] = struct{}{}
	}
	return q
}

// Terms returns the query tokens in sorted order.
func (q Query) Terms() []string {
	terms := make([]string, 0, len(q))
	for tok := range q {
		terms = append(terms, tok)
	}
	sort.Strings(terms)
	return terms
}

type ScoredDoc struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

type ScoredSentence struct {
	Sentence string  `json:"sentence"`
	IDFSum   float64 `json:"idf_sum"`
	Density  float64 `json:"density"`
}

// RankDocuments scores each document by the sum over query tokens present in
// it of occurrence count times idf. Documents scoring zero are dropped.
// Results are ordered by score descending, then document id ascending, and
// truncated to k.
func RankDocuments(query Query, corpus importance.Units, idf importance.Table, k int) ([]ScoredDoc, error) {
	if k < 1 {
		return nil, fmt.Errorf("ranking documents with k=%d: %w", k, qaerrors.ErrInvalidInput)
	}
	// Sorted terms fix the summation order: equal term sets score bit-identically.
	terms := query.Terms()
	result := make([]ScoredDoc, 0, len(corpus))
	for docID, tokens := range corpus {
		counts := termCounts(tokens)
		var score float64
		for _, term := range terms {
			tf, ok := counts[term]
			if !ok {
				continue
			}
			w, err := idf.Lookup(term)
			if err != nil {
				return nil, fmt.Errorf("scoring document %s: %w", docID, err)
			}
			score += float64(tf) * w
		}
		if score == 0 {
			continue
		}
		result = append(result, ScoredDoc{DocID: docID, Score: score})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].DocID < result[j].DocID
	})
	if len(result) > k {
		result = result[:k]
	}
	return result, nil
}

// RankSentences scores each sentence by the idf of every query token it
// contains, counted once regardless of repetition. Sentences scoring zero are
// dropped, as are sentences without tokens. Ties on the idf sum fall to query
// term density, then to the sentence text.
func RankSentences(query Query, sentences importance.Units, idf importance.Table, k int) ([]ScoredSentence, error) {
	if k < 1 {
		return nil, fmt.Errorf("ranking sentences with k=%d: %w", k, qaerrors.ErrInvalidInput)
	}
	terms := query.Terms()
	result := make([]ScoredSentence, 0, len(sentences))
	for sentence, tokens := range sentences {
		if len(tokens) == 0 {
			continue
		}
		counts := termCounts(tokens)
		var idfSum float64
		matched := 0
		for _, term := range terms {
			tf, ok := counts[term]
			if !ok {
				continue
			}
			w, err := idf.Lookup(term)
			if err != nil {
				return nil, fmt.Errorf("scoring sentence %q: %w", sentence, err)
			}
			idfSum += w
			matched += tf
		}
		if idfSum == 0 {
			continue
		}
		result = append(result, ScoredSentence{
			Sentence: sentence,
			IDFSum:   idfSum,
			Density:  float64(matched) / float64(len(tokens)),
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].IDFSum != result[j].IDFSum {
			return result[i].IDFSum > result[j].IDFSum
		}
		if result[i].Density != result[j].Density {
			return result[i].Density > result[j].Density
		}
		return result[i].Sentence < result[j].Sentence
	})
	if len(result) > k {
		result = result[:k]
	}
	return result, nil
}

// TopDocuments is RankDocuments reduced to document ids.
func TopDocuments(query Query, corpus importance.Units, idf importance.Table, k int) ([]string, error) {
	scored, err := RankDocuments(query, corpus, idf, k)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(scored))
	for i, d := range scored {
		ids[i] = d.DocID
	}
	return ids, nil
}

// TopSentences is RankSentences reduced to sentence text.
func TopSentences(query Query, sentences importance.Units, idf importance.Table, k int) ([]string, error) {
	scored, err := RankSentences(query, sentences, idf, k)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(scored))
	for i, s := range scored {
		out[i] = s.Sentence
	}
	return out, nil
}

func termCounts(tokens []string) map[string]int {
	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		counts[tok]++
	}
	return counts
}
