// Package pipeline answers a query in two ranking passes. Pass one scores
// whole documents against an idf table computed over the entire corpus. Pass
// two segments the chosen documents into sentences, computes a fresh idf
// table over only those sentences and ranks them, so a term that is common
// corpus-wide but rare inside the chosen passage still counts as distinctive.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-qa/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/internal/qa/importance"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/internal/qa/ranker"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/pkg/config"
	qaerrors "github.com/Adithya-Monish-Kumar-K/corpus-qa/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/pkg/tracing"
)

// Query outcomes, used as metric labels and analytics event types.
const (
	OutcomeAnswered   = "answered"
	OutcomeNoDocument = "no_document"
	OutcomeNoSentence = "no_sentence"
	OutcomeEmptyQuery = "empty_query"
	OutcomeError      = "error"
)

type Normalizer interface {
	Normalize(text string) []string
}

type Segmenter interface {
	Split(text string) []string
}

type Answer struct {
	Query     string                  `json:"query"`
	Terms     []string                `json:"terms"`
	Documents []ranker.ScoredDoc      `json:"documents"`
	Sentences []ranker.ScoredSentence `json:"sentences"`
	Outcome   string                  `json:"outcome"`
}

// Texts returns the selected sentence strings in rank order.
func (a *Answer) Texts() []string {
	out := make([]string, len(a.Sentences))
	for i, s := range a.Sentences {
		out[i] = s.Sentence
	}
	return out
}

type Pipeline struct {
	corpus  *corpus.Corpus
	norm    Normalizer
	seg     Segmenter
	cfg     config.RetrievalConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New returns a Pipeline over c. cfg match counts below one fall back to one.
// m may be nil.
func New(c *corpus.Corpus, n Normalizer, s Segmenter, cfg config.RetrievalConfig, m *metrics.Metrics) *Pipeline {
	if cfg.FileMatches < 1 {
		cfg.FileMatches = 1
	}
	if cfg.SentenceMatches < 1 {
		cfg.SentenceMatches = 1
	}
	if m != nil {
		m.CorpusDocuments.Set(float64(c.Len()))
	}
	return &Pipeline{
		corpus:  c,
		norm:    n,
		seg:     s,
		cfg:     cfg,
		metrics: m,
		logger:  logger.WithComponent("pipeline"),
	}
}

func (p *Pipeline) Config() config.RetrievalConfig { return p.cfg }

// ParseQuery normalises raw query text into a token set.
func (p *Pipeline) ParseQuery(raw string) ranker.Query {
	return ranker.NewQuery(p.norm.Normalize(raw))
}

// Answer normalises raw and runs both passes.
func (p *Pipeline) Answer(ctx context.Context, raw string) (*Answer, error) {
	ans, err := p.Run(ctx, p.ParseQuery(raw))
	if ans != nil {
		ans.Query = raw
	}
	return ans, err
}

// Run executes both passes for an already normalised query.
func (p *Pipeline) Run(ctx context.Context, query ranker.Query) (*Answer, error) {
	log := logger.FromContext(ctx).With("component", "pipeline")
	ctx, span := tracing.Start(ctx, "answer", logger.RequestID(ctx))
	defer func() {
		span.End()
		span.Log(ctx, log)
	}()
	ans := &Answer{
		Terms:     query.Terms(),
		Documents: []ranker.ScoredDoc{},
		Sentences: []ranker.ScoredSentence{},
	}
	if len(query) == 0 {
		ans.Outcome = OutcomeEmptyQuery
		p.countOutcome(ans.Outcome)
		return ans, nil
	}

	docs, err := p.rankDocuments(ctx, query)
	if err != nil {
		p.countOutcome(OutcomeError)
		return nil, err
	}
	ans.Documents = docs
	if len(docs) == 0 {
		ans.Outcome = OutcomeNoDocument
		p.countOutcome(ans.Outcome)
		log.Debug("no document matched", "terms", ans.Terms)
		return ans, nil
	}
	if err := ctx.Err(); err != nil {
		p.countOutcome(OutcomeError)
		return nil, fmt.Errorf("between passes: %w", err)
	}

	sentences, err := p.rankSentences(ctx, query, docs)
	if err != nil {
		p.countOutcome(OutcomeError)
		return nil, err
	}
	ans.Sentences = sentences
	ans.Outcome = OutcomeAnswered
	if len(sentences) == 0 {
		ans.Outcome = OutcomeNoSentence
	}
	p.countOutcome(ans.Outcome)
	span.Set("outcome", ans.Outcome)
	log.Debug("query answered",
		"terms", ans.Terms,
		"documents", len(docs),
		"sentences", len(sentences),
	)
	return ans, nil
}

func (p *Pipeline) rankDocuments(ctx context.Context, query ranker.Query) ([]ranker.ScoredDoc, error) {
	_, span := tracing.Start(ctx, "documents", "")
	defer span.End()
	start := time.Now()
	units := p.corpus.Tokens()
	idf, err := importance.Compute(units)
	if err != nil {
		return nil, fmt.Errorf("document pass: %w", err)
	}
	docs, err := ranker.RankDocuments(query, units, idf, p.cfg.FileMatches)
	if err != nil {
		return nil, fmt.Errorf("document pass: %w", err)
	}
	p.observe("documents", start, len(idf), len(docs))
	span.Set("idf_terms", len(idf), "selected", len(docs))
	return docs, nil
}

func (p *Pipeline) rankSentences(ctx context.Context, query ranker.Query, docs []ranker.ScoredDoc) ([]ranker.ScoredSentence, error) {
	_, span := tracing.Start(ctx, "sentences", "")
	defer span.End()
	start := time.Now()
	units := p.sentenceUnits(docs)
	if len(units) == 0 {
		p.observe("sentences", start, 0, 0)
		return []ranker.ScoredSentence{}, nil
	}
	idf, err := importance.Compute(units)
	if err != nil {
		return nil, fmt.Errorf("sentence pass: %w", err)
	}
	sentences, err := ranker.RankSentences(query, units, idf, p.cfg.SentenceMatches)
	if err != nil {
		return nil, fmt.Errorf("sentence pass: %w", err)
	}
	p.observe("sentences", start, len(idf), len(sentences))
	span.Set("units", len(units), "idf_terms", len(idf), "selected", len(sentences))
	return sentences, nil
}

// sentenceUnits segments the selected documents. Sentences that normalise to
// nothing are dropped; identical sentences collapse into one unit.
func (p *Pipeline) sentenceUnits(docs []ranker.ScoredDoc) importance.Units {
	units := make(importance.Units)
	for _, d := range docs {
		text, ok := p.corpus.Text(d.DocID)
		if !ok {
			p.logger.Error("ranked document missing from corpus", "doc_id", d.DocID, "error", qaerrors.ErrInternal)
			continue
		}
		for _, sentence := range p.seg.Split(text) {
			tokens := p.norm.Normalize(sentence)
			if len(tokens) == 0 {
				continue
			}
			units[sentence] = tokens
		}
	}
	return units
}

func (p *Pipeline) observe(stage string, start time.Time, terms, selected int) {
	if p.metrics == nil {
		return
	}
	p.metrics.StageLatency.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	p.metrics.IDFTableSize.WithLabelValues(stage).Observe(float64(terms))
	p.metrics.StageResults.WithLabelValues(stage).Observe(float64(selected))
}

func (p *Pipeline) countOutcome(outcome string) {
	if p.metrics == nil {
		return
	}
	p.metrics.QueriesTotal.WithLabelValues(outcome).Inc()
}
