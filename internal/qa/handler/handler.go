package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-qa/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/internal/qa/cache"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/internal/qa/pipeline"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/internal/qa/ranker"
	qaerrors "github.com/Adithya-Monish-Kumar-K/corpus-qa/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/pkg/logger"
)

// Answerer is satisfied by *pipeline.Pipeline.
type Answerer interface {
	ParseQuery(raw string) ranker.Query
	Run(ctx context.Context, query ranker.Query) (*pipeline.Answer, error)
}

// CacheHeader reports HIT or MISS on answers served with the cache enabled.
const CacheHeader = "X-Cache"

type Handler struct {
	answerer  Answerer
	cache     *cache.AnswerCache
	collector *analytics.Collector
	logger    *slog.Logger
}

// New wires the answer endpoint. queryCache and collector may be nil.
func New(a Answerer, queryCache *cache.AnswerCache, collector *analytics.Collector) *Handler {
	return &Handler{
		answerer:  a,
		cache:     queryCache,
		collector: collector,
		logger:    slog.Default().With("component", "answer-handler"),
	}
}

func (h *Handler) Answer(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	raw := r.URL.Query().Get("q")
	if raw == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	query := h.answerer.ParseQuery(raw)
	terms := query.Terms()

	var ans *pipeline.Answer
	var err error
	cacheHit := false
	compute := func() (*pipeline.Answer, error) {
		return h.answerer.Run(ctx, query)
	}
	if h.cache != nil && len(terms) > 0 {
		ans, cacheHit, err = h.cache.GetOrCompute(ctx, terms, compute)
	} else {
		ans, err = compute()
	}
	if err != nil {
		log.Error("answer failed", "query", raw, "error", err)
		h.writeError(w, qaerrors.HTTPStatusCode(err), "answer failed")
		return
	}
	// Cached and shared answers may come from a differently worded query.
	resp := *ans
	resp.Query = raw
	ans = &resp

	latencyMs := time.Since(start).Milliseconds()
	log.Info("query answered",
		"query", raw,
		"terms", terms,
		"outcome", ans.Outcome,
		"sentences", len(ans.Sentences),
		"cache_hit", cacheHit,
		"latency_ms", latencyMs,
	)
	if h.collector != nil {
		docs := make([]string, len(ans.Documents))
		for i, d := range ans.Documents {
			docs[i] = d.DocID
		}
		h.collector.Track(analytics.QueryEvent{
			Outcome:   ans.Outcome,
			Query:     raw,
			Terms:     terms,
			Documents: docs,
			Sentences: len(ans.Sentences),
			LatencyMs: latencyMs,
			CacheHit:  cacheHit,
			Timestamp: time.Now().UTC(),
			RequestID: logger.RequestID(ctx),
		})
	}

	if h.cache != nil {
		w.Header().Set(CacheHeader, cacheStatus(cacheHit))
	}
	h.writeJSON(w, http.StatusOK, ans)
}

func cacheStatus(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
		"breaker":  h.cache.BreakerState().String(),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
