package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-qa/pkg/kafka"
)

type AggregatedStats struct {
	TotalQueries      int64            `json:"total_queries"`
	CacheHits         int64            `json:"cache_hits"`
	CacheMisses       int64            `json:"cache_misses"`
	UnansweredCount   int64            `json:"unanswered_count"`
	Outcomes          map[string]int64 `json:"outcomes"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      int64            `json:"p50_latency_ms"`
	P95LatencyMs      int64            `json:"p95_latency_ms"`
	P99LatencyMs      int64            `json:"p99_latency_ms"`
	TopQueries        []Count          `json:"top_queries"`
	UnansweredQueries []Count          `json:"unanswered_queries"`
	TopDocuments      []Count          `json:"top_documents"`
	QueriesPerMinute  float64          `json:"queries_per_minute"`
}

type Count struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// maxLatencies bounds memory; older samples are discarded first.
const maxLatencies = 10000

type Aggregator struct {
	mu          sync.RWMutex
	total       int64
	cacheHits   int64
	unanswered  int64
	outcomes    map[string]int64
	latencies   []int64
	queryCounts map[string]int64
	missCounts  map[string]int64
	docCounts   map[string]int64
	startTime   time.Time
	logger      *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		outcomes:    make(map[string]int64),
		latencies:   make([]int64, 0, 1024),
		queryCounts: make(map[string]int64),
		missCounts:  make(map[string]int64),
		docCounts:   make(map[string]int64),
		startTime:   time.Now(),
		logger:      slog.Default().With("component", "analytics-aggregator"),
	}
}

// Run consumes query events from c until ctx is cancelled.
func (a *Aggregator) Run(ctx context.Context, c *kafka.Consumer) error {
	a.logger.Info("analytics aggregator starting")
	return c.Run(ctx, a.HandleMessage)
}

// HandleMessage is a kafka.MessageHandler. Undecodable messages are logged
// and committed so they are not redelivered forever.
func (a *Aggregator) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	event, err := kafka.DecodeJSON[QueryEvent](value)
	if err != nil {
		a.logger.Error("failed to decode analytics event", "key", string(key), "error", err)
		return nil
	}
	a.Record(event)
	return nil
}

func (a *Aggregator) Record(event QueryEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.total++
	if event.CacheHit {
		a.cacheHits++
	}
	a.outcomes[event.Outcome]++
	if len(a.latencies) == maxLatencies {
		a.latencies = append(a.latencies[:0], a.latencies[1:]...)
	}
	a.latencies = append(a.latencies, event.LatencyMs)
	a.queryCounts[event.Query]++
	if !event.Answered() {
		a.unanswered++
		a.missCounts[event.Query]++
	}
	for _, doc := range event.Documents {
		a.docCounts[doc]++
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalQueries:    a.total,
		CacheHits:       a.cacheHits,
		CacheMisses:     a.total - a.cacheHits,
		UnansweredCount: a.unanswered,
		Outcomes:        make(map[string]int64, len(a.outcomes)),
	}
	for k, v := range a.outcomes {
		stats.Outcomes[k] = v
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.UnansweredQueries = topN(a.missCounts, 10)
	stats.TopDocuments = topN(a.docCounts, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalQueries) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count descending, then key ascending.
func topN(counts map[string]int64, n int) []Count {
	result := make([]Count, 0, len(counts))
	for key, count := range counts {
		result = append(result, Count{Key: key, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Key < result[j].Key
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
