package analytics

import "time"

// QueryEvent describes one answered (or unanswered) query. Outcome carries the
// pipeline outcome label.
type QueryEvent struct {
	Outcome   string    `json:"outcome"`
	Query     string    `json:"query"`
	Terms     []string  `json:"terms"`
	Documents []string  `json:"documents"`
	Sentences int       `json:"sentences"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Answered reports whether at least one sentence came back.
func (e QueryEvent) Answered() bool {
	return e.Sentences > 0
}
