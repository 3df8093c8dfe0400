// Package cache stores pipeline answers in Redis. Keys are derived from the
// corpus fingerprint, the normalised query terms and both match counts, so
// "What is Python?" and "python" share an entry and a reloaded corpus never
// serves stale answers.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/corpus-qa/internal/qa/pipeline"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/corpus-qa/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/pkg/resilience"
)

const keyPrefix = "qa:"

// Store is the subset of *pkgredis.Client the cache uses.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Scope identifies everything besides the query that changes an answer.
type Scope struct {
	Fingerprint     string
	FileMatches     int
	SentenceMatches int
}

// AnswerCache degrades to a pass-through while Redis is slow or failing:
// every store call runs under OpTimeout behind a circuit breaker.
type AnswerCache struct {
	store     Store
	ttl       time.Duration
	opTimeout time.Duration
	scope     Scope
	group     singleflight.Group
	breaker   *resilience.Breaker
	metrics   *metrics.Metrics
	logger    *slog.Logger
	hits      atomic.Int64
	misses    atomic.Int64
	isMiss    func(error) bool
}

// New returns a cache over store. m may be nil.
func New(store Store, cfg config.RedisConfig, scope Scope, m *metrics.Metrics) *AnswerCache {
	return &AnswerCache{
		store:     store,
		ttl:       cfg.CacheTTL,
		opTimeout: cfg.OpTimeout,
		scope:     scope,
		breaker:   resilience.NewBreaker("answer-cache", resilience.BreakerConfig{}),
		metrics:   m,
		logger:    slog.Default().With("component", "answer-cache"),
		isMiss:    pkgredis.IsNilError,
	}
}

func (c *AnswerCache) Get(ctx context.Context, terms []string) (*pipeline.Answer, bool) {
	ans, ok := c.lookup(ctx, c.buildKey(terms))
	if !ok {
		c.miss()
		return nil, false
	}
	c.hit()
	c.logger.Debug("cache hit", "terms", terms)
	return ans, true
}

// lookup reads key without touching the hit and miss counters.
func (c *AnswerCache) lookup(ctx context.Context, key string) (*pipeline.Answer, bool) {
	var data []byte
	var absent bool
	err := c.guard(ctx, "cache get", func(ctx context.Context) error {
		v, err := c.store.Get(ctx, key)
		if err != nil && c.isMiss(err) {
			absent = true
			return nil
		}
		data = v
		return err
	})
	if err != nil {
		c.logFailure("cache get failed", key, err)
		return nil, false
	}
	if absent {
		return nil, false
	}
	var ans pipeline.Answer
	if err := json.Unmarshal(data, &ans); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	return &ans, true
}

func (c *AnswerCache) Set(ctx context.Context, terms []string, ans *pipeline.Answer) {
	key := c.buildKey(terms)
	data, err := json.Marshal(ans)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.guard(ctx, "cache set", func(ctx context.Context) error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.logFailure("cache set failed", key, err)
	}
}

// GetOrCompute returns a cached answer or runs computeFn once per key even
// under concurrent identical requests. The bool reports a cache hit.
func (c *AnswerCache) GetOrCompute(
	ctx context.Context,
	terms []string,
	computeFn func() (*pipeline.Answer, error),
) (*pipeline.Answer, bool, error) {
	if ans, ok := c.Get(ctx, terms); ok {
		return ans, true, nil
	}
	key := c.buildKey(terms)
	type shared struct {
		ans    *pipeline.Answer
		cached bool
	}
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		// A leader that finished just before this call may already have stored it.
		if ans, ok := c.lookup(ctx, key); ok {
			return shared{ans: ans, cached: true}, nil
		}
		ans, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, terms, ans)
		return shared{ans: ans}, nil
	})
	if err != nil {
		return nil, false, err
	}
	res := val.(shared)
	return res.ans, res.cached, nil
}

func (c *AnswerCache) Invalidate(ctx context.Context) error {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *AnswerCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// BreakerState reports whether store calls are currently being attempted.
func (c *AnswerCache) BreakerState() resilience.State {
	return c.breaker.State()
}

func (c *AnswerCache) guard(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return c.breaker.Do(func() error {
		return resilience.WithTimeout(ctx, c.opTimeout, op, fn)
	})
}

func (c *AnswerCache) logFailure(msg, key string, err error) {
	if errors.Is(err, resilience.ErrOpen) {
		c.logger.Debug(msg, "key", key, "error", err)
		return
	}
	c.logger.Error(msg, "key", key, "error", err)
}

func (c *AnswerCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *AnswerCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// buildKey expects terms already sorted, as ranker.Query.Terms returns them.
func (c *AnswerCache) buildKey(terms []string) string {
	raw := fmt.Sprintf("%s|files=%d|sentences=%d|%s",
		c.scope.Fingerprint,
		c.scope.FileMatches,
		c.scope.SentenceMatches,
		strings.Join(terms, ","),
	)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
