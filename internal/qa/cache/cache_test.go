package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-qa/internal/qa/pipeline"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/internal/qa/ranker"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/pkg/resilience"
)

var errNotFound = errors.New("not found")

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, errNotFound
	}
	return v, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	s.ttls[key] = ttl
	return nil
}

func (s *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k := range s.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func newTestCache(store Store, scope Scope) *AnswerCache {
	c := New(store, config.RedisConfig{CacheTTL: time.Minute}, scope, nil)
	c.isMiss = func(err error) bool { return errors.Is(err, errNotFound) }
	return c
}

func sampleAnswer() *pipeline.Answer {
	return &pipeline.Answer{
		Query:     "what is python",
		Terms:     []string{"python"},
		Documents: []ranker.ScoredDoc{{DocID: "python.txt", Score: 1.2}},
		Sentences: []ranker.ScoredSentence{{Sentence: "Python is a language.", IDFSum: 0.7, Density: 0.5}},
		Outcome:   pipeline.OutcomeAnswered,
	}
}

func TestGetOrComputeCachesAnswer(t *testing.T) {
	store := newMemStore()
	c := newTestCache(store, Scope{Fingerprint: "abc", FileMatches: 1, SentenceMatches: 1})
	ctx := context.Background()
	var calls int
	compute := func() (*pipeline.Answer, error) {
		calls++
		return sampleAnswer(), nil
	}

	ans, hit, err := c.GetOrCompute(ctx, []string{"python"}, compute)
	if err != nil || hit {
		t.Fatalf("first call: hit=%v err=%v", hit, err)
	}
	if ans.Sentences[0].Sentence != "Python is a language." {
		t.Fatalf("answer = %+v", ans)
	}

	ans, hit, err = c.GetOrCompute(ctx, []string{"python"}, compute)
	if err != nil || !hit {
		t.Fatalf("second call: hit=%v err=%v", hit, err)
	}
	if calls != 1 {
		t.Errorf("compute ran %d times, want 1", calls)
	}
	if ans.Documents[0].DocID != "python.txt" {
		t.Errorf("cached answer = %+v", ans)
	}
	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("stats = %d hits, %d misses", hits, misses)
	}
	for k, ttl := range store.ttls {
		if ttl != time.Minute {
			t.Errorf("key %s ttl = %v", k, ttl)
		}
	}
}

func TestKeyScopedByCorpusAndMatches(t *testing.T) {
	terms := []string{"python"}
	base := newTestCache(newMemStore(), Scope{Fingerprint: "abc", FileMatches: 1, SentenceMatches: 1})
	other := []Scope{
		{Fingerprint: "def", FileMatches: 1, SentenceMatches: 1},
		{Fingerprint: "abc", FileMatches: 2, SentenceMatches: 1},
		{Fingerprint: "abc", FileMatches: 1, SentenceMatches: 3},
	}
	for _, s := range other {
		c := newTestCache(newMemStore(), s)
		if c.buildKey(terms) == base.buildKey(terms) {
			t.Errorf("scope %+v shares a key with base", s)
		}
	}
	if base.buildKey([]string{"a", "b"}) == base.buildKey([]string{"ab"}) {
		t.Error("term boundaries lost in key")
	}
}

func TestGetOrComputeError(t *testing.T) {
	c := newTestCache(newMemStore(), Scope{Fingerprint: "abc"})
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), []string{"x"}, func() (*pipeline.Answer, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if _, ok := c.Get(context.Background(), []string{"x"}); ok {
		t.Error("failed computation was cached")
	}
}

func TestGetOrComputeConcurrent(t *testing.T) {
	c := newTestCache(newMemStore(), Scope{Fingerprint: "abc"})
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func() (*pipeline.Answer, error) {
		calls.Add(1)
		<-release
		return sampleAnswer(), nil
	}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := c.GetOrCompute(context.Background(), []string{"python"}, compute); err != nil {
				t.Error(err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	if n := calls.Load(); n < 1 || n > 8 {
		t.Errorf("compute ran %d times", n)
	}
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	c := newTestCache(store, Scope{Fingerprint: "abc"})
	ctx := context.Background()
	c.Set(ctx, []string{"python"}, sampleAnswer())
	c.Set(ctx, []string{"go"}, sampleAnswer())
	store.data["unrelated"] = []byte("keep")

	if err := c.Invalidate(ctx); err != nil {
		t.Fatal(err)
	}
	if len(store.data) != 1 {
		t.Errorf("store has %d keys after invalidate, want 1", len(store.data))
	}
	if _, ok := c.Get(ctx, []string{"python"}); ok {
		t.Error("entry survived invalidate")
	}
}

type failingStore struct {
	*memStore
	gets atomic.Int32
}

func (s *failingStore) Get(context.Context, string) ([]byte, error) {
	s.gets.Add(1)
	return nil, errors.New("connection refused")
}

func TestBreakerStopsCallingFailingStore(t *testing.T) {
	store := &failingStore{memStore: newMemStore()}
	c := newTestCache(store, Scope{Fingerprint: "abc", FileMatches: 1, SentenceMatches: 1})
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if _, ok := c.Get(ctx, []string{"python"}); ok {
			t.Fatal("unexpected hit")
		}
	}
	if got := store.gets.Load(); got != 5 {
		t.Errorf("store called %d times, want 5 before the breaker opened", got)
	}
	if c.BreakerState() != resilience.StateOpen {
		t.Errorf("breaker = %s, want open", c.BreakerState())
	}
	if _, misses := c.Stats(); misses != 10 {
		t.Errorf("misses = %d, want 10", misses)
	}
}

func TestMissDoesNotTripBreaker(t *testing.T) {
	c := newTestCache(newMemStore(), Scope{Fingerprint: "abc", FileMatches: 1, SentenceMatches: 1})
	for i := 0; i < 10; i++ {
		c.Get(context.Background(), []string{"absent"})
	}
	if c.BreakerState() != resilience.StateClosed {
		t.Errorf("breaker = %s after plain misses", c.BreakerState())
	}
}

// racingStore misses on the first Get and then receives the answer, as if a
// concurrent request had finished and stored it in between.
type racingStore struct {
	*memStore
	fill  func()
	calls atomic.Int32
}

func (s *racingStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.memStore.Get(ctx, key)
	if s.calls.Add(1) == 1 {
		s.fill()
	}
	return v, err
}

func TestGetOrComputeRechecksBeforeComputing(t *testing.T) {
	scope := Scope{Fingerprint: "abc", FileMatches: 1, SentenceMatches: 1}
	terms := []string{"python"}
	store := &racingStore{memStore: newMemStore()}
	other := newTestCache(store.memStore, scope)
	store.fill = func() { other.Set(context.Background(), terms, sampleAnswer()) }
	c := newTestCache(store, scope)

	var calls int
	ans, hit, err := c.GetOrCompute(context.Background(), terms, func() (*pipeline.Answer, error) {
		calls++
		return sampleAnswer(), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Errorf("compute ran %d times, want 0 after the answer appeared", calls)
	}
	if !hit || ans.Outcome != pipeline.OutcomeAnswered {
		t.Errorf("hit=%v answer=%+v", hit, ans)
	}
	if got := store.calls.Load(); got != 2 {
		t.Errorf("store.Get called %d times, want 2", got)
	}
}
