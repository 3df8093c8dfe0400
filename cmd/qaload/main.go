// Command qaload drives concurrent questions at a running qaserver and
// prints throughput, latency percentiles, status codes and answer outcomes.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-qa/internal/qa/handler"
)

var defaultQuestions = []string{
	"What is Python?",
	"Who created Python?",
	"When was Python first released?",
	"What is a goroutine?",
	"Who designed Go?",
	"What does an inverted index store?",
	"How does a circuit breaker recover?",
	"What is tf-idf?",
}

type options struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Questions   []string
}

type stats struct {
	mu        sync.Mutex
	total     int64
	failed    int64
	cacheHits int64
	latencies []time.Duration
	codes     map[int]int64
	outcomes  map[string]int64
}

func newStats() *stats {
	return &stats{
		latencies: make([]time.Duration, 0, 100000),
		codes:     make(map[int]int64),
		outcomes:  make(map[string]int64),
	}
}

type result struct {
	latency  time.Duration
	status   int
	outcome  string
	cacheHit bool
	err      error
}

func (s *stats) record(r result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	if r.err != nil {
		s.failed++
		return
	}
	if r.status < 200 || r.status >= 300 {
		s.failed++
	}
	s.latencies = append(s.latencies, r.latency)
	s.codes[r.status]++
	if r.outcome != "" {
		s.outcomes[r.outcome]++
	}
	if r.cacheHit {
		s.cacheHits++
	}
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the qa service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	questionsFile := flag.String("questions", "", "file with one question per line (default: built-in set)")
	flag.Parse()

	questions := defaultQuestions
	if *questionsFile != "" {
		f, err := os.Open(*questionsFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "opening questions: %v\n", err)
			os.Exit(1)
		}
		questions, err = readQuestions(f)
		f.Close()
		if err != nil || len(questions) == 0 {
			fmt.Fprintf(os.Stderr, "reading questions: no questions (%v)\n", err)
			os.Exit(1)
		}
	}

	opts := options{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Concurrency: *concurrency,
		Duration:    *duration,
		Questions:   questions,
	}

	fmt.Println("=== QA Load Test ===")
	fmt.Printf("Target:      %s\n", opts.BaseURL)
	fmt.Printf("Concurrency: %d\n", opts.Concurrency)
	fmt.Printf("Duration:    %s\n", opts.Duration)
	fmt.Printf("Questions:   %d unique\n", len(opts.Questions))
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), opts.Duration)
	defer cancel()
	s := run(ctx, opts, newClient(opts.Concurrency))
	if !report(os.Stdout, s, opts.Duration) {
		os.Exit(1)
	}
}

func readQuestions(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if q := strings.TrimSpace(sc.Text()); q != "" && !strings.HasPrefix(q, "#") {
			out = append(out, q)
		}
	}
	return out, sc.Err()
}

func newClient(concurrency int) *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        concurrency * 2,
			MaxIdleConnsPerHost: concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// run sends questions round-robin from every worker until ctx ends.
func run(ctx context.Context, opts options, client *http.Client) *stats {
	s := newStats()
	var wg sync.WaitGroup
	for w := 0; w < opts.Concurrency; w++ {
		wg.Add(1)
		go func(next int) {
			defer wg.Done()
			for ctx.Err() == nil {
				q := opts.Questions[next%len(opts.Questions)]
				next++
				r := ask(ctx, client, opts.BaseURL, q)
				if ctx.Err() != nil {
					return
				}
				s.record(r)
			}
		}(w)
	}
	wg.Wait()
	return s
}

func ask(ctx context.Context, client *http.Client, baseURL, question string) result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/v1/answer?q="+url.QueryEscape(question), nil)
	if err != nil {
		return result{err: err}
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return result{latency: time.Since(start), err: err}
	}
	defer resp.Body.Close()

	var body struct {
		Outcome string `json:"outcome"`
	}
	if resp.StatusCode == http.StatusOK {
		_ = json.NewDecoder(resp.Body).Decode(&body)
	}
	io.Copy(io.Discard, resp.Body)
	return result{
		latency:  time.Since(start),
		status:   resp.StatusCode,
		outcome:  body.Outcome,
		cacheHit: resp.Header.Get(handler.CacheHeader) == "HIT",
	}
}

// report prints the summary and reports whether any request completed.
func report(w io.Writer, s *stats, d time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", s.total)
	fmt.Fprintf(w, "Failed:          %d\n", s.failed)
	if s.total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(s.failed)/float64(s.total)*100)
		fmt.Fprintf(w, "Cache Hit Rate:  %.2f%%\n", float64(s.cacheHits)/float64(s.total)*100)
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", float64(s.total)/d.Seconds())
	}

	if len(s.latencies) > 0 {
		lat := slices.Clone(s.latencies)
		slices.Sort(lat)
		var sum time.Duration
		for _, l := range lat {
			sum += l
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Latency ===")
		fmt.Fprintf(w, "Min:    %s\n", lat[0])
		fmt.Fprintf(w, "Avg:    %s\n", sum/time.Duration(len(lat)))
		for _, p := range []float64{50, 90, 95, 99} {
			fmt.Fprintf(w, "P%-5.0f %s\n", p, percentile(lat, p))
		}
		fmt.Fprintf(w, "Max:    %s\n", lat[len(lat)-1])
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Status Codes ===")
	codes := make([]int, 0, len(s.codes))
	for code := range s.codes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, s.codes[code])
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Outcomes ===")
	outcomes := make([]string, 0, len(s.outcomes))
	for o := range s.outcomes {
		outcomes = append(outcomes, o)
	}
	sort.Strings(outcomes)
	for _, o := range outcomes {
		fmt.Fprintf(w, "  %s: %d\n", o, s.outcomes[o])
	}

	if s.total == 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "WARNING: No requests completed. Is the service running?")
		return false
	}
	return true
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
