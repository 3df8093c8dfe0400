package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/corpus-qa/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/internal/qa/cache"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/internal/qa/handler"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/internal/qa/pipeline"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/internal/textproc/normalizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/internal/textproc/segmenter"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/corpus-qa/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format, nil)
	slog.Info("starting qa service",
		"port", cfg.Server.Port,
		"corpus_source", cfg.Corpus.Source,
		"file_matches", cfg.Retrieval.FileMatches,
		"sentence_matches", cfg.Retrieval.SentenceMatches,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := normalizer.Setup(cfg.Normalizer.StopwordsFile); err != nil {
		slog.Error("failed to load stopwords", "error", err)
		os.Exit(1)
	}
	norm, err := normalizer.New()
	if err != nil {
		slog.Error("normalizer unavailable", "error", err)
		os.Exit(1)
	}
	seg, err := segmenter.New()
	if err != nil {
		slog.Error("failed to load sentence model", "error", err)
		os.Exit(1)
	}

	c, err := corpus.Load(ctx, cfg, norm)
	if err != nil {
		slog.Error("failed to load corpus", "error", err)
		os.Exit(1)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(prometheus.DefaultRegisterer)
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		defer shutdownMetrics(context.Background())
	}

	p := pipeline.New(c, norm, seg, cfg.Retrieval, m)

	var answerCache *cache.AnswerCache
	var redisClient *pkgredis.Client
	if cfg.Cache.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, answer caching disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			answerCache = cache.New(redisClient, cfg.Redis, cache.Scope{
				Fingerprint:     c.Fingerprint(),
				FileMatches:     p.Config().FileMatches,
				SentenceMatches: p.Config().SentenceMatches,
			}, m)
			slog.Info("answer cache enabled",
				"addr", cfg.Redis.Addr,
				"ttl", cfg.Redis.CacheTTL,
				"fingerprint", c.Fingerprint(),
			)
		}
	}

	var collector *analytics.Collector
	var aggregator *analytics.Aggregator
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.QueryEvents)
		defer producer.Close()
		collector = analytics.NewCollector(producer, 10000)
		collector.Start(ctx)
		defer collector.Close()
		slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.QueryEvents)

		aggregator = analytics.NewAggregator()
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.QueryEvents)
		go func() {
			if err := aggregator.Run(ctx, consumer); err != nil {
				slog.Error("analytics aggregator error", "error", err)
			}
		}()
		slog.Info("analytics aggregator started")
	}

	checker := health.NewChecker()
	checker.Register("corpus", func(ctx context.Context) health.ComponentHealth {
		if c.Len() > 0 {
			return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d documents", c.Len())}
		}
		return health.ComponentHealth{Status: health.StatusDown, Message: "empty corpus"}
	})
	if cfg.Cache.Enabled {
		checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
			if redisClient == nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: "not connected"}
			}
			if err := redisClient.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}

	h := handler.New(p, answerCache, collector)
	analyticsH := analytics.NewHandler(aggregator)

	routes := []struct {
		method, path string
		handler      http.HandlerFunc
	}{
		{http.MethodGet, "/api/v1/answer", h.Answer},
		{http.MethodGet, "/api/v1/cache/stats", h.CacheStats},
		{http.MethodPost, "/api/v1/cache/invalidate", h.CacheInvalidate},
		{http.MethodGet, "/api/v1/analytics", analyticsH.Stats},
		{http.MethodGet, "/health/live", checker.LiveHandler()},
		{http.MethodGet, "/health/ready", checker.ReadyHandler()},
	}
	mux := http.NewServeMux()
	paths := make([]string, 0, len(routes))
	for _, rt := range routes {
		mux.HandleFunc(rt.method+" "+rt.path, rt.handler)
		paths = append(paths, rt.path)
	}

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if len(cfg.Server.AllowOrigins) > 0 {
		chain = middleware.CORS(cfg.Server.AllowOrigins)(chain)
	}
	chain = middleware.RequestID(chain)
	if m != nil {
		chain = middleware.Metrics(m, paths...)(chain)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("qa service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("qa service stopped")
}
