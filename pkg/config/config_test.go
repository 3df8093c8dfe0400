package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Retrieval.FileMatches != 1 || cfg.Retrieval.SentenceMatches != 1 {
		t.Errorf("match defaults = %d/%d, want 1/1", cfg.Retrieval.FileMatches, cfg.Retrieval.SentenceMatches)
	}
	if cfg.Corpus.Source != SourceDir {
		t.Errorf("source = %q, want %q", cfg.Corpus.Source, SourceDir)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qa.yaml")
	body := `
retrieval:
  fileMatches: 3
  sentenceMatches: 2
redis:
  cacheTTL: 90s
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("QA_SENTENCE_MATCHES", "5")
	t.Setenv("QA_CORPUS_DIR", "/data/wiki")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Retrieval.FileMatches != 3 {
		t.Errorf("fileMatches = %d, want 3", cfg.Retrieval.FileMatches)
	}
	if cfg.Retrieval.SentenceMatches != 5 {
		t.Errorf("sentenceMatches = %d, want env override 5", cfg.Retrieval.SentenceMatches)
	}
	if cfg.Redis.CacheTTL != 90*time.Second {
		t.Errorf("cacheTTL = %v, want 90s", cfg.Redis.CacheTTL)
	}
	if cfg.Corpus.Dir != "/data/wiki" {
		t.Errorf("corpus dir = %q", cfg.Corpus.Dir)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging level = %q", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Retrieval.FileMatches = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero fileMatches")
	}

	cfg = Default()
	cfg.Corpus.Source = "s3"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestLoadDevelopmentConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "development.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Redis.OpTimeout != 250*time.Millisecond {
		t.Errorf("opTimeout = %v", cfg.Redis.OpTimeout)
	}
	if len(cfg.Server.AllowOrigins) != 1 || cfg.Corpus.LoadAttempts != 3 {
		t.Errorf("server/corpus = %+v / %+v", cfg.Server, cfg.Corpus)
	}
}
