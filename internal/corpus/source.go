package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/corpus-qa/pkg/config"
	qaerrors "github.com/Adithya-Monish-Kumar-K/corpus-qa/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/pkg/resilience"
)

// Source yields raw document text keyed by document id.
type Source interface {
	Load(ctx context.Context) (map[string]string, error)
}

// DirSource reads every regular, non-hidden file in Dir. The file name is the
// document id. Subdirectories are ignored.
type DirSource struct {
	Dir string
}

func (s DirSource) Load(ctx context.Context) (map[string]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("listing corpus dir %s: %v: %w", s.Dir, err, qaerrors.ErrCorpusUnavailable)
	}
	docs := make(map[string]string, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.Dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %v: %w", e.Name(), err, qaerrors.ErrCorpusUnavailable)
		}
		docs[e.Name()] = string(data)
	}
	return docs, nil
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PostgresSource reads (name, body) rows from Table.
type PostgresSource struct {
	Client *postgres.Client
	Table  string
}

func NewPostgresSource(client *postgres.Client, table string) (*PostgresSource, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("corpus table %q: %w", table, qaerrors.ErrInvalidInput)
	}
	return &PostgresSource{Client: client, Table: table}, nil
}

func (s *PostgresSource) Load(ctx context.Context) (map[string]string, error) {
	docs := make(map[string]string)
	query := fmt.Sprintf("SELECT name, body FROM %s", s.Table)
	err := s.Client.ReadOnly(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query)
		if err != nil {
			return fmt.Errorf("querying %s: %w", s.Table, err)
		}
		defer rows.Close()
		for rows.Next() {
			var name, body string
			if err := rows.Scan(&name, &body); err != nil {
				return fmt.Errorf("scanning document row: %w", err)
			}
			docs[name] = body
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("loading corpus from postgres: %v: %w", err, qaerrors.ErrCorpusUnavailable)
	}
	return docs, nil
}

// OpenSource builds the Source selected by cfg.Corpus. The returned close
// function releases any connection the source holds.
func OpenSource(cfg *config.Config) (Source, func() error, error) {
	switch cfg.Corpus.Source {
	case config.SourcePostgres:
		client, err := postgres.New(cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("opening corpus store: %v: %w", err, qaerrors.ErrCorpusUnavailable)
		}
		src, err := NewPostgresSource(client, cfg.Corpus.Table)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return src, client.Close, nil
	default:
		return DirSource{Dir: cfg.Corpus.Dir}, func() error { return nil }, nil
	}
}

// Load opens the configured source and builds the corpus, retrying up to
// cfg.Corpus.LoadAttempts times while the source is unavailable.
func Load(ctx context.Context, cfg *config.Config, n Normalizer) (*Corpus, error) {
	src, closeSource, err := OpenSource(cfg)
	if err != nil {
		return nil, err
	}
	defer closeSource()

	var c *Corpus
	err = resilience.Retry(ctx, "corpus load", resilience.Backoff{
		Attempts:  cfg.Corpus.LoadAttempts,
		Jitter:    0.1,
		Retryable: func(err error) bool { return qaerrors.Is(err, qaerrors.ErrCorpusUnavailable) },
	}, func(ctx context.Context) error {
		built, err := Build(ctx, src, n)
		if err != nil {
			return err
		}
		c = built
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
