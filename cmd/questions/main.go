// Command questions answers one natural-language question against a
// directory of text files and prints the best matching sentence(s).
//
//	questions [-config qa.yaml] [-files N] [-sentences N] corpus
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/corpus-qa/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/internal/qa/pipeline"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/internal/textproc/normalizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/internal/textproc/segmenter"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/corpus-qa/pkg/logger"
)

var errUsage = errors.New("usage: questions [flags] corpus")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("questions", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file")
	files := fs.Int("files", 0, "number of documents to select (overrides config)")
	sentences := fs.Int("sentences", 0, "number of sentences to print (overrides config)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		return errUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *files > 0 {
		cfg.Retrieval.FileMatches = *files
	}
	if *sentences > 0 {
		cfg.Retrieval.SentenceMatches = *sentences
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format, stderr)

	if err := normalizer.Setup(cfg.Normalizer.StopwordsFile); err != nil {
		return err
	}
	norm, err := normalizer.New()
	if err != nil {
		return err
	}
	seg, err := segmenter.New()
	if err != nil {
		return err
	}

	c, err := corpus.Build(ctx, corpus.DirSource{Dir: fs.Arg(0)}, norm)
	if err != nil {
		return err
	}
	p := pipeline.New(c, norm, seg, cfg.Retrieval, nil)

	fmt.Fprint(stdout, "Query: ")
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading query: %w", err)
	}

	ans, err := p.Answer(ctx, strings.TrimSpace(line))
	if err != nil {
		return err
	}
	for _, s := range ans.Texts() {
		fmt.Fprintln(stdout, s)
	}
	return nil
}
