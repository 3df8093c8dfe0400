package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"python.txt": "Python is a programming language.\nIt was created by Guido van Rossum. Python was first released in 1991.",
		"go.txt":     "Go is a language designed at Google.\nGo programs use goroutines for concurrency.",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestRunPrintsBestSentence(t *testing.T) {
	dir := writeCorpus(t)
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{dir}, strings.NewReader("When was Python released?\n"), &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v (stderr=%s)", err, stderr.String())
	}
	want := "Query: Python was first released in 1991.\n"
	if stdout.String() != want {
		t.Errorf("stdout = %q, want %q", stdout.String(), want)
	}
}

func TestRunMultipleSentences(t *testing.T) {
	dir := writeCorpus(t)
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-sentences", "2", dir}, strings.NewReader("goroutines language"), &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(strings.TrimPrefix(stdout.String(), "Query: "), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("printed %d lines: %q", len(lines), stdout.String())
	}
	// Equal idf sums; the shorter sentence has the higher density.
	if lines[0] != "Go is a language designed at Google." {
		t.Errorf("first line = %q", lines[0])
	}
}

func TestRunUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), nil, strings.NewReader(""), &stdout, &stderr)
	if !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	err = run(context.Background(), []string{"a", "b"}, strings.NewReader(""), &stdout, &stderr)
	if !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error for two args, got %v", err)
	}
}

func TestRunNoMatchPrintsNothing(t *testing.T) {
	dir := writeCorpus(t)
	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{dir}, strings.NewReader("unicorns\n"), &stdout, &stderr); err != nil {
		t.Fatal(err)
	}
	if stdout.String() != "Query: " {
		t.Errorf("stdout = %q", stdout.String())
	}
}
