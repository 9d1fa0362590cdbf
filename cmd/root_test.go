package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/review-harvester/internal/config"
)

// useTestEnv points every file at dir and swaps newEnv for the test.
func useTestEnv(t *testing.T, dir string) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Files = config.FilesConfig{
		Input:      filepath.Join(dir, "input.txt"),
		Unique:     filepath.Join(dir, "unique.txt"),
		Discovered: filepath.Join(dir, "discovered.txt"),
		Verified:   filepath.Join(dir, "verified.txt"),
		NoMatch:    filepath.Join(dir, "no_match.txt"),
		Failed:     filepath.Join(dir, "failed.txt"),
		Reviews:    filepath.Join(dir, "reviews.csv"),
		Summary:    filepath.Join(dir, "summary.csv"),
	}

	orig := newEnv
	newEnv = func(_ context.Context, _ string, out io.Writer) (*Env, error) {
		return &Env{Config: cfg, Logger: zap.NewNop(), RunID: "test-run", Out: out}, nil
	}
	t.Cleanup(func() { newEnv = orig })
	return cfg
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd, cleanup := newRootCmd()
	defer cleanup()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeLines(t *testing.T, path string, lines string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o600))
}

func TestStatusCommand(t *testing.T) {
	dir := t.TempDir()
	cfg := useTestEnv(t, dir)
	writeLines(t, cfg.Files.Unique, "https://site/book/show/1\nhttps://site/book/show/2\nhttps://site/book/show/3\n")
	writeLines(t, cfg.Files.Verified, "https://site/book/show/1\n")
	writeLines(t, cfg.Files.Failed, "https://site/book/show/3\nhttps://site/book/show/99\n")

	out, err := execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Verification progress")
	assert.Regexp(t, regexp.MustCompile(`Processed\s*│\s*2`), out)
	assert.Regexp(t, regexp.MustCompile(`Remaining\s*│\s*1`), out)
	assert.Contains(t, out, cfg.Files.NoMatch)
}

func TestFixNamesCommand(t *testing.T) {
	dir := t.TempDir()
	cfg := useTestEnv(t, dir)
	writeLines(t, cfg.Files.Reviews, "book_name,stars,date,context\nURL_ID_5 https://site/book/show/5.The_Trial,4,today,kafkaesque\n")

	out, err := execute(t, "fixnames")
	require.NoError(t, err)
	assert.Contains(t, out, "reviews.csv")

	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(filepath.Join(dir, "reviews_corrected.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "The Trial,4,today,kafkaesque")
}

func TestScrapeCommandRejectsEmptyInput(t *testing.T) {
	dir := t.TempDir()
	cfg := useTestEnv(t, dir)
	writeLines(t, cfg.Files.Verified, "")

	_, err := execute(t, "scrape")
	require.ErrorIs(t, err, errNoInput)
}

func TestVerifyCommandMissingInput(t *testing.T) {
	useTestEnv(t, t.TempDir())

	_, err := execute(t, "verify")
	require.ErrorContains(t, err, "verify")
}

func TestResolveEnvWithoutInit(t *testing.T) {
	t.Parallel()

	_, err := resolveEnv(context.Background())
	require.Error(t, err)
}
