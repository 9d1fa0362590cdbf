package reviews

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/review-harvester/internal/pool"
)

type scriptedScraper map[string]BookResult

func (s scriptedScraper) Scrape(_ context.Context, rawURL string) (BookResult, error) {
	res, ok := s[rawURL]
	if !ok {
		return BookResult{URL: rawURL}, errors.New("unexpected url")
	}
	return res, nil
}

func book(url, name string, n int) BookResult {
	res := BookResult{URL: url, BookName: name}
	for i := range n {
		res.Reviews = append(res.Reviews, Review{BookName: name, ReviewID: url + "#" + string(rune('a'+i)), Stars: "5", Date: "today", Context: "kafkaesque"})
	}
	if n > 0 {
		res.Summary = &Summary{BookName: name, Metadata: MissingMetadata(), KeywordReviewCount: n}
	}
	return res
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path) // #nosec G304 -- test reads from the controlled temp directory.
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestJobRunFiles(t *testing.T) {
	t.Parallel()

	scraper := scriptedScraper{
		"u1": book("u1", "Zeta", 2),
		"u2": book("u2", "Alpha", 1),
		"u3": book("u3", "Empty", 0),
	}
	job, err := NewJob("kafkaesque", pool.Config{Workers: 2}, scraper, zap.NewNop())
	require.NoError(t, err)

	dir := t.TempDir()
	out := Output{Reviews: filepath.Join(dir, "reviews.csv"), Summary: filepath.Join(dir, "summary.csv")}
	report, err := job.RunFiles(context.Background(), []string{"u1", "u2", "u3", "missing"}, out)
	require.NoError(t, err)

	assert.Equal(t, Totals{Books: 3, BooksWithReviews: 2, Reviews: 3, Failed: 1}, report.Totals)

	reviews := readCSV(t, out.Reviews)
	require.Len(t, reviews, 4)
	assert.Equal(t, ReviewsHeader, reviews[0])
	assert.Equal(t, []string{"Zeta", "5", "today", "kafkaesque"}, reviews[1])
	assert.Equal(t, "Alpha", reviews[3][0])

	summary := readCSV(t, out.Summary)
	require.Len(t, summary, 3)
	assert.Equal(t, "kafkaesque_review_count", summary[0][4])
	assert.Equal(t, "Alpha", summary[1][0])
	assert.Equal(t, "1", summary[1][4])
	assert.Equal(t, "Zeta", summary[2][0])
}

func TestJobRunFilesNothingFound(t *testing.T) {
	t.Parallel()

	job, err := NewJob("kafkaesque", pool.Config{Workers: 1}, scriptedScraper{"u1": book("u1", "Empty", 0)}, nil)
	require.NoError(t, err)

	dir := t.TempDir()
	out := Output{Reviews: filepath.Join(dir, "reviews.csv"), Summary: filepath.Join(dir, "summary.csv")}
	report, err := job.RunFiles(context.Background(), []string{"u1"}, out)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Totals.Books)

	_, err = os.Stat(out.Reviews)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(out.Summary)
	assert.True(t, os.IsNotExist(err))
}

func TestNewJobValidates(t *testing.T) {
	t.Parallel()

	_, err := NewJob("", pool.Config{}, scriptedScraper{}, nil)
	require.ErrorIs(t, err, ErrEmptyKeyword)

	_, err = NewJob("k", pool.Config{}, nil, nil)
	require.Error(t, err)
}
