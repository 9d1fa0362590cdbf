package reviews

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// ReviewsHeader is the header row of the reviews CSV.
var ReviewsHeader = []string{"book_name", "stars", "date", "context"}

// SummaryHeader returns the header row of the summary CSV for keyword.
func SummaryHeader(keyword string) []string {
	return []string{"book_name", "author", "avg_rating", "total_reviews", keyword + "_review_count", "release_date", "genres"}
}

// WriteReviewsCSV writes reviews to path, replacing any existing file.
func WriteReviewsCSV(path string, reviews []Review) error {
	rows := make([][]string, 0, len(reviews)+1)
	rows = append(rows, ReviewsHeader)
	for _, r := range reviews {
		rows = append(rows, []string{r.BookName, r.Stars, r.Date, r.Context})
	}
	return writeCSV(path, rows)
}

// WriteSummaryCSV writes one row per book to path.
func WriteSummaryCSV(path, keyword string, summaries []Summary) error {
	rows := make([][]string, 0, len(summaries)+1)
	rows = append(rows, SummaryHeader(keyword))
	for _, s := range summaries {
		rows = append(rows, []string{
			s.BookName, s.Author, s.AvgRating, s.TotalReviews,
			strconv.Itoa(s.KeywordReviewCount), s.ReleaseDate, s.Genres,
		})
	}
	return writeCSV(path, rows)
}

func writeCSV(path string, rows [][]string) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create dir for %s: %w", path, err)
		}
	}
	f, err := os.Create(path) // #nosec G304 -- path comes from configuration
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
