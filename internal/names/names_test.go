package names

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNameFromURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"URL_Parse_Error_For_https://site/book/show/12.The_Castle", "The Castle"},
		{"https://site/book/show/12-the-castle?x=1", "the castle"},
		{"URL_ID_99 https://site/book/show/99", "Book_ID_99"},
		{"Unknown_Book_From_somewhere", "Unknown_Book_From_somewhere"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NameFromURL(tt.in), tt.in)
	}
}

func TestNeedsFix(t *testing.T) {
	t.Parallel()

	assert.True(t, NeedsFix("URL_ID_1"))
	assert.True(t, NeedsFix("Unknown_Book_From_x"))
	assert.True(t, NeedsFix("a/b"))
	assert.False(t, NeedsFix("The Trial"))
}

func TestFixRecords(t *testing.T) {
	t.Parallel()

	records := [][]string{
		{"stars", "book_name"},
		{"5", "The Trial"},
		{"4", "URL_Parse_Error_For_https://site/book/show/7.Amerika"},
		{"3", "Unknown_Book_From_nowhere"},
		{"2"},
	}
	n, err := FixRecords(records)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "Amerika", records[2][1])
	assert.Equal(t, "The Trial", records[1][1])

	_, err = FixRecords([][]string{{"title"}, {"x"}})
	require.ErrorIs(t, err, ErrNoColumn)
}

func TestCorrectedPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "out/reviews_corrected.csv", CorrectedPath("out/reviews.csv"))
	assert.Equal(t, "summary_corrected", CorrectedPath("summary"))
}

func TestFixFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dirty := filepath.Join(dir, "reviews.csv")
	clean := filepath.Join(dir, "summary.csv")
	missing := filepath.Join(dir, "missing.csv")
	require.NoError(t, os.WriteFile(dirty, []byte("book_name,stars\nURL_ID_5 https://site/book/show/5,4\nThe Trial,5\n"), 0o600))
	require.NoError(t, os.WriteFile(clean, []byte("book_name,author\nThe Trial,Kafka\n"), 0o600))

	counts, err := NewFixer(zap.NewNop()).FixFiles([]string{dirty, clean, missing})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{dirty: 1, clean: 0, missing: 0}, counts)

	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(CorrectedPath(dirty))
	require.NoError(t, err)
	assert.Equal(t, "book_name,stars\nBook_ID_5,4\nThe Trial,5\n", string(data))

	_, err = os.Stat(CorrectedPath(clean))
	assert.True(t, os.IsNotExist(err))
}
