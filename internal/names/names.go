// Package names repairs book display names in scraped CSV files that were
// derived from unparseable URLs.
package names

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Column is the CSV header holding the display name.
const Column = "book_name"

var (
	badName   = regexp.MustCompile(`[/_]|^(Unknown_Book_From_|URL_ID_)`)
	firstURL  = regexp.MustCompile(`https?://\S+`)
	slugInURL = regexp.MustCompile(`/show/\d+[.-]([^/?#]+)`)
	idInURL   = regexp.MustCompile(`/show/(\d+)`)
)

// ErrNoColumn is returned for CSVs without a book_name header.
var ErrNoColumn = errors.New("book_name column not found")

// NeedsFix reports whether name looks like a fallback or raw URL rather than
// a title.
func NeedsFix(name string) bool {
	return badName.MatchString(name)
}

// NameFromURL derives a title from the first URL embedded in name. Slugs
// become space separated words, bare IDs become Book_ID_<id>, and anything
// else is returned unchanged.
func NameFromURL(name string) string {
	target := name
	if m := firstURL.FindString(name); m != "" {
		target = m
	}
	if m := slugInURL.FindStringSubmatch(target); m != nil {
		return strings.NewReplacer("_", " ", "-", " ").Replace(m[1])
	}
	if m := idInURL.FindStringSubmatch(target); m != nil {
		return "Book_ID_" + m[1]
	}
	return name
}

// FixRecords rewrites the book_name column of records in place. The first
// record is the header. It returns how many rows changed.
func FixRecords(records [][]string) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	col := -1
	for i, h := range records[0] {
		if strings.TrimSpace(h) == Column {
			col = i
			break
		}
	}
	if col < 0 {
		return 0, ErrNoColumn
	}
	changed := 0
	for _, row := range records[1:] {
		if col >= len(row) || !NeedsFix(row[col]) {
			continue
		}
		if fixed := NameFromURL(row[col]); fixed != row[col] {
			row[col] = fixed
			changed++
		}
	}
	return changed, nil
}

// CorrectedPath returns the output path for in: "_corrected" before the
// extension.
func CorrectedPath(in string) string {
	ext := filepath.Ext(in)
	return strings.TrimSuffix(in, ext) + "_corrected" + ext
}

// Fixer corrects CSV files.
type Fixer struct {
	logger *zap.Logger
}

// NewFixer builds a Fixer.
func NewFixer(logger *zap.Logger) *Fixer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fixer{logger: logger}
}

// FixFile corrects the CSV at in and writes CorrectedPath(in) when at least
// one row changed. A missing input is logged and skipped.
func (f *Fixer) FixFile(in string) (int, error) {
	log := f.logger.With(zap.String("path", in))
	records, err := readAll(in)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn("input file not found; skipping")
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	changed, err := FixRecords(records)
	if err != nil {
		return 0, fmt.Errorf("fix %s: %w", in, err)
	}
	if changed == 0 {
		log.Info("no names needed correction")
		return 0, nil
	}
	out := CorrectedPath(in)
	if err := writeAll(out, records); err != nil {
		return changed, err
	}
	log.Info("names corrected", zap.Int("rows", changed), zap.String("output", out))
	return changed, nil
}

// FixFiles runs FixFile over every path and returns the per-file counts.
func (f *Fixer) FixFiles(paths []string) (map[string]int, error) {
	counts := make(map[string]int, len(paths))
	var errs error
	for _, p := range paths {
		n, err := f.FixFile(p)
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		counts[p] = n
	}
	return counts, errs
}

func readAll(path string) ([][]string, error) {
	file, err := os.Open(path) // #nosec G304 -- path comes from the command line
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()
	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return records, nil
}

func writeAll(path string, records [][]string) (err error) {
	file, err := os.Create(path) // #nosec G304 -- derived from the input path
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	if err := csv.NewWriter(file).WriteAll(records); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
