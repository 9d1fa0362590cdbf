// Package urlstore reads and writes the newline-delimited URL files that act
// as the pipeline's only persistent state.
package urlstore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const maxLineBytes = 1 << 20

// ReadSet returns the distinct, non-blank lines of path in file order.
func ReadSet(path string) ([]string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open url file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	urls, err := readLines(f)
	if err != nil {
		return nil, fmt.Errorf("read url file %s: %w", path, err)
	}
	return urls, nil
}

// ReadSetIfExists behaves like ReadSet but treats a missing file as empty.
func ReadSetIfExists(path string) ([]string, error) {
	urls, err := ReadSet(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return urls, err
}

func readLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	seen := make(map[string]struct{})
	var urls []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan lines: %w", err)
	}
	return urls, nil
}

// WriteSorted replaces path with the sorted, de-duplicated urls. The file is
// written to a sibling temp file first and renamed into place.
func WriteSorted(path string, urls []string) error {
	uniq := make(map[string]struct{}, len(urls))
	sorted := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, dup := uniq[u]; dup {
			continue
		}
		uniq[u] = struct{}{}
		sorted = append(sorted, u)
	}
	sort.Strings(sorted)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create parent directories: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	w := bufio.NewWriter(tmp)
	for _, u := range sorted {
		if _, err := w.WriteString(u + "\n"); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

// Appender appends URLs to an outcome file one line at a time. Each Append
// is a single unbuffered write so a crash loses at most the line in flight.
type Appender struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// OpenAppender opens path for appending, creating it and its parent
// directories when absent.
func OpenAppender(path string) (*Appender, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}
	f, err := os.OpenFile(filepath.Clean(path), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open %s for append: %w", path, err)
	}
	return &Appender{path: path, file: f}, nil
}

// Path returns the file the appender writes to.
func (a *Appender) Path() string { return a.path }

// Append writes url followed by a newline.
func (a *Appender) Append(url string) error {
	line := strings.TrimSpace(url)
	if line == "" {
		return fmt.Errorf("append to %s: empty url", a.path)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return fmt.Errorf("append to %s: %w", a.path, fs.ErrClosed)
	}
	if _, err := a.file.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("append to %s: %w", a.path, err)
	}
	return nil
}

// Close releases the underlying file. It is safe to call more than once.
func (a *Appender) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	if err != nil {
		return fmt.Errorf("close %s: %w", a.path, err)
	}
	return nil
}
