// Package ledger derives what work remains from the terminal outcome files.
// No state is kept outside those files: the remaining set is always
// recomputed as input minus everything already recorded.
package ledger

import (
	"errors"
	"fmt"

	"github.com/JakeFAU/review-harvester/internal/urlstore"
)

// ErrNoStores is returned when a ledger is built without outcome files.
var ErrNoStores = errors.New("ledger requires at least one outcome store")

// Ledger reads a fixed set of outcome stores. Missing stores count as empty.
type Ledger struct {
	stores []string
}

// New builds a Ledger over the given outcome file paths.
func New(stores ...string) (*Ledger, error) {
	if len(stores) == 0 {
		return nil, ErrNoStores
	}
	return &Ledger{stores: append([]string(nil), stores...)}, nil
}

// Processed returns the union of all URLs recorded in any store.
func (l *Ledger) Processed() (map[string]struct{}, error) {
	done := make(map[string]struct{})
	for _, path := range l.stores {
		urls, err := urlstore.ReadSetIfExists(path)
		if err != nil {
			return nil, fmt.Errorf("load outcome store: %w", err)
		}
		for _, u := range urls {
			done[u] = struct{}{}
		}
	}
	return done, nil
}

// Remaining returns the members of input not present in any store,
// preserving input order.
func (l *Ledger) Remaining(input []string) ([]string, error) {
	done, err := l.Processed()
	if err != nil {
		return nil, err
	}
	remaining := make([]string, 0, len(input))
	for _, u := range input {
		if _, ok := done[u]; ok {
			continue
		}
		remaining = append(remaining, u)
	}
	return remaining, nil
}

// StoreCount is the number of distinct URLs in one outcome store.
type StoreCount struct {
	Path  string
	Count int
}

// Summary describes the progress of input against the ledger.
type Summary struct {
	Input     int
	Stores    []StoreCount
	Processed int
	Remaining int
}

// Summarize counts per-store entries and the portion of input still pending.
// Processed counts only input members found in a store.
func (l *Ledger) Summarize(input []string) (Summary, error) {
	summary := Summary{Input: len(input)}
	done := make(map[string]struct{})
	for _, path := range l.stores {
		urls, err := urlstore.ReadSetIfExists(path)
		if err != nil {
			return Summary{}, fmt.Errorf("load outcome store: %w", err)
		}
		summary.Stores = append(summary.Stores, StoreCount{Path: path, Count: len(urls)})
		for _, u := range urls {
			done[u] = struct{}{}
		}
	}
	for _, u := range input {
		if _, ok := done[u]; ok {
			summary.Processed++
		} else {
			summary.Remaining++
		}
	}
	return summary, nil
}
