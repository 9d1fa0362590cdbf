// Package work defines the identifiers and per-URL outcome types shared by
// the canonicalization and verification stages.
package work

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
)

var workIDPattern = regexp.MustCompile(`/book/show/(\d+)`)

// ExtractID returns the decimal work identifier embedded in a canonical URL.
func ExtractID(canonicalURL string) (string, bool) {
	m := workIDPattern.FindStringSubmatch(canonicalURL)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}

// ResolveStatus classifies the outcome of a canonicalization attempt.
type ResolveStatus int

const (
	// Unresolved means no canonical URL with a work ID was obtained; the URL
	// stays in the residue and may be retried.
	Unresolved ResolveStatus = iota
	// Resolved means the URL mapped to a canonical URL carrying a work ID.
	Resolved
)

// String implements fmt.Stringer.
func (s ResolveStatus) String() string {
	switch s {
	case Resolved:
		return "resolved"
	default:
		return "unresolved"
	}
}

// Resolution is the result of canonicalizing one URL.
type Resolution struct {
	URL       string
	Canonical string
	WorkID    string
	Status    ResolveStatus
	// Reason carries the error kind when the attempt failed outright.
	Reason string
}

// FromCanonical builds a Resolution for url from the canonical URL a page
// declared. The canonical must carry a work ID to count as resolved.
func FromCanonical(url, canonical string) Resolution {
	canonical = strings.TrimSpace(canonical)
	id, ok := ExtractID(canonical)
	if !ok {
		return Resolution{URL: url, Canonical: canonical, Status: Unresolved, Reason: "NoWorkID"}
	}
	return Resolution{URL: url, Canonical: canonical, WorkID: id, Status: Resolved}
}

// UnresolvedFor builds an Unresolved resolution, recording the kind of err
// when one is given.
func UnresolvedFor(url string, err error) Resolution {
	return Resolution{URL: url, Status: Unresolved, Reason: ErrorKind(err)}
}

// Verdict classifies the outcome of a keyword verification.
type Verdict int

const (
	// Matched means at least one review matched the keyword.
	Matched Verdict = iota
	// NoMatch means the search completed and nothing matched.
	NoMatch
	// Failed means the check could not be completed.
	Failed
)

// String implements fmt.Stringer.
func (v Verdict) String() string {
	switch v {
	case Matched:
		return "matched"
	case NoMatch:
		return "no_match"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Verification is the result of checking one work for the keyword.
type Verification struct {
	URL     string
	Verdict Verdict
	// Reason is the error kind for Failed verdicts.
	Reason string
}

// MatchedFor builds a Matched verification.
func MatchedFor(url string) Verification { return Verification{URL: url, Verdict: Matched} }

// NoMatchFor builds a NoMatch verification.
func NoMatchFor(url string) Verification { return Verification{URL: url, Verdict: NoMatch} }

// FailedFor builds a Failed verification tagged with the kind of err.
func FailedFor(url string, err error) Verification {
	return Verification{URL: url, Verdict: Failed, Reason: ErrorKind(err)}
}

// CriticalSetupError reports that a browser session or other per-task
// resource could not be created.
type CriticalSetupError struct {
	Op  string
	Err error
}

func (e *CriticalSetupError) Error() string {
	return fmt.Sprintf("critical setup failure during %s: %v", e.Op, e.Err)
}

func (e *CriticalSetupError) Unwrap() error { return e.Err }

// Kind implements the kinded error contract used by ErrorKind.
func (e *CriticalSetupError) Kind() string { return "CriticalSetup" }

// SessionClosedError reports that the browser or tab driving a task went
// away mid-task.
type SessionClosedError struct {
	Err error
}

func (e *SessionClosedError) Error() string {
	return fmt.Sprintf("browser session closed: %v", e.Err)
}

func (e *SessionClosedError) Unwrap() error { return e.Err }

// Kind implements the kinded error contract used by ErrorKind.
func (e *SessionClosedError) Kind() string { return "SessionClosed" }

// ErrorKind returns a short, stable classification of err for logs and
// outcome records. Errors may name their own kind by implementing
// Kind() string.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var kinded interface{ Kind() string }
	if errors.As(err, &kinded) {
		return kinded.Kind()
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "Timeout"
	case errors.Is(err, context.Canceled):
		return "Canceled"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Timeout"
	}

	root := err
	for {
		next := errors.Unwrap(root)
		if next == nil {
			break
		}
		root = next
	}
	name := strings.TrimPrefix(fmt.Sprintf("%T", root), "*")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	switch name {
	case "errorString", "wrapError", "joinError", "":
		return "Error"
	}
	return name
}
