package flights

import (
	"errors"
	"fmt"
)

// Sentinel errors for the caller-facing failure modes.
var (
	// ErrNotFound reports an unknown or TTL-expired search ID.
	ErrNotFound = errors.New("search not found")
	// ErrTooManySearches is the admission-control rejection.
	ErrTooManySearches = errors.New("too many concurrent searches")
	// ErrNoSources means source resolution produced an empty set.
	ErrNoSources = errors.New("no sources available")
	// ErrDuplicateSearch guards against search ID collisions.
	ErrDuplicateSearch = errors.New("search already exists")
)

// ValidationError reports malformed criteria or options. It is returned
// before any dispatch and is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AdapterError wraps a source adapter failure with the source identity so
// settlements can be attributed without string parsing.
type AdapterError struct {
	Source string
	Err    error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}
