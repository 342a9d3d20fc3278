package crawler

import (
	"errors"
	"fmt"
)

// ErrNoListings is returned when a run could not collect a single listing.
var ErrNoListings = errors.New("no listings collected")

// ErrInvalidQuery wraps SearchQuery validation failures.
var ErrInvalidQuery = errors.New("invalid query")

// FetchErrorKind classifies a failed fetch.
type FetchErrorKind string

// Fetch error kinds.
const (
	FetchErrorNetwork FetchErrorKind = "network"
	FetchErrorTimeout FetchErrorKind = "timeout"
	FetchErrorStatus  FetchErrorKind = "status"
	// FetchErrorRobots marks a URL disallowed by the site's robots.txt.
	FetchErrorRobots FetchErrorKind = "robots"
)

// FetchError describes why a URL could not be fetched.
type FetchError struct {
	URL        string
	Kind       FetchErrorKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchErrorStatus:
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	default:
		if e.Err != nil {
			return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
		}
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is transient: network errors,
// timeouts, 429 and 5xx.
func (e *FetchError) Retryable() bool {
	switch e.Kind {
	case FetchErrorNetwork, FetchErrorTimeout:
		return true
	case FetchErrorStatus:
		return e.StatusCode == 429 || e.StatusCode >= 500
	}
	return false
}

// AsFetchError unwraps err into a *FetchError if it is one.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
