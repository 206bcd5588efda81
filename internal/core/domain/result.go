package domain

import (
	"errors"
	"time"
)

// Status is the outcome of a single fetch.
type Status int

const (
	StatusSuccess Status = iota
	StatusRouteNotFound
	StatusAmbiguousRoute
	StatusFetchTimeout
	StatusExecutionFailure
	StatusRuntimeUnavailable
)

var statusNames = map[Status]string{
	StatusSuccess:            "success",
	StatusRouteNotFound:      "route_not_found",
	StatusAmbiguousRoute:     "ambiguous_route",
	StatusFetchTimeout:       "fetch_timeout",
	StatusExecutionFailure:   "execution_failure",
	StatusRuntimeUnavailable: "runtime_unavailable",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "unknown"
}

// Systemic reports whether a monitoring loop should stop and alert on this
// status rather than skip the sample and keep polling.
func (s Status) Systemic() bool {
	return s == StatusRouteNotFound || s == StatusRuntimeUnavailable || s == StatusAmbiguousRoute
}

// StatusOf maps an error returned by the fetcher to its Status.
// Unknown errors count as runtime failures.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, ErrRouteNotFound):
		return StatusRouteNotFound
	case errors.Is(err, ErrAmbiguousRoute):
		return StatusAmbiguousRoute
	case errors.Is(err, ErrFetchTimeout):
		return StatusFetchTimeout
	case errors.Is(err, ErrExecutionFailure):
		return StatusExecutionFailure
	default:
		return StatusRuntimeUnavailable
	}
}

// Source says which network path produced a result.
type Source string

const (
	SourceContainer Source = "container"
	SourceHost      Source = "host"
)

// Result is the outcome of one fetch. Body is only set on success.
type Result struct {
	Body     []byte        `json:"-"`
	Status   Status        `json:"-"`
	Source   Source        `json:"source,omitempty"`
	Route    *Route        `json:"route,omitempty"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
}

// OK reports whether the fetch succeeded.
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}
